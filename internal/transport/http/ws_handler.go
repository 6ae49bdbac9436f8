package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"question-engine/internal/engine"
)

type WSHandler struct {
	service  *engine.Service
	upgrader websocket.Upgrader
}

func NewWSHandler(service *engine.Service) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Index int `json:"index"`
}

type togglePayload struct {
	ID int `json:"id"`
}

type textPayload struct {
	Value string `json:"value"`
}

type codePayload struct {
	Code string `json:"code"`
	Lang string `json:"lang"`
}

type swapColumnPayload struct {
	Column int `json:"column"`
	I      int `json:"i"`
	J      int `json:"j"`
}

type placeOrderPayload struct {
	Pool     int `json:"pool"`
	Position int `json:"position"`
}

type recallOrderPayload struct {
	Index int `json:"index"`
}

type moveOrderPayload struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type moveBucketPayload struct {
	Item string `json:"item"`
	From string `json:"from"`
	To   string `json:"to"`
}

type gotoPayload struct {
	Number int `json:"number"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// question engine. One connection drives one user's pass through one activity.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	activityID := r.URL.Query().Get("activityId")
	userID := r.URL.Query().Get("userId")
	if activityID == "" || userID == "" {
		http.Error(w, "missing activityId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	eng, err := h.service.Attach(r.Context(), activityID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	events, cancel := eng.Subscribe()
	defer cancel()
	defer h.service.Leave(activityID, userID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				msg := h.eventMessage(eng, ev)
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if view, ok := eng.View(); ok {
		send <- outboundMessage[any]{Type: "question", Payload: view}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if errMsg := h.dispatch(r, eng, inbound, send); errMsg != "" {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: errMsg}}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

// dispatch routes one inbound message to the engine; it returns a non-empty
// string when the client should see an error.
func (h *WSHandler) dispatch(r *http.Request, eng *engine.Engine, inbound inboundMessage, send chan outboundMessage[any]) string {
	echo := true
	switch inbound.Type {
	case "select":
		var p selectPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return "invalid select payload"
		}
		eng.Select(p.Index)
	case "toggle":
		var p togglePayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return "invalid toggle payload"
		}
		eng.Toggle(p.ID)
	case "text":
		var p textPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return "invalid text payload"
		}
		eng.SetText(p.Value)
	case "code":
		var p codePayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return "invalid code payload"
		}
		eng.SetCode(p.Code, p.Lang)
	case "swap_column":
		var p swapColumnPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return "invalid swap_column payload"
		}
		eng.SwapColumn(p.Column, p.I, p.J)
	case "place_order":
		var p placeOrderPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return "invalid place_order payload"
		}
		eng.PlaceOrder(p.Pool, p.Position)
	case "recall_order":
		var p recallOrderPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return "invalid recall_order payload"
		}
		eng.RecallOrder(p.Index)
	case "move_order":
		var p moveOrderPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return "invalid move_order payload"
		}
		eng.MoveOrder(p.From, p.To)
	case "move_bucket":
		var p moveBucketPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return "invalid move_bucket payload"
		}
		eng.MoveBucket(p.Item, p.From, p.To)
	case "goto":
		var p gotoPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return "invalid goto payload"
		}
		if err := eng.Activate(r.Context(), p.Number); err != nil {
			return err.Error()
		}
		echo = false // activation already broadcasts a question event
	case "submit":
		echo = false
		if err := eng.RequestSubmit(r.Context(), engine.TriggerUser); err != nil {
			return err.Error()
		}
	case "finish":
		echo = false
		if _, err := eng.Finish(r.Context()); err != nil {
			return err.Error()
		}
	default:
		return "unsupported message type"
	}

	if echo {
		if view, ok := eng.View(); ok {
			send <- outboundMessage[any]{Type: "question", Payload: view}
		}
	}
	return ""
}

// eventMessage maps an engine event to its wire form. Question activations
// carry the full presentation view so clients never build their own shuffle.
func (h *WSHandler) eventMessage(eng *engine.Engine, ev engine.Event) outboundMessage[any] {
	switch ev.Type {
	case engine.EventQuestion:
		if view, ok := eng.View(); ok {
			return outboundMessage[any]{Type: "question", Payload: view}
		}
	case engine.EventFinished:
		return outboundMessage[any]{Type: "finished", Payload: ev.Tally}
	}
	return outboundMessage[any]{Type: string(ev.Type), Payload: ev}
}
