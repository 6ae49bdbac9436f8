package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"question-engine/internal/domain"
	"question-engine/internal/engine"
	"question-engine/internal/infra/memory"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	recorder := memory.NewRecorder(map[string]int{"act-1": 2})
	activities := memory.NewActivityRepository(memory.NewStaticActivityLoader(sampleActivities()), time.Minute)
	service := engine.NewService(
		activities,
		memory.NewEngineStore(),
		func(_, _ string) engine.Submitter { return recorder },
		memory.NewTemplateCache(),
	)
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?activityId=act-1&userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// First frame is the active question's presentation.
	typ, payload := readNext(conn, t, "question")
	if typ != "question" {
		t.Fatalf("expected question, got %s", typ)
	}
	if payload["number"].(float64) != 1 {
		t.Fatalf("expected question 1 first, got %v", payload["number"])
	}

	// Select the option shown at index 0, then submit.
	writeMsg(conn, t, "select", map[string]any{"index": 0})
	readNext(conn, t, "question") // echoed view with the selection applied

	writeMsg(conn, t, "submit", nil)

	submittedSeen := false
	nextQuestionSeen := false
	for i := 0; i < 4 && !(submittedSeen && nextQuestionSeen); i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "submitted":
			submittedSeen = true
		case "question":
			if payload["number"].(float64) == 2 {
				nextQuestionSeen = true
			}
		}
	}
	if !submittedSeen || !nextQuestionSeen {
		t.Fatalf("expected submitted + next question, got submitted=%v next=%v", submittedSeen, nextQuestionSeen)
	}

	// Answer the last question; the activity finishes on its own.
	writeMsg(conn, t, "text", map[string]any{"value": "Paris"})
	readNext(conn, t, "question")
	writeMsg(conn, t, "submit", nil)

	finishedSeen := false
	for i := 0; i < 4 && !finishedSeen; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == "finished" {
			finishedSeen = true
			if payload["submitted"].(float64) != 2 {
				t.Fatalf("expected tally with 2 submissions, got %v", payload)
			}
		}
	}
	if !finishedSeen {
		t.Fatalf("expected finished event")
	}

	subs := recorder.Submissions()
	if len(subs) != 2 || subs[0].Number != 1 || subs[1].Number != 2 {
		t.Fatalf("unexpected recorded submissions %+v", subs)
	}
	if !subs[1].Meta.LastQuestion {
		t.Fatalf("final submission must carry the last-question signal")
	}
}

func TestWebSocketRejectsMissingParams(t *testing.T) {
	service := engine.NewService(
		memory.NewActivityRepository(memory.NewStaticActivityLoader(nil), time.Minute),
		memory.NewEngineStore(),
		func(_, _ string) engine.Submitter { return memory.NewRecorder(nil) },
		memory.NewTemplateCache(),
	)
	handler := NewWSHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/ws?activityId=act-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeWS(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func writeMsg(conn *websocket.Conn, t *testing.T, typ string, payload map[string]any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	} else {
		msg["payload"] = map[string]any{}
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func sampleActivities() map[string]domain.Activity {
	return map[string]domain.Activity{
		"act-1": {
			ID: "act-1",
			Questions: []domain.Question{
				{
					Number:  1,
					Variant: domain.SingleChoice,
					Body:    "What is 2 + 2?",
					Options: []domain.Option{
						{ID: 1, Text: "3"},
						{ID: 2, Text: "4"},
						{ID: 3, Text: "5"},
					},
				},
				{
					Number:  2,
					Variant: domain.TextInput,
					Body:    "Name the capital of France",
				},
			},
		},
	}
}
