package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"question-engine/internal/domain"
)

// Trigger identifies what caused a submission request.
type Trigger string

const (
	TriggerUser    Trigger = "user"
	TriggerTimeout Trigger = "timeout"
)

// Submitter is the outbound boundary: it delivers one answer payload per
// confirmed submission and closes the activity exactly once.
type Submitter interface {
	SubmitAnswer(ctx context.Context, activityID string, number int, answer domain.Answer, meta domain.SubmitMeta) error
	FinishActivity(ctx context.Context, activityID string) (domain.Tally, error)
}

// EventType labels engine lifecycle events pushed to subscribers.
type EventType string

const (
	EventQuestion  EventType = "question"  // a question became active
	EventSubmitted EventType = "submitted" // an answer was acknowledged
	EventExpired   EventType = "expired"   // a countdown ran out
	EventFinished  EventType = "finished"  // the activity reached its terminal state
)

// Event is a lifecycle notification. Number refers to the question the event
// concerns; Tally is set only on EventFinished.
type Event struct {
	Type   EventType     `json:"type"`
	Number int           `json:"number,omitempty"`
	Tally  *domain.Tally `json:"tally,omitempty"`
}

// Engine coordinates one user's pass through one activity: it owns the active
// question's working state, guarantees at most one in-flight submission, reacts
// to countdown expiry, and drives the transition into the terminal finished
// state. All methods are safe for concurrent use; countdown callbacks arrive on
// their own goroutine.
type Engine struct {
	mu         sync.Mutex
	activityID string
	timer      domain.TimerConfig
	questions  []domain.Question
	submitter  Submitter
	templates  TemplateCache
	rnd        *rand.Rand
	countdown  *Countdown

	started     bool
	idx         int
	armed       int // epoch of the live deadline, 0 when no clock is running
	state       *WorkingState
	inflight    bool
	finishing   bool
	finished    bool
	tally       *domain.Tally
	subscribers map[chan Event]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand injects the randomness source; tests pass a seeded one.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rnd = r }
}

// WithTemplates wires a code-template cache for CodeInput/EmbeddedProblem
// activation.
func WithTemplates(tc TemplateCache) Option {
	return func(e *Engine) { e.templates = tc }
}

func New(activity domain.Activity, submitter Submitter, opts ...Option) (*Engine, error) {
	if len(activity.Questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	// The two timer modes are mutually exclusive; per-question wins.
	if activity.Timer.PerQuestionSeconds > 0 {
		activity.Timer.TotalSeconds = 0
	}
	e := &Engine{
		activityID:  activity.ID,
		timer:       activity.Timer,
		questions:   append([]domain.Question(nil), activity.Questions...),
		submitter:   submitter,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		subscribers: make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.countdown = NewCountdown(e.onExpire)
	return e, nil
}

// Start activates the first unanswered question and, in total-countdown mode,
// arms the shared clock. Calling Start again is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.finished {
		return
	}
	e.started = true
	first := 0
	for i := range e.questions {
		if !e.questions[i].Answered {
			first = i
			break
		}
	}
	if e.timer.TotalSeconds > 0 {
		e.armed = e.countdown.Arm(time.Duration(e.timer.TotalSeconds) * time.Second)
	}
	e.activateLocked(ctx, first)
}

// Activate navigates to the question with the given 1-based number. The
// previous question's presentation state is discarded and any deadline scoped
// to it is invalidated.
func (e *Engine) Activate(ctx context.Context, number int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finished {
		return domain.ErrFinished
	}
	for i := range e.questions {
		if e.questions[i].Number == number {
			e.activateLocked(ctx, i)
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}

// activateLocked rebuilds the working state for questions[i]. This is the only
// place randomization runs; re-rendering the view never re-shuffles.
func (e *Engine) activateLocked(ctx context.Context, i int) {
	e.idx = i
	e.state = newWorkingState(ctx, e.rnd, e.activityID, e.questions[i], e.templates)
	if e.timer.PerQuestionSeconds > 0 {
		e.armed = e.countdown.Arm(time.Duration(e.timer.PerQuestionSeconds) * time.Second)
	}
	e.broadcastLocked(Event{Type: EventQuestion, Number: e.questions[i].Number})
}

// onExpire handles a countdown deadline. The countdown's own check can race a
// Stop or re-Arm that lands after it passed, so the epoch is the authority
// here: it must still match the armed one under e.mu, both before broadcasting
// and again inside submit. A deadline scoped to a question left behind never
// auto-submits.
func (e *Engine) onExpire(epoch int) {
	e.mu.Lock()
	if e.finished || e.state == nil || epoch != e.armed {
		e.mu.Unlock()
		return
	}
	number := e.state.Number
	total := e.timer.TotalSeconds > 0
	e.broadcastLocked(Event{Type: EventExpired, Number: number})
	e.mu.Unlock()

	ctx := context.Background()
	_ = e.submit(ctx, TriggerTimeout, epoch)
	if total {
		// The shared clock ran out: the whole activity is over regardless of
		// whether the trailing submission carried anything.
		_, _ = e.Finish(ctx)
	}
}

// RequestSubmit encodes the current working state and sends it. It is a no-op
// when the activity is finished, when a submission is already in flight, or
// when the encoder reports the answer empty. On failure the working state is
// untouched and a later RequestSubmit may retry; on success the question is
// marked answered and the next unanswered question is activated (or the
// activity finishes when none remain).
func (e *Engine) RequestSubmit(ctx context.Context, trigger Trigger) error {
	return e.submit(ctx, trigger, 0)
}

// submit carries out a submission request. A non-zero epoch pins the request
// to one specific deadline: by the time the lock is held, the deadline must
// still be the armed one or the request is dropped as stale.
func (e *Engine) submit(ctx context.Context, trigger Trigger, epoch int) error {
	e.mu.Lock()
	if e.finished || e.inflight || e.state == nil {
		e.mu.Unlock()
		return nil
	}
	if epoch != 0 && epoch != e.armed {
		e.mu.Unlock()
		return nil
	}
	answer, empty := Encode(e.state)
	if empty {
		// A blank timeout must not leave the question untimed: the fired
		// deadline is spent, so start the next one.
		if trigger == TriggerTimeout && e.timer.PerQuestionSeconds > 0 {
			e.armed = e.countdown.Arm(time.Duration(e.timer.PerQuestionSeconds) * time.Second)
		}
		e.mu.Unlock()
		return nil
	}
	qIdx := e.idx
	number := e.state.Number
	meta := domain.SubmitMeta{
		LastQuestion: e.unansweredBesidesLocked(qIdx) == 0,
		TimeExpired:  trigger == TriggerTimeout && e.timer.TotalSeconds > 0,
	}
	if e.timer.PerQuestionSeconds > 0 {
		e.countdown.Stop()
		e.armed = 0
	}
	e.inflight = true
	e.mu.Unlock()

	err := e.submitter.SubmitAnswer(ctx, e.activityID, number, answer, meta)

	e.mu.Lock()
	e.inflight = false
	if err != nil {
		// Retryable: resume the per-question clock if the user is still here.
		if e.timer.PerQuestionSeconds > 0 && !e.finished && e.idx == qIdx {
			e.armed = e.countdown.Arm(time.Duration(e.timer.PerQuestionSeconds) * time.Second)
		}
		e.mu.Unlock()
		return fmt.Errorf("submit answer for question %d: %w", number, err)
	}

	e.questions[qIdx].Answered = true
	e.broadcastLocked(Event{Type: EventSubmitted, Number: number})
	needFinish := false
	if !e.finished && e.idx == qIdx {
		if next := e.nextUnansweredLocked(qIdx); next >= 0 {
			e.activateLocked(ctx, next)
		} else {
			needFinish = true
		}
	}
	e.mu.Unlock()

	if needFinish {
		if _, err := e.Finish(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Finish closes the activity and returns the final tally. It is idempotent: a
// repeat call returns the same tally without a second FinishActivity call, and
// a call racing an in-progress finish returns ErrFinished. After a successful
// finish all mutate and submit calls are no-ops.
func (e *Engine) Finish(ctx context.Context) (domain.Tally, error) {
	e.mu.Lock()
	if e.tally != nil {
		t := *e.tally
		e.mu.Unlock()
		return t, nil
	}
	if e.finishing {
		e.mu.Unlock()
		return domain.Tally{}, domain.ErrFinished
	}
	e.finishing = true
	e.mu.Unlock()

	tally, err := e.submitter.FinishActivity(ctx, e.activityID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishing = false
	if err != nil {
		return domain.Tally{}, fmt.Errorf("finish activity %s: %w", e.activityID, err)
	}
	e.finished = true
	e.tally = &tally
	e.countdown.Stop()
	e.armed = 0
	e.broadcastLocked(Event{Type: EventFinished, Tally: &tally})
	return tally, nil
}

// Finished reports whether the engine reached its terminal state.
func (e *Engine) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

// Questions returns a snapshot of the question list with current answered flags.
func (e *Engine) Questions() []domain.Question {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Question(nil), e.questions...)
}

// mutate applies a local edit to the active working state. Edits are rejected
// after finish and while a submission is in flight (submit freezes the state).
func (e *Engine) mutate(fn func(*WorkingState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finished || e.inflight || e.state == nil {
		return
	}
	fn(e.state)
}

func (e *Engine) Select(i int)           { e.mutate(func(s *WorkingState) { s.select1(i) }) }
func (e *Engine) Toggle(id int)          { e.mutate(func(s *WorkingState) { s.toggle(id) }) }
func (e *Engine) SetText(text string)    { e.mutate(func(s *WorkingState) { s.setText(text) }) }
func (e *Engine) SetCode(code, l string) { e.mutate(func(s *WorkingState) { s.setCode(code, l) }) }

func (e *Engine) SwapColumn(column, i, j int) {
	e.mutate(func(s *WorkingState) { s.swapColumn(column, i, j) })
}

func (e *Engine) PlaceOrder(poolIdx, pos int) {
	e.mutate(func(s *WorkingState) { s.placeOrder(poolIdx, pos) })
}

func (e *Engine) RecallOrder(seqIdx int) {
	e.mutate(func(s *WorkingState) { s.recallOrder(seqIdx) })
}

func (e *Engine) MoveOrder(from, to int) {
	e.mutate(func(s *WorkingState) { s.moveOrder(from, to) })
}

func (e *Engine) MoveBucket(item, fromKey, toKey string) {
	e.mutate(func(s *WorkingState) { s.moveBucket(item, fromKey, toKey) })
}

// QuestionView is a display snapshot of the active question's presentation.
type QuestionView struct {
	Number   int                          `json:"number"`
	Variant  domain.Variant               `json:"variant"`
	Body     string                       `json:"body"`
	Answered bool                         `json:"answered"`
	Options  []domain.Option              `json:"options,omitempty"`
	Selected int                          `json:"selected"`
	Picked   []int                        `json:"picked,omitempty"`
	Text     string                       `json:"text,omitempty"`
	ColOne   []string                     `json:"columnOne,omitempty"`
	ColTwo   []string                     `json:"columnTwo,omitempty"`
	Pool     []string                     `json:"pool,omitempty"`
	Sequence []string                     `json:"sequence,omitempty"`
	Buckets  []domain.ClassificationGroup `json:"buckets,omitempty"`
	Code     string                       `json:"code,omitempty"`
	Lang     string                       `json:"lang,omitempty"`
}

// View snapshots the active question for display. Calling View never
// re-randomizes anything. The second result is false before Start.
func (e *Engine) View() (QuestionView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return QuestionView{}, false
	}
	s := e.state
	v := QuestionView{
		Number:   s.Number,
		Variant:  s.Variant,
		Body:     e.questions[e.idx].Body,
		Answered: e.questions[e.idx].Answered,
		Options:  append([]domain.Option(nil), s.Options...),
		Selected: s.Selected,
		Text:     s.Text,
		ColOne:   append([]string(nil), s.ColumnOne...),
		ColTwo:   append([]string(nil), s.ColumnTwo...),
		Pool:     append([]string(nil), s.Pool...),
		Sequence: append([]string(nil), s.Sequence...),
		Code:     s.Code,
		Lang:     s.Lang,
	}
	for _, opt := range s.Options {
		if s.Picked[opt.ID] {
			v.Picked = append(v.Picked, opt.ID)
		}
	}
	v.Buckets = make([]domain.ClassificationGroup, len(s.Buckets))
	for i, b := range s.Buckets {
		v.Buckets[i] = domain.ClassificationGroup{Key: b.Key, Values: append([]string(nil), b.Values...)}
	}
	return v, true
}

// Subscribe returns a channel of lifecycle events plus a cancel function the
// caller must invoke to avoid leaks. Slow subscribers lose the oldest pending
// event rather than blocking the engine.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) broadcastLocked(ev Event) {
	for ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// unansweredBesidesLocked counts unanswered questions other than questions[idx].
func (e *Engine) unansweredBesidesLocked(idx int) int {
	n := 0
	for i := range e.questions {
		if i != idx && !e.questions[i].Answered {
			n++
		}
	}
	return n
}

// nextUnansweredLocked scans forward from after+1 with wrap-around and returns
// the index of the first unanswered question, or -1 when none remain.
func (e *Engine) nextUnansweredLocked(after int) int {
	n := len(e.questions)
	for step := 1; step <= n; step++ {
		i := (after + step) % n
		if !e.questions[i].Answered {
			return i
		}
	}
	return -1
}
