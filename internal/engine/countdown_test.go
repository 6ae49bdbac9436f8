package engine

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"question-engine/internal/domain"
)

func TestCountdownFires(t *testing.T) {
	fired := make(chan int, 1)
	c := NewCountdown(func(epoch int) { fired <- epoch })
	want := c.Arm(20 * time.Millisecond)

	select {
	case got := <-fired:
		if got != want {
			t.Fatalf("expected epoch %d, got %d", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("countdown never fired")
	}
}

func TestCountdownStopCancels(t *testing.T) {
	var fired atomic.Int32
	c := NewCountdown(func(int) { fired.Add(1) })
	c.Arm(20 * time.Millisecond)
	c.Stop()

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("stopped countdown still fired")
	}
}

func TestCountdownRearmDiscardsStaleEpoch(t *testing.T) {
	fired := make(chan int, 2)
	c := NewCountdown(func(epoch int) { fired <- epoch })
	c.Arm(20 * time.Millisecond)
	second := c.Arm(60 * time.Millisecond)

	select {
	case got := <-fired:
		if got != second {
			t.Fatalf("stale deadline fired with epoch %d, want only %d", got, second)
		}
	case <-time.After(time.Second):
		t.Fatalf("re-armed countdown never fired")
	}

	select {
	case got := <-fired:
		t.Fatalf("unexpected extra expiry with epoch %d", got)
	case <-time.After(100 * time.Millisecond):
	}
}

type captureSubmitter struct {
	mu       sync.Mutex
	numbers  []int
	finishes int
}

func (c *captureSubmitter) SubmitAnswer(_ context.Context, _ string, number int, _ domain.Answer, _ domain.SubmitMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.numbers = append(c.numbers, number)
	return nil
}

func (c *captureSubmitter) FinishActivity(_ context.Context, activityID string) (domain.Tally, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishes++
	return domain.Tally{ActivityID: activityID}, nil
}

// A deadline can pass the countdown's own liveness check and then lose the
// race against a navigation that re-arms the clock. The engine must recognize
// the carried epoch as stale and drop the expiry, even when the freshly
// activated question already encodes non-empty.
func TestDeadlinePastLivenessCheckIsStillDiscarded(t *testing.T) {
	ctx := context.Background()
	sub := &captureSubmitter{}
	activity := domain.Activity{
		ID:    "act-race",
		Timer: domain.TimerConfig{PerQuestionSeconds: 30},
		Questions: []domain.Question{
			{Number: 1, Variant: domain.TextInput},
			{
				Number:  2,
				Variant: domain.SingleChoice,
				Options: []domain.Option{{ID: 1, Text: "A", Selected: true}, {ID: 2, Text: "B"}},
			},
		},
	}
	e, err := New(activity, sub, WithRand(rand.New(rand.NewSource(7))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	e.Start(ctx)

	e.mu.Lock()
	stale := e.armed
	e.mu.Unlock()

	if err := e.Activate(ctx, 2); err != nil {
		t.Fatalf("goto 2: %v", err)
	}

	// Deliver the expiry the navigation invalidated, as if it had already
	// cleared the countdown's check when the re-arm landed.
	e.onExpire(stale)

	sub.mu.Lock()
	submitted, finished := len(sub.numbers), sub.finishes
	sub.mu.Unlock()
	if submitted != 0 || finished != 0 {
		t.Fatalf("stale expiry acted: %d submissions, %d finishes", submitted, finished)
	}
	view, ok := e.View()
	if !ok || view.Number != 2 {
		t.Fatalf("expected question 2 still active, got %+v", view)
	}
	for _, q := range e.Questions() {
		if q.Answered {
			t.Fatalf("stale expiry marked question %d answered", q.Number)
		}
	}
}
