package memory

import (
	"context"
	"sync"

	"question-engine/internal/domain"
)

// Submission is one recorded answer.
type Submission struct {
	ActivityID string
	Number     int
	Answer     domain.Answer
	Meta       domain.SubmitMeta
}

// Recorder is an in-memory engine.Submitter, used when no Postgres is
// configured and in tests.
type Recorder struct {
	mu          sync.Mutex
	submissions []Submission
	totals      map[string]int
}

// NewRecorder takes the question count per activity so FinishActivity can
// report a complete tally.
func NewRecorder(totals map[string]int) *Recorder {
	if totals == nil {
		totals = make(map[string]int)
	}
	return &Recorder{totals: totals}
}

func (r *Recorder) SubmitAnswer(_ context.Context, activityID string, number int, answer domain.Answer, meta domain.SubmitMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, Submission{
		ActivityID: activityID,
		Number:     number,
		Answer:     answer,
		Meta:       meta,
	})
	return nil
}

func (r *Recorder) FinishActivity(_ context.Context, activityID string) (domain.Tally, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	submitted := 0
	for _, s := range r.submissions {
		if s.ActivityID == activityID {
			submitted++
		}
	}
	return domain.Tally{
		ActivityID: activityID,
		Submitted:  submitted,
		Total:      r.totals[activityID],
	}, nil
}

// Submissions returns a snapshot of everything recorded so far.
func (r *Recorder) Submissions() []Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Submission(nil), r.submissions...)
}
