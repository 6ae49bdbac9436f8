package engine

import (
	"context"

	"question-engine/internal/domain"
)

// ActivityRepository loads question sets (from cache/backing store).
type ActivityRepository interface {
	GetActivity(ctx context.Context, activityID string) (domain.Activity, error)
}

// EngineStore abstracts how live engines are tracked (in-memory, Redis-marked).
type EngineStore interface {
	GetOrCreate(activityID, userID string, build func() (*Engine, error)) (*Engine, error)
	Get(activityID, userID string) (*Engine, bool)
	Delete(activityID, userID string)
}

// SubmitterFactory yields the submission boundary for one (activity, user)
// pair; each engine gets its own user-bound Submitter.
type SubmitterFactory func(activityID, userID string) Submitter

// Service ties the loader, the engine registry, and the submission boundary
// together: one engine per (activity, user) pair.
type Service struct {
	activities   ActivityRepository
	engines      EngineStore
	newSubmitter SubmitterFactory
	templates    TemplateCache
	opts         []Option
}

func NewService(activities ActivityRepository, engines EngineStore, newSubmitter SubmitterFactory, templates TemplateCache, opts ...Option) *Service {
	return &Service{
		activities:   activities,
		engines:      engines,
		newSubmitter: newSubmitter,
		templates:    templates,
		opts:         opts,
	}
}

// Attach returns the user's engine for an activity, creating and starting it on
// first use. Re-attaching returns the same engine with its state intact.
func (s *Service) Attach(ctx context.Context, activityID, userID string) (*Engine, error) {
	eng, err := s.engines.GetOrCreate(activityID, userID, func() (*Engine, error) {
		activity, err := s.activities.GetActivity(ctx, activityID)
		if err != nil {
			return nil, err
		}
		opts := s.opts
		if s.templates != nil {
			opts = append(append([]Option(nil), opts...), WithTemplates(s.templates))
		}
		return New(activity, s.newSubmitter(activityID, userID), opts...)
	})
	if err != nil {
		return nil, err
	}
	eng.Start(ctx)
	return eng, nil
}

// Engine looks up an existing engine without creating one.
func (s *Service) Engine(activityID, userID string) (*Engine, error) {
	eng, ok := s.engines.Get(activityID, userID)
	if !ok {
		return nil, domain.ErrEngineNotFound
	}
	return eng, nil
}

// Leave drops the engine once the activity is finished; an unfinished engine
// stays registered so the user can resume.
func (s *Service) Leave(activityID, userID string) {
	eng, ok := s.engines.Get(activityID, userID)
	if !ok {
		return
	}
	if eng.Finished() {
		s.engines.Delete(activityID, userID)
	}
}
