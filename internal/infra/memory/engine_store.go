package memory

import (
	"sync"

	"question-engine/internal/engine"
)

// EngineStore is an in-memory implementation of engine.EngineStore, keyed by
// (activity, user).
type EngineStore struct {
	mu      sync.RWMutex
	engines map[string]*engine.Engine
}

func NewEngineStore() *EngineStore {
	return &EngineStore{engines: make(map[string]*engine.Engine)}
}

func (s *EngineStore) GetOrCreate(activityID, userID string, build func() (*engine.Engine, error)) (*engine.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := engineKey(activityID, userID)
	if eng, ok := s.engines[key]; ok {
		return eng, nil
	}
	eng, err := build()
	if err != nil {
		return nil, err
	}
	s.engines[key] = eng
	return eng, nil
}

func (s *EngineStore) Get(activityID, userID string) (*engine.Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eng, ok := s.engines[engineKey(activityID, userID)]
	return eng, ok
}

func (s *EngineStore) Delete(activityID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.engines, engineKey(activityID, userID))
}

func engineKey(activityID, userID string) string {
	return activityID + "|" + userID
}
