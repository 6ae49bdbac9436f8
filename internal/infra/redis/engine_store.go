package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"question-engine/internal/engine"
)

// EngineStore is a Redis-aware implementation of engine.EngineStore.
// Notes:
//   - Engines stay in a local in-process map; the working state and timers are
//     not serializable across instances.
//   - Redis marks attempt liveness so operators (and sibling instances) can see
//     which activity/user pairs are mid-flight.
type EngineStore struct {
	client  *redis.Client
	ttl     time.Duration
	mu      sync.RWMutex
	engines map[string]*engine.Engine
}

func NewEngineStore(client *redis.Client, ttl time.Duration) *EngineStore {
	return &EngineStore{
		client:  client,
		ttl:     ttl,
		engines: make(map[string]*engine.Engine),
	}
}

func (s *EngineStore) GetOrCreate(activityID, userID string, build func() (*engine.Engine, error)) (*engine.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := activityID + "|" + userID
	if eng, ok := s.engines[key]; ok {
		return eng, nil
	}
	eng, err := build()
	if err != nil {
		return nil, err
	}
	s.engines[key] = eng
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.liveKey(activityID, userID), "1", s.ttl).Err()
	return eng, nil
}

func (s *EngineStore) Get(activityID, userID string) (*engine.Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eng, ok := s.engines[activityID+"|"+userID]
	return eng, ok
}

func (s *EngineStore) Delete(activityID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.engines, activityID+"|"+userID)
	_ = s.client.Del(context.Background(), s.liveKey(activityID, userID)).Err()
}

func (s *EngineStore) liveKey(activityID, userID string) string {
	return "activity:attempt:" + activityID + ":" + userID
}
