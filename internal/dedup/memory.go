package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node deployments.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]time.Time // event id -> expiry
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	if exp, ok := s.seen[eventID]; ok && exp.After(now) {
		return false, nil
	}
	s.seen[eventID] = now.Add(ttl)
	return true, nil
}

// sweep drops expired entries; called under the lock on every mark so the
// map cannot grow without bound.
func (s *MemoryStore) sweep(now time.Time) {
	for id, exp := range s.seen {
		if !exp.After(now) {
			delete(s.seen, id)
		}
	}
}
