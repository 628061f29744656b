package dedupe

import (
	"context"
	"sync"
	"time"
)

const pruneEvery = 256

// MemoryStore keeps claims in process memory. It is only suitable for a
// single process (tests, the one-shot CLI, or a single-instance deployment).
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	claims  int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

// Claim implements Store.
func (s *MemoryStore) Claim(ctx context.Context, key string, now, expiresAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims++
	if s.claims%pruneEvery == 0 {
		s.pruneLocked(now)
	}

	if exp, ok := s.entries[key]; ok && exp.After(now) {
		return false, nil
	}
	s.entries[key] = expiresAt
	return true, nil
}

// Len returns the number of stored records, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	for k, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, k)
		}
	}
}
