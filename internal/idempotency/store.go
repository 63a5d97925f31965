// Package idempotency records which external events have already been processed.
package idempotency

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Store interface {
	// Claim returns true the first time key is seen within ttl and false
	// for every repeat.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets a claim so a failed event can be retried.
	Release(ctx context.Context, key string) error
}

// New returns a Redis-backed store when redisURL is set, otherwise an
// in-process store.
func New(ctx context.Context, redisURL string) (Store, error) {
	if redisURL == "" {
		slog.Info("webhook idempotency: using in-memory store")
		return NewMemoryStore(), nil
	}
	return NewRedisStore(ctx, redisURL)
}

type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expires, ok := s.seen[key]; ok && now.Before(expires) {
		return false, nil
	}

	s.seen[key] = now.Add(ttl)
	s.sweep(now)
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
	return nil
}

// sweep drops expired keys; called with mu held.
func (s *MemoryStore) sweep(now time.Time) {
	for k, expires := range s.seen {
		if !now.Before(expires) {
			delete(s.seen, k)
		}
	}
}
