// Package ratelimit enforces a per-caller sliding-window request limit.
//
// The window counter must be updated atomically per key so that
// concurrent requests cannot jointly exceed the limit. Two stores
// implement that contract: an in-process one for single-node
// deployments and a Redis-backed one, where atomicity comes from a Lua
// script, for multi-process deployments sharing one counter.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Policy is one caller class's limit.
type Policy struct {
	// Requests allowed per Window.
	Requests int `yaml:"requests" json:"requests"`
	// Window is the sliding interval.
	Window time.Duration `yaml:"window" json:"window"`
}

// Store decides, atomically per key, whether one more request fits the
// window right now.
type Store interface {
	Allow(ctx context.Context, key string, p Policy) (bool, error)
	// Remaining reports how many requests the key has left in the
	// current window without consuming one.
	Remaining(ctx context.Context, key string, p Policy) (int, error)
}

// MemoryStore is the in-process sliding window. Each key keeps its
// request timestamps; expired ones are pruned on access.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// NewMemoryStore builds an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow counts the request iff the window has room. The mutex makes the
// check-and-increment atomic across concurrent callers of one key.
func (s *MemoryStore) Allow(_ context.Context, key string, p Policy) (bool, error) {
	if p.Requests <= 0 || p.Window <= 0 {
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-p.Window)
	kept := s.windows[key][:0]
	for _, t := range s.windows[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= p.Requests {
		s.windows[key] = kept
		return false, nil
	}
	s.windows[key] = append(kept, now)
	return true, nil
}

// Remaining prunes the key's window and reports the unused allowance.
func (s *MemoryStore) Remaining(_ context.Context, key string, p Policy) (int, error) {
	if p.Requests <= 0 || p.Window <= 0 {
		return p.Requests, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-p.Window)
	kept := s.windows[key][:0]
	for _, t := range s.windows[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.windows[key] = kept
	if rem := p.Requests - len(kept); rem > 0 {
		return rem, nil
	}
	return 0, nil
}
