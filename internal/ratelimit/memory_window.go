package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/teamspace/internal/clock"
)

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps windows in process. Expired windows are swept lazily.
type MemoryStore struct {
	mu        sync.Mutex
	clock     clock.Clock
	windows   map[string]*memoryWindow
	lastSweep time.Time
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &MemoryStore{
		clock:   clk,
		windows: make(map[string]*memoryWindow),
	}
}

func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.sweep(now, window)

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

func (s *MemoryStore) sweep(now time.Time, window time.Duration) {
	if now.Sub(s.lastSweep) < window {
		return
	}
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
	s.lastSweep = now
}
