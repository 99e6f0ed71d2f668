package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock that only moves when Advance is called. Tests use it to
// cross invite expiry and rate limit window boundaries.
type FakeClock struct {
	mu sync.RWMutex
	t  time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{t: start.UTC()}
}

func (f *FakeClock) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.t
}

// Advance moves the clock forward by d and returns the new time.
func (f *FakeClock) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
	return f.t
}
