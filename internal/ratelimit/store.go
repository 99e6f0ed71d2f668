package ratelimit

import (
	"context"
	"time"
)

// Store counts hits in a fixed window. Hit returns the count including this
// hit and the time left until the window resets.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}
