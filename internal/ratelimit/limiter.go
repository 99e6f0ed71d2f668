package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/teamspace/internal/config"
	"github.com/smallbiznis/teamspace/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrRateLimited = errors.New("rate_limited")

// LimitError is returned by CheckOrThrow once a key's window is exhausted.
type LimitError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Key, e.RetryAfter)
}

func (e *LimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfter extracts the wait from a rate limit error, rounded up to whole
// seconds.
func RetryAfter(err error) (time.Duration, bool) {
	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		return 0, false
	}
	wait := limitErr.RetryAfter.Round(time.Second)
	if wait < limitErr.RetryAfter {
		wait += time.Second
	}
	if wait < time.Second {
		wait = time.Second
	}
	return wait, true
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Store   Store
	Policy  *config.RateLimitPolicyHolder
	Metrics *metrics.Metrics `optional:"true"`
}

type Limiter struct {
	log     *zap.Logger
	store   Store
	policy  *config.RateLimitPolicyHolder
	metrics *metrics.Metrics
}

func NewLimiter(p Params) *Limiter {
	return &Limiter{
		log:     p.Log.Named("ratelimit"),
		store:   p.Store,
		policy:  p.Policy,
		metrics: p.Metrics,
	}
}

// Check records a hit for key against the current policy. A failing store
// lets the request through.
func (l *Limiter) Check(ctx context.Context, key string) (*Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("rate limit key is empty")
	}

	policy := l.policy.Get()
	endpoint := endpointLabel(key)

	count, ttl, err := l.store.Hit(ctx, "ratelimit:"+key, policy.Window())
	if err != nil {
		l.log.Warn("rate limit store unavailable, allowing request",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		l.metrics.RecordRateLimitAllowed(ctx, endpoint)
		return &Result{Allowed: true, Limit: policy.Max, Remaining: policy.Max}, nil
	}

	remaining := policy.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	if count > int64(policy.Max) {
		l.metrics.RecordRateLimitDenied(ctx, endpoint, "window_exhausted")
		return &Result{
			Allowed:    false,
			Limit:      policy.Max,
			Remaining:  0,
			RetryAfter: ttl,
		}, nil
	}

	l.metrics.RecordRateLimitAllowed(ctx, endpoint)
	return &Result{Allowed: true, Limit: policy.Max, Remaining: remaining}, nil
}

func (l *Limiter) CheckOrThrow(ctx context.Context, key string) error {
	res, err := l.Check(ctx, key)
	if err != nil {
		return err
	}
	if !res.Allowed {
		return &LimitError{Key: key, RetryAfter: res.RetryAfter}
	}
	return nil
}

// endpointLabel keeps the action part of a key, for example
// "workspace:invite" from "workspace:invite:<userId>:<ip>".
func endpointLabel(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return key
	}
	return parts[0] + ":" + parts[1]
}
