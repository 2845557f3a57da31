package scanner

import (
	"context"
	"errors"
	"time"
)

// ErrRateLimited marks an attempt answered with 429 Too Many Requests.
var ErrRateLimited = errors.New("rate limited (HTTP 429)")

// RetryPolicy is a fixed-delay retry schedule. Rate-limited attempts wait
// RateLimitDelay instead of Delay; both share the same attempt budget.
type RetryPolicy struct {
	MaxAttempts    int
	Delay          time.Duration
	RateLimitDelay time.Duration
}

// NewRetryPolicy derives the policy from a validated Config.
func NewRetryPolicy(cfg Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxRetries + 1,
		Delay:          cfg.RequestDelay,
		RateLimitDelay: cfg.RateLimitDelay,
	}
}

// Backoff returns how long to wait after a failed attempt caused by err.
func (p RetryPolicy) Backoff(err error) time.Duration {
	if errors.Is(err, ErrRateLimited) {
		return p.RateLimitDelay
	}
	return p.Delay
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
