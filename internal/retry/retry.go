// Package retry wraps fallible provider operations with bounded retries
// and exponential backoff. There is no jitter and no circuit breaker:
// the fallback resolver already has alternate providers to try after
// exhaustion, so the executor stays deliberately simple.
package retry

import (
	"context"
	"time"

	"github.com/falcoza/marketreporternew/internal/market"
)

// Policy configures a retry run.
type Policy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// DefaultPolicy matches the provider defaults: three attempts, one
// second initial delay, doubling between attempts.
var DefaultPolicy = Policy{
	MaxAttempts:   3,
	InitialDelay:  1 * time.Second,
	BackoffFactor: 2,
}

// Do runs op up to p.MaxAttempts times, sleeping
// InitialDelay * BackoffFactor^(attempt-1) between attempts. It returns
// the last error if every attempt fails. Non-retryable errors (client
// and validation failures) and context cancellation stop immediately.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, delay); err != nil {
				return zero, err
			}
			delay = time.Duration(float64(delay) * p.BackoffFactor)
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !market.IsRetryable(err) {
			break
		}
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
