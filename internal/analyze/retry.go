package analyze

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy drives ExecuteWithRetry: MaxRetries+1 total attempts, delay
// before retry i is InitialDelay * BackoffFactor^(i-1).
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// ExecuteWithRetry runs op until it succeeds or the policy is exhausted. The
// operation must be idempotent; the pipeline only retries stateless provider
// queries. Context cancellation aborts both the sleep and the loop.
func ExecuteWithRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := policy.InitialDelay
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, delay); err != nil {
				return zero, err
			}
			delay = time.Duration(float64(delay) * policy.BackoffFactor)
		}
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, policy.MaxRetries+1, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
