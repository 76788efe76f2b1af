package analyze

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, InitialDelay: time.Millisecond, BackoffFactor: 2.0}
}

func TestExecuteWithRetryBound(t *testing.T) {
	calls := 0
	_, err := ExecuteWithRetry(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("boom")
	})
	if calls != 4 {
		t.Fatalf("calls = %d, want exactly 4 with max_retries=3", calls)
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
}

func TestExecuteWithRetryEventualSuccess(t *testing.T) {
	calls := 0
	out, err := ExecuteWithRetry(context.Background(), fastPolicy(3), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithRetry: %v", err)
	}
	if out != 42 || calls != 3 {
		t.Fatalf("out = %d after %d calls", out, calls)
	}
}

func TestExecuteWithRetryNoRetryOnSuccess(t *testing.T) {
	calls := 0
	_, err := ExecuteWithRetry(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("calls = %d, err = %v", calls, err)
	}
}

func TestExecuteWithRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := ExecuteWithRetry(ctx, RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour, BackoffFactor: 2.0}, func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
