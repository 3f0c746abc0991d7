package resilience

import (
	"context"
	"fmt"
	"time"
)

// Retry runs fn up to attempts times, sleeping between failures with
// exponential backoff starting at base and doubling each time. Context
// cancellation aborts the wait and returns the context error wrapped with
// the last failure.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	return retryWith(ctx, attempts, base, fn, sleepCtx)
}

// retryWith allows tests to substitute the sleeper.
func retryWith(ctx context.Context, attempts int, base time.Duration, fn func() error, sleep func(context.Context, time.Duration) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := base
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return wrapRetry(err, lastErr)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return wrapRetry(err, lastErr)
		}
		delay *= 2
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func wrapRetry(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
}
