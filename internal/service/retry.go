package service

import (
	"context"
	"fmt"
	"time"
)

type retryPolicy struct {
	Attempts  int
	Delay     time.Duration
	OpTimeout time.Duration
}

// withRetry runs op up to Attempts times with a linear backoff. Each attempt
// gets its own OpTimeout so a hung store cannot block the caller forever.
func withRetry(ctx context.Context, p retryPolicy, op func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay * time.Duration(attempt)):
			}
		}

		opCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.OpTimeout > 0 {
			opCtx, cancel = context.WithTimeout(ctx, p.OpTimeout)
		}
		err := op(opCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}
