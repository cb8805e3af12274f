package exchange

import (
	"context"
	"time"

	"talon/internal/logger"
)

const (
	// DefaultAttempts bounds retries of transient exchange failures. The
	// tick loop itself is the outer retry: a tick that exhausts these gives
	// up and runs again at the next candle.
	DefaultAttempts = 2
	baseDelay       = time.Second
)

// WithRetry runs fn with bounded exponential backoff on retryable errors.
// Fatal errors abort immediately. attempts counts retries, not total calls.
func WithRetry(ctx context.Context, name string, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 0 {
		attempts = DefaultAttempts
	}
	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			logger.Errorf("%s: non-retryable error: %v", name, lastErr)
			return lastErr
		}
		if attempt == attempts {
			break
		}
		delay := baseDelay << attempt
		logger.Warnf("%s: retry %d/%d after %s: %v", name, attempt+1, attempts, delay, lastErr)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	logger.Errorf("%s: retries exhausted (%d): %v", name, attempts, lastErr)
	return lastErr
}
