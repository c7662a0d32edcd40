package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Retry calls fn until it succeeds, ctx is done, or attempts is exhausted
// (attempts <= 0 means retry forever). It waits interval after every failed
// attempt, the last one included, using clock rather than time.Sleep, so
// tests can drive the backoff with a
// clockwork.FakeClock instead of waiting on a real timer.
func Retry(ctx context.Context, clock clockwork.Clock, attempts int, interval time.Duration, fn func() error) error {
	var lastErr error
	for i := 0; attempts <= 0 || i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
		}
	}
	return fmt.Errorf("transport: retry: giving up after %d attempts: %w", attempts, lastErr)
}
