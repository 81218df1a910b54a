package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/roomchat/internal/logger"
)

var (
	firstBackoff = 2 * time.Second
	maxBackoff   = 30 * time.Second
)

// retry calls connect until it succeeds, ctx ends or maxWait has passed,
// doubling the pause between attempts up to maxBackoff. Each attempt gets
// its own attemptTimeout.
func retry[T any](ctx context.Context, what string, maxWait, attemptTimeout time.Duration, connect func(context.Context) (T, error)) (T, error) {
	deadline := time.Now().Add(maxWait)
	backoff := firstBackoff
	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		v, err := connect(attemptCtx)
		cancel()
		if err == nil {
			if attempt > 1 {
				logger.Infof("%s connected after %d attempts", what, attempt)
			}
			return v, nil
		}
		if time.Now().Add(backoff).After(deadline) {
			var zero T
			return zero, fmt.Errorf("%s: gave up after %v: %w", what, maxWait, err)
		}
		logger.Errorf("%s failed (attempt %d), retry in %v: %v", what, attempt, backoff, err)
		select {
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("%s: %w", what, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
