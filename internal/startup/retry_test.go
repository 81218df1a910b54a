package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastBackoff(t *testing.T) {
	t.Helper()
	first, ceiling := firstBackoff, maxBackoff
	firstBackoff, maxBackoff = time.Millisecond, 4*time.Millisecond
	t.Cleanup(func() { firstBackoff, maxBackoff = first, ceiling })
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	req := require.New(t)
	fastBackoff(t)

	calls := 0
	v, err := retry(context.Background(), "db", time.Second, time.Second, func(ctx context.Context) (int, error) {
		calls++
		_, hasDeadline := ctx.Deadline()
		req.True(hasDeadline)
		if calls < 3 {
			return 0, errors.New("connection refused")
		}
		return 42, nil
	})
	req.NoError(err)
	req.Equal(42, v)
	req.Equal(3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	req := require.New(t)
	fastBackoff(t)

	refused := errors.New("connection refused")
	_, err := retry(context.Background(), "redis", 20*time.Millisecond, time.Second, func(context.Context) (string, error) {
		return "", refused
	})
	req.ErrorIs(err, refused)
	req.Contains(err.Error(), "redis: gave up")
}

func TestRetryStopsOnCancel(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retry(ctx, "db", time.Minute, time.Second, func(ctx context.Context) (int, error) {
		return 0, ctx.Err()
	})
	req.ErrorIs(err, context.Canceled)
}
