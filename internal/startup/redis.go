package startup

import (
	"context"
	"time"

	redisstorage "github.com/roomchat/internal/storage/redis"
)

// ConnectRedis opens the Redis session store, retrying until maxWait has passed.
func ConnectRedis(ctx context.Context, redisURL string, maxWait time.Duration) (*redisstorage.Client, error) {
	return retry(ctx, "redis", maxWait, 5*time.Second, func(ctx context.Context) (*redisstorage.Client, error) {
		return redisstorage.New(ctx, redisURL)
	})
}
