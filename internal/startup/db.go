package startup

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectDB opens a pool and pings it, retrying until maxWait has passed.
// what names the database in log lines ("db", "mirror db").
func ConnectDB(ctx context.Context, poolCfg *pgxpool.Config, maxWait time.Duration, what string) (*pgxpool.Pool, error) {
	return retry(ctx, what, maxWait, 10*time.Second, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	})
}
