package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomchat/internal/config"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/mirror"
	"github.com/roomchat/internal/mirror/mongoremote"
	"github.com/roomchat/internal/mirror/pgremote"
)

// ConnectMirror opens the remote mirror selected by cfg.Driver. A nil remote
// with a nil error means mirroring is disabled.
func ConnectMirror(ctx context.Context, cfg config.MirrorConfig) (mirror.Remote, error) {
	switch cfg.Driver {
	case "", "none":
		logger.Info("mirror: disabled")
		return nil, nil
	case "memory":
		logger.Info("mirror: in-process memory remote")
		return mirror.NewMemoryRemote(), nil
	case "postgres":
		poolCfg, err := pgxpool.ParseConfig(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("mirror postgres config: %w", err)
		}
		poolCfg.MaxConns = 4
		pool, err := ConnectDB(ctx, poolCfg, 30*time.Second, "mirror db")
		if err != nil {
			return nil, err
		}
		remote := pgremote.New(pool)
		if err := remote.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("mirror postgres schema: %w", err)
		}
		logger.Info("mirror: postgres remote connected")
		return remote, nil
	case "mongo":
		remote, err := mongoremote.Connect(ctx, cfg.URL, cfg.Database, 5, 2*time.Second)
		if err != nil {
			return nil, fmt.Errorf("mirror mongo: %w", err)
		}
		logger.Infof("mirror: mongo remote connected db=%s", cfg.Database)
		return remote, nil
	default:
		return nil, fmt.Errorf("mirror: unknown driver %q", cfg.Driver)
	}
}
