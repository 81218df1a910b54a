package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	req.Equal(":8080", cfg.Server.Addr)
	req.Equal("none", cfg.Mirror.Driver)
	req.Equal(4, cfg.Rooms.CodeLength)
	req.Equal(24*time.Hour, cfg.SessionTTL())
	req.Equal(5*time.Second, cfg.MirrorTimeout())
	req.False(cfg.Redis.Enabled)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "chat.yaml")
	req.NoError(os.WriteFile(path, []byte(`
server:
  addr: ":9090"
mirror:
  driver: Mongo
  url: mongodb://localhost:27017
  workers: 8
rooms:
  code_length: 6
`), 0o644))
	t.Setenv("APP_ENV", "production")
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("MIRROR_WORKERS", "2")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	req.Equal(":9090", cfg.Server.Addr)
	req.Equal("mongo", cfg.Mirror.Driver)
	req.Equal("mongodb://localhost:27017", cfg.Mirror.URL)
	req.Equal(2, cfg.Mirror.Workers)
	req.Equal(1024, cfg.Mirror.QueueSize)
	req.Equal(6, cfg.Rooms.CodeLength)
	req.True(cfg.Redis.Enabled)
	req.InDelta(2.5, cfg.RateLimit.RPS, 0.0001)
	req.Equal(15*time.Second, cfg.ReadTimeout())
}
