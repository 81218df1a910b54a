package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roomchat/internal/broadcast"
	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/config"
	"github.com/roomchat/internal/handler"
	"github.com/roomchat/internal/keylock"
	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/mirror"
	"github.com/roomchat/internal/presence"
	"github.com/roomchat/internal/render"
	"github.com/roomchat/internal/repository"
	"github.com/roomchat/internal/startup"
	"github.com/roomchat/internal/storage"
	"github.com/roomchat/internal/storage/memory"
	"github.com/roomchat/internal/ws"
	"github.com/roomchat/migrations"
)

func main() {
	logger.SetPrefix("chat")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	flag.Parse()

	logger.Info("starting chat service")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	if *dev {
		embeddedDB, err := startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MinConns = 2

	pool, err := startup.ConnectDB(context.Background(), poolCfg, 60*time.Second, "db")
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")
	store := repository.NewStore(pool)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	var (
		sessions storage.SessionStore
		bus      broadcast.Bus
	)
	var bgWg sync.WaitGroup
	if cfg.Redis.Enabled {
		rc, err := startup.ConnectRedis(rootCtx, cfg.Redis.URL, 30*time.Second)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		sessions = rc
		relay := broadcast.NewRedisBus(rc.Raw())
		bus = relay
		bgWg.Add(1)
		go func() {
			defer bgWg.Done()
			relay.Run(rootCtx)
		}()
		logger.Info("redis connected: sessions and broadcast relay")
	} else {
		sessions = memory.NewSessions()
		bus = broadcast.NewLocal()
		logger.Info("redis disabled: in-process sessions and broadcast")
	}
	defer sessions.Close()

	remote, err := startup.ConnectMirror(rootCtx, cfg.Mirror)
	if err != nil {
		// The mirror is optional; the local store stays the source of truth.
		logger.Errorf("mirror unavailable, continuing without it: %v", err)
		remote = nil
	}
	syncer := mirror.NewSyncer(store, remote, mirror.Config{
		Workers:   cfg.Mirror.Workers,
		QueueSize: cfg.Mirror.QueueSize,
		Timeout:   cfg.MirrorTimeout(),
	})
	if syncer.Enabled() && cfg.Mirror.PullOnStart {
		pullCtx, pullCancel := context.WithTimeout(rootCtx, 2*time.Minute)
		if _, err := syncer.Pull(pullCtx); err != nil {
			logger.Errorf("mirror pull: %v", err)
		}
		pullCancel()
	}
	syncer.Start(rootCtx)

	locks := keylock.New()
	engine := chat.New(store, render.NewMarkdown(), presence.New(locks, bus), bus, syncer, locks, chat.Options{
		CodeLength: cfg.Rooms.CodeLength,
	})

	hub := ws.NewHub(engine, bus, ws.Options{
		MaxConns:       cfg.WebSocket.MaxConnections,
		SendBuffer:     cfg.WebSocket.SendBuffer,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	})
	hubCtx, hubCancel := context.WithCancel(rootCtx)
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handler.NewRouter(handler.Deps{
			Engine:      engine,
			Sessions:    sessions,
			SessionTTL:  cfg.SessionTTL(),
			Hub:         hub,
			CORSOrigins: cfg.Server.CORSAllowedOrigins,
			RateRPS:     cfg.RateLimit.RPS,
			RateBurst:   cfg.RateLimit.Burst,
		}),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")

	syncer.Stop()
	if remote != nil {
		if err := remote.Close(shutdownCtx); err != nil {
			logger.Errorf("mirror close: %v", err)
		}
	}
	logger.Info("mirror drained")

	rootCancel()
	bgWg.Wait()
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	files, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		logger.Errorf("list migrations: %v", err)
		os.Exit(1)
	}
	sort.Strings(files)
	for _, f := range files {
		data, err := fs.ReadFile(migrations.Files, f)
		if err != nil {
			logger.Errorf("read migration %s: %v", f, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", f, err)
			os.Exit(1)
		}
	}
	logger.Infof("migrations applied: %d", len(files))
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "roomchat"
		password = "roomchat_secret"
		database = "roomchat"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
