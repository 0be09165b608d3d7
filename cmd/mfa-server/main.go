// Command mfa-server serves the password + TOTP flow over HTTP.
//
// Settings come from defaults, an optional TOML file (-config or
// GOMFA_CONFIG), GOMFA_* environment variables and flags, in that order.
//
//	mfa-server -redis-embedded -store sqlite -dsn file:users.db
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/httpapi"
	"github.com/MrEthical07/goMFA/internal/config"
	"github.com/MrEthical07/goMFA/internal/logging"
	"github.com/MrEthical07/goMFA/metrics/export/prometheus"
	"github.com/MrEthical07/goMFA/userstore"
)

const startupPingTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, getenv func(string) string, logOut io.Writer) error {
	cfg, err := config.Load(args, getenv)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
	if err != nil {
		return err
	}

	rdb, closeRedis, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	users, closeStore, err := openUserStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	var fallbackKey []byte
	if cfg.Auth.SigningKey == "" {
		fallbackKey = make([]byte, 32)
		if _, err := rand.Read(fallbackKey); err != nil {
			return fmt.Errorf("generate signing key: %w", err)
		}
		logger.Warn("no signing key configured; tokens will not survive a restart")
	}

	engine, err := goMFA.New().
		WithConfig(cfg.EngineConfig(fallbackKey)).
		WithRedis(rdb).
		WithUserStore(users).
		WithLogger(logger.With("component", "engine")).
		WithAuditSink(goMFA.NewSlogSink(logger.With("component", "audit"))).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	// startup checks finish even if a signal has already arrived
	pingCtx, cancelPing := context.WithTimeout(context.WithoutCancel(ctx), startupPingTimeout)
	err = engine.Ping(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("session backend: %w", err)
	}

	api := httpapi.New(engine, httpapi.Options{
		CookieName:   cfg.Server.CookieName,
		CookieSecure: cfg.Server.CookieSecure,
		TrustProxy:   cfg.Server.TrustProxy,
		Logger:       logger.With("component", "http"),
		Metrics:      prometheus.NewExporter(engine).Handler(),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("listening", "addr", cfg.Server.Addr, "store", cfg.Store.Driver)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openRedis(cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.Embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		logger.Warn("using embedded redis; sessions are lost on exit", "addr", mr.Addr())
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return client, func() { _ = client.Close() }, nil
}

func openUserStore(ctx context.Context, cfg config.StoreConfig) (goMFA.UserStore, func(), error) {
	var (
		store goMFA.UserStore
		db    *sql.DB
		err   error
	)
	switch cfg.Driver {
	case config.StoreMemory:
		return userstore.NewMemory(), func() {}, nil
	case config.StoreSQLite:
		store, db, err = userstore.OpenSQLite(ctx, cfg.DSN)
	case config.StorePostgres:
		store, db, err = userstore.OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return store, func() { _ = db.Close() }, nil
}
