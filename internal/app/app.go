// Package app wires the sync core, the local cache and the UI-facing HTTP
// server into one explicitly constructed lifecycle. Nothing here is a
// process-wide singleton: the engine and store are built, bound and passed
// by reference.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"emberpost/internal/retention"
	"emberpost/pkg/cache"
	"emberpost/pkg/config"
	"emberpost/pkg/engine"
	"emberpost/pkg/letters"
	"emberpost/pkg/logger"
	"emberpost/pkg/remote"
)

// App encapsulates the daemon components and lifecycle.
type App struct {
	cfg     *config.Config
	version string

	cache  *cache.Cache
	engine *engine.Engine
	store  *letters.Store
}

// New initializes resources that do not require a running context: config
// validation, the local cache, the remote gateway and the letter store. It
// does not start timers or the HTTP server; call Run for those.
func New(cfg *config.Config, version string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	c, err := cache.Open(cfg.Storage.DBPath,
		cache.WithMaxSnapshotSize(cfg.Storage.MaxSnapshotSize.Int64()))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache at %s: %w", cfg.Storage.DBPath, err)
	}

	rc := remote.New(cfg.Remote.Endpoint, cfg.PingTimeout())
	eng := engine.New(rc, c, engine.WithIntervals(cfg.SyncInterval(), cfg.RenderInterval()))
	store := letters.New(eng,
		letters.WithNotify(func(message, level string) {
			logger.Info("user_notification", "message", message, "level", level)
		}))
	eng.Bind(store)

	return &App{cfg: cfg, version: version, cache: c, engine: eng, store: store}, nil
}

// Engine exposes the sync engine, mainly for tests and tooling.
func (a *App) Engine() *engine.Engine { return a.engine }

// Store exposes the letter facade.
func (a *App) Store() *letters.Store { return a.store }

// Run starts the engine, the retention sweep and the HTTP server, and
// blocks until ctx is canceled or a fatal server error occurs. On cancel
// the HTTP server drains in-flight requests before Run returns.
func (a *App) Run(ctx context.Context) error {
	a.engine.Start(ctx)
	defer a.engine.Stop()

	stopRetention, err := retention.Start(ctx, a.cfg.Retention, a.engine)
	if err != nil {
		return err
	}
	defer stopRetention()

	srv, errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err)
		}
		logger.Info("http_server_stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases the local cache.
func (a *App) Close() error {
	return a.cache.Close()
}
