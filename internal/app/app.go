// Package app owns the application lifecycle: it wires the chain clients,
// stores, services, and HTTP surface together and runs the goroutines the
// configured operating mode calls for.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ortegaa03/vpnchain-router/internal/config"
	"github.com/Ortegaa03/vpnchain-router/internal/server"
	"github.com/Ortegaa03/vpnchain-router/internal/server/handler"
	"github.com/Ortegaa03/vpnchain-router/internal/server/ws"
	"github.com/Ortegaa03/vpnchain-router/internal/service"
)

// shutdownGrace caps how long in-flight requests get on shutdown.
const shutdownGrace = 15 * time.Second

// App is the root application object. It owns the configuration, logger, and
// cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the goroutines for the configured mode,
// and blocks until the context is cancelled.
//
// Modes: "server" runs the HTTP API and WebSocket hub, "archive" runs only
// the cold-storage archiver, "full" runs both.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	mode := strings.ToLower(a.cfg.Mode)
	runServer := mode == "server" || mode == "full"
	runArchiver := mode == "archive" || mode == "full"
	if !runServer && !runArchiver {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	g, ctx := errgroup.WithContext(ctx)

	if runArchiver {
		g.Go(func() error {
			a.logger.InfoContext(ctx, "archiver started",
				slog.Duration("interval", a.cfg.S3.ArchiveInterval.Duration),
			)
			return deps.Archiver.Run(ctx)
		})
	}

	if runServer && a.cfg.Server.Enabled {
		g.Go(func() error { return a.runServer(ctx, deps) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// runServer assembles the HTTP surface and serves until ctx is cancelled.
func (a *App) runServer(ctx context.Context, deps *Dependencies) error {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, service.SignalChannel, a.logger)
		go hub.Run(ctx)
	}

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(deps.Health, a.logger),
		Payment:    handler.NewPaymentHandler(deps.Payments, a.logger),
		Settlement: handler.NewSettlementHandler(deps.Settlements, a.logger),
		Route:      handler.NewRouteHandler(deps.Routes, a.logger),
	}
	if deps.DexScreener != nil {
		handlers.DexInfo = handler.NewDexInfoHandler(deps.DexScreener, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimiter: deps.RateLimiter,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, a.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", slog.Any("error", err))
		}
		return ctx.Err()
	}
}

// Close tears down all resources in reverse registration order. Safe to call
// more than once.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
