// Package server exposes the payment router over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
	"github.com/Ortegaa03/vpnchain-router/internal/server/handler"
	"github.com/Ortegaa03/vpnchain-router/internal/server/middleware"
	"github.com/Ortegaa03/vpnchain-router/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimiter is optional; when set, each client IP is limited to
	// RateLimit requests per RateWindow.
	RateLimiter domain.RateLimiter
	RateLimit   int
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Payment    *handler.PaymentHandler
	Settlement *handler.SettlementHandler
	Route      *handler.RouteHandler
	DexInfo    *handler.DexInfoHandler
}

// Server is the HTTP + WebSocket API for the payment router.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer registers all routes on a ServeMux and wires up the middleware
// chain (CORS, logging, auth, rate limiting) and the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Transfer detection.
	mux.HandleFunc("POST /api/detect", handlers.Payment.Detect)

	// Settlement endpoints.
	mux.HandleFunc("POST /api/send", handlers.Settlement.Send)
	mux.HandleFunc("POST /api/swap", handlers.Settlement.Swap)
	mux.HandleFunc("POST /api/refund", handlers.Settlement.Refund)

	// Transaction record lookups.
	mux.HandleFunc("GET /api/transactions", handlers.Settlement.ListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", handlers.Settlement.GetTransaction)

	// Route progress.
	mux.HandleFunc("GET /api/routes/{id}/status", handlers.Route.Status)

	// Market context proxy.
	if handlers.DexInfo != nil {
		mux.HandleFunc("GET /api/dex-info", handlers.DexInfo.TokenPairs)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	if cfg.RateLimiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit, cfg.RateWindow)(h)
	}

	// Auth skips if APIKey is empty.
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		// Settlements confirm synchronously and a swap can chain several
		// confirmations, so responses have no global write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
