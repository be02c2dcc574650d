// Package server assembles the HTTP API: routes, middleware chain, and the
// optional WebSocket event feed.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/wagerpool/internal/server/handler"
	"github.com/alanyoungcy/wagerpool/internal/server/middleware"
	"github.com/alanyoungcy/wagerpool/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Votes   *handler.VoteHandler
	Admin   *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server for the wagering pool.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (CORS, logging, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required by convention; auth middleware still
	// applies when an API key is configured).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market discovery.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/stats", handlers.Markets.GetStats)
	mux.HandleFunc("GET /api/markets/{id}/positions/{address}", handlers.Markets.GetPosition)
	mux.HandleFunc("GET /api/markets/{id}/events", handlers.Markets.ListEvents)

	// Market lifecycle.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("POST /api/markets/{id}/votes", handlers.Votes.CastVote)
	mux.HandleFunc("POST /api/markets/{id}/claims", handlers.Votes.Claim)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Admin.Resolve)
	mux.HandleFunc("POST /api/markets/{id}/cancel", handlers.Admin.Cancel)

	// Fee configuration.
	mux.HandleFunc("PUT /api/markets/{id}/fee", handlers.Admin.SetMarketFee)
	mux.HandleFunc("GET /api/config", handlers.Admin.GetConfig)
	mux.HandleFunc("PUT /api/config/fee", handlers.Admin.SetDefaultFee)
	mux.HandleFunc("PUT /api/config/fee-collector", handlers.Admin.SetFeeRecipient)

	// WebSocket event feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
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
