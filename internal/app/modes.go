package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/wagerpool/internal/cache/redis"
	"github.com/alanyoungcy/wagerpool/internal/server"
	"github.com/alanyoungcy/wagerpool/internal/server/handler"
	"github.com/alanyoungcy/wagerpool/internal/server/ws"
)

// shutdownTimeout bounds the graceful HTTP drain on exit.
const shutdownTimeout = 10 * time.Second

// ServeMode runs the accounting core with the redis event bus, the HTTP API,
// and the WebSocket feed. State lives in memory only.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "serve mode: in-memory core with live event feed")
	return a.runServer(ctx, deps)
}

// FullMode runs everything ServeMode does plus postgres persistence and S3
// archiving, which Wire has already attached to the service layer.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "full mode: persistent core with archiving")
	return a.runServer(ctx, deps)
}

// runServer assembles the handlers, WebSocket hub, and HTTP server, then
// blocks until the context is cancelled or a component fails.
func (a *App) runServer(ctx context.Context, deps *Dependencies) error {
	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Channel: redis.EventChannel,
		Mode:    a.cfg.Mode,
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Markets: handler.NewMarketHandler(deps.Service, a.logger),
		Votes:   handler.NewVoteHandler(deps.Service, a.logger),
		Admin:   handler.NewAdminHandler(deps.Service, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := hub.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	a.logger.InfoContext(ctx, "application running",
		slog.Int("port", a.cfg.Server.Port),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
