package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polydeck/polydeck/internal/server"
	"github.com/polydeck/polydeck/internal/server/handler"
)

// shutdownGrace bounds how long in-flight requests may run after the context
// is cancelled.
const shutdownGrace = 10 * time.Second

// ServeMode runs the HTTP API only. Syncs still happen when triggered
// through the API.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")
	return a.runServer(ctx, deps)
}

// SyncMode runs the periodic sync job without the HTTP API.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sync mode")

	err := deps.Syncer.Run(ctx, a.cfg.Sync.Interval.Duration, a.cfg.Sync.StartupDelay.Duration)
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("sync loop: %w", err)
}

// FullMode runs the HTTP API and the periodic sync job together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.runServer(ctx, deps)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	if a.cfg.Sync.Enabled {
		g.Go(func() error {
			err := deps.Syncer.Run(ctx, a.cfg.Sync.Interval.Duration, a.cfg.Sync.StartupDelay.Duration)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("sync loop: %w", err)
		})
	} else {
		a.logger.InfoContext(ctx, "periodic sync disabled")
	}

	return g.Wait()
}

// runServer builds the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (a *App) runServer(ctx context.Context, deps *Dependencies) error {
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.PG.Pool(), a.logger),
		Markets:   handler.NewMarketHandler(deps.MarketService, deps.Clob, a.logger),
		Positions: handler.NewPositionHandler(deps.Data, a.logger),
		Sync:      handler.NewSyncHandler(deps.Syncer, deps.SyncLogStore, a.logger),
	}

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, a.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
		return <-errCh
	}
}
