package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/polydeck/polydeck/internal/blob/s3"
	"github.com/polydeck/polydeck/internal/cache/memory"
	"github.com/polydeck/polydeck/internal/cache/redis"
	"github.com/polydeck/polydeck/internal/config"
	"github.com/polydeck/polydeck/internal/domain"
	"github.com/polydeck/polydeck/internal/market"
	"github.com/polydeck/polydeck/internal/platform/polymarket"
	"github.com/polydeck/polydeck/internal/store/postgres"
	"github.com/polydeck/polydeck/internal/syncer"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Upstream clients
	Gamma *polymarket.GammaClient
	Clob  *polymarket.ClobClient
	Data  *polymarket.DataClient

	// Stores
	PG           *postgres.Client
	EventStore   domain.EventStore
	MarketStore  domain.MarketStore
	SyncLogStore domain.SyncLogStore

	// Cache
	Cache domain.Cache

	// Pipeline
	MarketService *market.Service
	Syncer        *syncer.Syncer
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Gamma: polymarket.NewGammaClient(cfg.Polymarket.GammaHost),
		Clob:  polymarket.NewClobClient(cfg.Polymarket.ClobHost),
		Data:  polymarket.NewDataClient(cfg.Polymarket.DataHost),
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	deps.PG = pgClient
	pool := pgClient.Pool()
	deps.EventStore = postgres.NewEventStore(pool)
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.SyncLogStore = postgres.NewSyncLogStore(pool)

	// --- Cache ---
	switch cfg.Cache.Backend {
	case "", "memory":
		deps.Cache = memory.New()
	case "redis":
		redisCache, err := redis.New(ctx, redis.Config{
			Addr:       cfg.Cache.Addr,
			Password:   cfg.Cache.Password,
			DB:         cfg.Cache.DB,
			PoolSize:   cfg.Cache.PoolSize,
			TLSEnabled: cfg.Cache.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisCache.Close() })
		deps.Cache = redisCache
	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unsupported cache backend %q", cfg.Cache.Backend)
	}

	// --- Aggregation pipeline ---
	feed := polymarket.NewFeedClient(cfg.Polymarket.WsHost, cfg.Enricher.Timeout.Duration)
	resolver := market.NewResolver(deps.Gamma, cfg.Sync.BatchLimit, logger)
	enricher := market.NewEnricher(feed, logger)
	deps.MarketService = market.NewService(
		resolver,
		enricher,
		deps.Cache,
		deps.MarketStore,
		deps.Gamma,
		cfg.Cache.TTL.Duration,
		logger,
	)

	// --- Snapshot archiver (optional) ---
	var archiver syncer.Archiver
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		archiver = s3blob.NewArchiver(s3Client)
	}

	deps.Syncer = syncer.New(
		deps.MarketService,
		deps.EventStore,
		deps.MarketStore,
		deps.SyncLogStore,
		deps.Cache,
		archiver,
		cfg.Sync.BatchLimit,
		logger,
	)

	return deps, cleanup, nil
}
