// Package syncer orchestrates periodic catalog syncs: fetch each view,
// persist events then markets, invalidate read caches, and record one sync
// log per run.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/polydeck/polydeck/internal/domain"
	"github.com/polydeck/polydeck/internal/market"
)

// upsertWorkers bounds concurrent market writes per run.
const upsertWorkers = 8

// warnSampleLimit caps per-run failure warnings so a bad batch cannot flood
// the log.
const warnSampleLimit = 5

// Fetcher runs the aggregation pipeline for one view without caching.
type Fetcher interface {
	FetchForSync(ctx context.Context, view string, limit int) ([]domain.Market, []domain.Event, error)
}

// Archiver persists one snapshot object per run.
type Archiver interface {
	Archive(ctx context.Context, runID string, at time.Time, markets []domain.Market) (string, error)
}

// Syncer coordinates sync runs. At most one run executes at a time; a
// trigger arriving mid-run is rejected with domain.ErrSyncInProgress.
type Syncer struct {
	fetcher    Fetcher
	events     domain.EventStore
	markets    domain.MarketStore
	logs       domain.SyncLogStore
	cache      domain.Cache
	archiver   Archiver // nil disables snapshot archival
	batchLimit int
	logger     *slog.Logger

	// now is swappable for tests.
	now func() time.Time

	mu      sync.Mutex
	running bool
}

// New creates a Syncer. archiver may be nil.
func New(
	fetcher Fetcher,
	events domain.EventStore,
	markets domain.MarketStore,
	logs domain.SyncLogStore,
	cache domain.Cache,
	archiver Archiver,
	batchLimit int,
	logger *slog.Logger,
) *Syncer {
	return &Syncer{
		fetcher:    fetcher,
		events:     events,
		markets:    markets,
		logs:       logs,
		cache:      cache,
		archiver:   archiver,
		batchLimit: batchLimit,
		logger:     logger.With(slog.String("component", "syncer")),
		now:        time.Now,
	}
}

// syncViews lists the views each run refreshes: the trending feed plus every
// static category.
func syncViews() []string {
	views := []string{string(domain.ViewTrending)}
	for _, cat := range domain.Categories {
		if cat == domain.CategoryTrending {
			continue
		}
		views = append(views, string(cat))
	}
	return views
}

// Run executes sync runs on a repeating interval until the context is
// cancelled. The first run waits startupDelay so dependencies can settle.
func (s *Syncer) Run(ctx context.Context, interval, startupDelay time.Duration) error {
	if startupDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(startupDelay):
		}
	}

	if _, err := s.SyncOnce(ctx); err != nil && !errors.Is(err, domain.ErrSyncInProgress) {
		s.logger.Error("sync run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SyncOnce(ctx); err != nil && !errors.Is(err, domain.ErrSyncInProgress) {
				s.logger.Error("sync run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// SyncOnce executes a single sync run and returns its log entry. Individual
// view or row failures are counted, not fatal; the run fails only when every
// view fetch fails or the run cannot be recorded.
func (s *Syncer) SyncOnce(ctx context.Context) (domain.SyncLog, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return domain.SyncLog{}, domain.ErrSyncInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := s.now()
	runID := uuid.New().String()
	logger := s.logger.With(slog.String("run_id", runID))
	logger.Info("sync run starting")

	markets, events, fetchErr := s.collect(ctx, logger)
	if fetchErr != nil {
		return s.finish(ctx, logger, domain.SyncLog{
			ID:        runID,
			Type:      "catalog",
			Status:    domain.SyncStatusFailed,
			Error:     fetchErr.Error(),
			Duration:  s.now().Sub(start),
			CreatedAt: s.now(),
		}, fetchErr)
	}

	synced, failed := s.persist(ctx, logger, markets, events)

	s.invalidate(ctx, logger)

	if s.archiver != nil && len(markets) > 0 {
		if key, err := s.archiver.Archive(ctx, runID, start, markets); err != nil {
			logger.Warn("snapshot archive failed", slog.String("error", err.Error()))
		} else {
			logger.Info("snapshot archived", slog.String("key", key))
		}
	}

	entry := domain.SyncLog{
		ID:        runID,
		Type:      "catalog",
		Status:    domain.SyncStatusSuccess,
		Count:     synced,
		Failed:    failed,
		Duration:  s.now().Sub(start),
		CreatedAt: s.now(),
	}
	return s.finish(ctx, logger, entry, nil)
}

// collect fetches every sync view and merges the results, deduplicating
// markets by canonical id and events by id. A view that fails is skipped;
// only all views failing makes the run fail.
func (s *Syncer) collect(ctx context.Context, logger *slog.Logger) ([]domain.Market, []domain.Event, error) {
	var (
		markets   []domain.Market
		events    []domain.Event
		seen      = make(map[string]struct{})
		seenEvent = make(map[string]struct{})
		failures  []error
	)

	views := syncViews()
	for _, view := range views {
		vm, ve, err := s.fetcher.FetchForSync(ctx, view, s.batchLimit)
		if err != nil {
			logger.Warn("view fetch failed",
				slog.String("view", view),
				slog.String("error", err.Error()),
			)
			failures = append(failures, fmt.Errorf("view %s: %w", view, err))
			continue
		}
		for _, e := range ve {
			if _, dup := seenEvent[e.ID]; dup {
				continue
			}
			seenEvent[e.ID] = struct{}{}
			events = append(events, e)
		}
		for _, m := range vm {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			markets = append(markets, m)
		}
	}

	if len(failures) == len(views) {
		return nil, nil, fmt.Errorf("syncer: all view fetches failed: %w", errors.Join(failures...))
	}
	return markets, events, nil
}

// persist upserts parent events first, then markets concurrently. Markets
// whose event failed to persist are skipped and counted as failures.
func (s *Syncer) persist(ctx context.Context, logger *slog.Logger, markets []domain.Market, events []domain.Event) (synced, failed int) {
	var (
		okEvents  = make(map[string]struct{}, len(events))
		warns     atomic.Int64
		syncedCnt atomic.Int64
		failedCnt atomic.Int64
	)

	warn := func(msg string, attrs ...slog.Attr) {
		if warns.Add(1) <= warnSampleLimit {
			logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
		}
	}

	for _, e := range events {
		if err := s.events.Upsert(ctx, e); err != nil {
			warn("event upsert failed",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		okEvents[e.ID] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertWorkers)

	for _, m := range markets {
		if _, ok := okEvents[m.EventID]; !ok {
			failedCnt.Add(1)
			warn("market skipped, parent event not persisted",
				slog.String("market_id", m.ID),
				slog.String("event_id", m.EventID),
			)
			continue
		}

		g.Go(func() error {
			if err := s.upsertMarket(gctx, m); err != nil {
				failedCnt.Add(1)
				warn("market upsert failed",
					slog.String("market_id", m.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			syncedCnt.Add(1)
			return nil
		})
	}

	// Workers never return errors; Wait only joins them.
	_ = g.Wait()

	if suppressed := warns.Load() - warnSampleLimit; suppressed > 0 {
		logger.Warn("additional persistence warnings suppressed", slog.Int64("count", suppressed))
	}
	return int(syncedCnt.Load()), int(failedCnt.Load())
}

// upsertMarket updates the row matched by upstream id, or inserts a new row
// after checking that no existing row holds the same canonical id or slug
// under a different upstream id.
func (s *Syncer) upsertMarket(ctx context.Context, m domain.Market) error {
	updated, err := s.markets.UpdateByUpstreamID(ctx, m)
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	conflict, err := s.markets.ExistsConflicting(ctx, m)
	if err != nil {
		return err
	}
	if conflict {
		return fmt.Errorf("canonical id or slug %s already claimed", m.ID)
	}

	return s.markets.Insert(ctx, m)
}

func (s *Syncer) invalidate(ctx context.Context, logger *slog.Logger) {
	for _, prefix := range []string{market.CacheKeyListPrefix, market.CacheKeyDetailPrefix} {
		if err := s.cache.DeleteByPrefix(ctx, prefix); err != nil {
			logger.Warn("cache invalidation failed",
				slog.String("prefix", prefix),
				slog.String("error", err.Error()),
			)
		}
	}
}

// finish records the run outcome and returns it alongside runErr.
func (s *Syncer) finish(ctx context.Context, logger *slog.Logger, entry domain.SyncLog, runErr error) (domain.SyncLog, error) {
	if err := s.logs.Insert(ctx, entry); err != nil {
		logger.Error("sync log insert failed", slog.String("error", err.Error()))
		if runErr == nil {
			runErr = fmt.Errorf("syncer: record run: %w", err)
		}
	}

	logger.Info("sync run finished",
		slog.String("status", string(entry.Status)),
		slog.Int("count", entry.Count),
		slog.Int("failed", entry.Failed),
		slog.Duration("duration", entry.Duration),
	)
	return entry, runErr
}
