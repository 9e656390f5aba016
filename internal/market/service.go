package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/polydeck/polydeck/internal/domain"
	"github.com/polydeck/polydeck/internal/platform/polymarket"
)

// Cache key prefixes for the on-demand read paths. The sync job invalidates
// both prefixes after every batch.
const (
	CacheKeyListPrefix   = "markets:list:"
	CacheKeyDetailPrefix = "markets:detail:"
)

// DetailCatalog is the slice of the Gamma client used for single-market
// lookups when a record is not yet persisted.
type DetailCatalog interface {
	GetMarketBySlug(ctx context.Context, slug string) (polymarket.APIMarket, error)
	GetMarketByConditionID(ctx context.Context, conditionID string) (polymarket.APIMarket, error)
}

// Service is the downstream-facing facade over the aggregation pipeline:
// resolve, enrich, and memoize market listings; look up market detail.
type Service struct {
	resolver *Resolver
	enricher *Enricher
	cache    domain.Cache
	store    domain.MarketStore
	detail   DetailCatalog
	cacheTTL time.Duration
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates the market Service.
func NewService(
	resolver *Resolver,
	enricher *Enricher,
	cache domain.Cache,
	store domain.MarketStore,
	detail DetailCatalog,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		resolver: resolver,
		enricher: enricher,
		cache:    cache,
		store:    store,
		detail:   detail,
		cacheTTL: cacheTTL,
		logger:   logger.With(slog.String("component", "market_service")),
		now:      time.Now,
	}
}

// ListMarkets returns the markets for a view, memoized by request shape.
// A non-empty search term overrides the view.
func (s *Service) ListMarkets(ctx context.Context, view string, limit, offset int, search string) ([]domain.Market, error) {
	key := fmt.Sprintf("%s%s:%d:%d:%s", CacheKeyListPrefix, view, limit, offset, search)

	data, err := s.cache.GetOrCompute(ctx, key, s.cacheTTL, func(ctx context.Context) ([]byte, error) {
		markets, err := s.fetchFresh(ctx, view, limit, offset, search)
		if err != nil {
			return nil, err
		}
		return json.Marshal(markets)
	})
	if err != nil {
		return nil, err
	}

	var markets []domain.Market
	if err := json.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("market: decode cached listing: %w", err)
	}
	return markets, nil
}

// FetchForSync runs the pipeline for one view without touching the cache and
// returns the parent events alongside the markets, for persistence.
func (s *Service) FetchForSync(ctx context.Context, view string, limit int) ([]domain.Market, []domain.Event, error) {
	markets, events, err := s.resolver.FetchWithEvents(ctx, view, limit, 0, s.now())
	if err != nil {
		return nil, nil, err
	}
	return s.enricher.Enrich(ctx, markets), events, nil
}

// GetMarketDetail looks up one market by canonical id or slug. It checks the
// cache, then the persistent store, then the upstream catalog. An absent
// market is reported distinctly from a transport failure via the bool.
func (s *Service) GetMarketDetail(ctx context.Context, idOrSlug string) (domain.Market, bool, error) {
	key := CacheKeyDetailPrefix + idOrSlug

	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var m domain.Market
		if err := json.Unmarshal(data, &m); err == nil {
			return m, true, nil
		}
	}

	m, found, err := s.lookupDetail(ctx, idOrSlug)
	if err != nil {
		return domain.Market{}, false, err
	}
	if !found {
		return domain.Market{}, false, nil
	}

	// Absent results are not cached; only hits are.
	if data, err := json.Marshal(m); err == nil {
		if cacheErr := s.cache.Set(ctx, key, data, s.cacheTTL); cacheErr != nil {
			s.logger.Warn("detail cache set failed",
				slog.String("key", key),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return m, true, nil
}

func (s *Service) lookupDetail(ctx context.Context, idOrSlug string) (domain.Market, bool, error) {
	m, err := s.store.GetByIDOrSlug(ctx, idOrSlug)
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Market{}, false, fmt.Errorf("market: detail store lookup %q: %w", idOrSlug, err)
	}

	// Not persisted yet: resolve against the live catalog.
	raw, err := s.detail.GetMarketBySlug(ctx, idOrSlug)
	if errors.Is(err, domain.ErrNotFound) {
		raw, err = s.detail.GetMarketByConditionID(ctx, idOrSlug)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Market{}, false, nil
		}
		return domain.Market{}, false, fmt.Errorf("market: detail catalog lookup %q: %w", idOrSlug, err)
	}

	normalized := Normalize(raw, polymarket.APIEvent{}, s.now())
	enriched := s.enricher.Enrich(ctx, []domain.Market{normalized})
	return enriched[0], true, nil
}

// Views lists every logical view name a client may request.
func (s *Service) Views() []string {
	views := []string{
		string(domain.ViewTrending),
		string(domain.ViewBreaking),
		string(domain.ViewEndingSoon),
		string(domain.ViewHighestVolume),
		string(domain.ViewNew),
		string(domain.ViewSports),
	}
	for _, cat := range domain.Categories {
		if cat == domain.CategoryTrending || cat == domain.CategorySports {
			continue
		}
		views = append(views, strings.ToLower(string(cat)))
	}
	return views
}

func (s *Service) fetchFresh(ctx context.Context, view string, limit, offset int, search string) ([]domain.Market, error) {
	markets, err := s.resolver.Fetch(ctx, view, limit, offset, search, s.now())
	if err != nil {
		return nil, err
	}
	return s.enricher.Enrich(ctx, markets), nil
}
