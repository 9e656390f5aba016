package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polydeck/polydeck/internal/cache/memory"
	"github.com/polydeck/polydeck/internal/domain"
	"github.com/polydeck/polydeck/internal/platform/polymarket"
)

type fakeMarketStore struct {
	markets  map[string]domain.Market
	getErr   error
	getCalls int
}

func (f *fakeMarketStore) UpdateByUpstreamID(context.Context, domain.Market) (bool, error) {
	return false, nil
}

func (f *fakeMarketStore) ExistsConflicting(context.Context, domain.Market) (bool, error) {
	return false, nil
}

func (f *fakeMarketStore) Insert(context.Context, domain.Market) error { return nil }

func (f *fakeMarketStore) GetByIDOrSlug(_ context.Context, idOrSlug string) (domain.Market, error) {
	f.getCalls++
	if f.getErr != nil {
		return domain.Market{}, f.getErr
	}
	if m, ok := f.markets[idOrSlug]; ok {
		return m, nil
	}
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketStore) ListByCategory(context.Context, domain.Category, int, int) ([]domain.Market, error) {
	return nil, nil
}

type fakeDetailCatalog struct {
	bySlug      map[string]polymarket.APIMarket
	byCondition map[string]polymarket.APIMarket
	slugCalls   int
}

func (f *fakeDetailCatalog) GetMarketBySlug(_ context.Context, slug string) (polymarket.APIMarket, error) {
	f.slugCalls++
	if m, ok := f.bySlug[slug]; ok {
		return m, nil
	}
	return polymarket.APIMarket{}, domain.ErrNotFound
}

func (f *fakeDetailCatalog) GetMarketByConditionID(_ context.Context, id string) (polymarket.APIMarket, error) {
	if m, ok := f.byCondition[id]; ok {
		return m, nil
	}
	return polymarket.APIMarket{}, domain.ErrNotFound
}

func newTestService(catalog *fakeCatalog, store *fakeMarketStore, detail *fakeDetailCatalog) *Service {
	return NewService(
		NewResolver(catalog, 100, testLogger()),
		NewEnricher(&fakeFeed{}, testLogger()),
		memory.New(),
		store,
		detail,
		time.Minute,
		testLogger(),
	)
}

func TestListMarketsMemoizesByRequestShape(t *testing.T) {
	now := time.Now().UTC()
	catalog := &fakeCatalog{events: []polymarket.APIEvent{
		eventWith("1", liveMarket("a", 30*time.Hour, now)),
	}}
	svc := newTestService(catalog, &fakeMarketStore{}, &fakeDetailCatalog{})

	first, err := svc.ListMarkets(context.Background(), "trending", 20, 0, "")
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if len(first) != 1 || first[0].ID != "0xa" {
		t.Fatalf("markets = %+v, want single market 0xa", first)
	}

	if _, err := svc.ListMarkets(context.Background(), "trending", 20, 0, ""); err != nil {
		t.Fatalf("ListMarkets (cached): %v", err)
	}
	if catalog.listCalls != 1 {
		t.Errorf("catalog hit %d times, want 1 (second read served from cache)", catalog.listCalls)
	}

	// A different request shape misses the cache.
	if _, err := svc.ListMarkets(context.Background(), "trending", 20, 20, ""); err != nil {
		t.Fatalf("ListMarkets (offset 20): %v", err)
	}
	if catalog.listCalls != 2 {
		t.Errorf("catalog hit %d times, want 2 after new offset", catalog.listCalls)
	}
}

func TestListMarketsErrorNotCached(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("upstream down")}
	svc := newTestService(catalog, &fakeMarketStore{}, &fakeDetailCatalog{})

	if _, err := svc.ListMarkets(context.Background(), "trending", 20, 0, ""); err == nil {
		t.Fatal("expected error from failed fetch")
	}

	catalog.err = nil
	catalog.events = []polymarket.APIEvent{
		eventWith("1", liveMarket("a", 30*time.Hour, time.Now().UTC())),
	}
	got, err := svc.ListMarkets(context.Background(), "trending", 20, 0, "")
	if err != nil {
		t.Fatalf("ListMarkets after recovery: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("markets = %+v, want 1 after recovery", got)
	}
}

func TestGetMarketDetailFromStore(t *testing.T) {
	store := &fakeMarketStore{markets: map[string]domain.Market{
		"btc-150k": {ID: "0x1", Slug: "btc-150k", Question: "Bitcoin above $150k?"},
	}}
	detail := &fakeDetailCatalog{}
	svc := newTestService(&fakeCatalog{}, store, detail)

	m, found, err := svc.GetMarketDetail(context.Background(), "btc-150k")
	if err != nil {
		t.Fatalf("GetMarketDetail: %v", err)
	}
	if !found || m.ID != "0x1" {
		t.Fatalf("found=%v market=%+v, want stored market 0x1", found, m)
	}
	if detail.slugCalls != 0 {
		t.Errorf("catalog consulted %d times for a persisted market, want 0", detail.slugCalls)
	}

	// Second read comes from the cache.
	if _, _, err := svc.GetMarketDetail(context.Background(), "btc-150k"); err != nil {
		t.Fatalf("GetMarketDetail (cached): %v", err)
	}
	if store.getCalls != 1 {
		t.Errorf("store hit %d times, want 1", store.getCalls)
	}
}

func TestGetMarketDetailFallsBackToCatalog(t *testing.T) {
	now := time.Now().UTC()
	detail := &fakeDetailCatalog{byCondition: map[string]polymarket.APIMarket{
		"0xabc": liveMarket("abc", 30*time.Hour, now),
	}}
	svc := newTestService(&fakeCatalog{}, &fakeMarketStore{}, detail)

	m, found, err := svc.GetMarketDetail(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("GetMarketDetail: %v", err)
	}
	if !found || m.ID != "0xabc" {
		t.Fatalf("found=%v market=%+v, want live market 0xabc", found, m)
	}
}

func TestGetMarketDetailAbsentNotCached(t *testing.T) {
	detail := &fakeDetailCatalog{}
	svc := newTestService(&fakeCatalog{}, &fakeMarketStore{}, detail)

	for i := 0; i < 2; i++ {
		m, found, err := svc.GetMarketDetail(context.Background(), "nope")
		if err != nil {
			t.Fatalf("GetMarketDetail: %v", err)
		}
		if found || m.ID != "" {
			t.Fatalf("found=%v market=%+v, want absent", found, m)
		}
	}
	if detail.slugCalls != 2 {
		t.Errorf("catalog consulted %d times, want 2 (absence is never cached)", detail.slugCalls)
	}
}

func TestGetMarketDetailStoreFailure(t *testing.T) {
	store := &fakeMarketStore{getErr: errors.New("connection refused")}
	svc := newTestService(&fakeCatalog{}, store, &fakeDetailCatalog{})

	_, found, err := svc.GetMarketDetail(context.Background(), "btc-150k")
	if err == nil {
		t.Fatal("expected error from store failure")
	}
	if found {
		t.Error("found = true on failure, want false")
	}
}

func TestViews(t *testing.T) {
	svc := newTestService(&fakeCatalog{}, &fakeMarketStore{}, &fakeDetailCatalog{})

	views := svc.Views()
	seen := make(map[string]bool, len(views))
	for _, v := range views {
		if seen[v] {
			t.Errorf("duplicate view %q", v)
		}
		seen[v] = true
	}
	for _, want := range []string{"trending", "breaking", "ending-soon", "sports", "crypto", "politics"} {
		if !seen[want] {
			t.Errorf("views %v missing %q", views, want)
		}
	}
}
