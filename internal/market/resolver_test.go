package market

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/polydeck/polydeck/internal/platform/polymarket"
)

type fakeCatalog struct {
	events      []polymarket.APIEvent
	err         error
	listCalls   int
	searchCalls int
	lastQuery   polymarket.EventQuery
	lastTerm    string
}

func (f *fakeCatalog) ListEvents(_ context.Context, q polymarket.EventQuery) ([]polymarket.APIEvent, error) {
	f.listCalls++
	f.lastQuery = q
	return f.events, f.err
}

func (f *fakeCatalog) SearchEvents(_ context.Context, term string, _ int) ([]polymarket.APIEvent, error) {
	f.searchCalls++
	f.lastTerm = term
	return f.events, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// eventWith wraps a single market in a parent event.
func eventWith(id string, m polymarket.APIMarket) polymarket.APIEvent {
	return polymarket.APIEvent{
		ID:      id,
		Slug:    "event-" + id,
		Markets: []polymarket.APIMarket{m},
	}
}

func liveMarket(id string, endIn time.Duration, now time.Time) polymarket.APIMarket {
	return polymarket.APIMarket{
		ID:          id,
		ConditionID: "0x" + id,
		Slug:        "market-" + id,
		Active:      true,
		Volume:      100,
		Volume24h:   10,
		Liquidity:   50,
		EndDate:     now.Add(endIn).Format(time.RFC3339),
	}
}

func TestFetchEndingSoonWindow(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	catalog := &fakeCatalog{events: []polymarket.APIEvent{
		eventWith("a", liveMarket("a", 30*time.Hour, now)),
		eventWith("b", liveMarket("b", 2*time.Hour, now)),
		eventWith("c", liveMarket("c", 60*time.Hour, now)), // beyond horizon
		eventWith("d", liveMarket("d", -time.Hour, now)),   // already ended
	}}
	r := NewResolver(catalog, 100, testLogger())

	got, err := r.Fetch(context.Background(), "ending-soon", 10, 0, "", now)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d markets, want 2: %+v", len(got), got)
	}
	// Sorted by end time ascending.
	if got[0].ID != "0xb" || got[1].ID != "0xa" {
		t.Errorf("order = %q, %q, want b then a", got[0].ID, got[1].ID)
	}
	for _, m := range got {
		if m.EndDate == nil || !m.EndDate.After(now) || m.EndDate.After(now.Add(48*time.Hour)) {
			t.Errorf("market %s end %v outside (now, now+48h]", m.ID, m.EndDate)
		}
	}
}

func TestFetchBreakingDropsQuietMarkets(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	quiet := liveMarket("q", 72*time.Hour, now)
	quiet.Volume24h = 0
	loud := liveMarket("l", 72*time.Hour, now)
	loud.Volume24h = 900
	medium := liveMarket("m", 72*time.Hour, now)
	medium.Volume24h = 40

	catalog := &fakeCatalog{events: []polymarket.APIEvent{
		eventWith("1", quiet),
		eventWith("2", medium),
		eventWith("3", loud),
	}}
	r := NewResolver(catalog, 100, testLogger())

	got, err := r.Fetch(context.Background(), "breaking", 10, 0, "", now)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d markets, want 2", len(got))
	}
	if got[0].ID != "0xl" || got[1].ID != "0xm" {
		t.Errorf("order = %q, %q, want volume24h descending", got[0].ID, got[1].ID)
	}
}

func TestFetchSearchOverridesView(t *testing.T) {
	now := time.Now()
	catalog := &fakeCatalog{events: []polymarket.APIEvent{
		eventWith("1", liveMarket("a", 72*time.Hour, now)),
	}}
	r := NewResolver(catalog, 100, testLogger())

	got, err := r.Fetch(context.Background(), "sports", 10, 0, "bitcoin", now)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if catalog.searchCalls != 1 || catalog.listCalls != 0 {
		t.Errorf("calls = search %d, list %d; want search only",
			catalog.searchCalls, catalog.listCalls)
	}
	if catalog.lastTerm != "bitcoin" {
		t.Errorf("search term = %q", catalog.lastTerm)
	}
	if len(got) != 1 {
		t.Errorf("got %d markets", len(got))
	}
}

func TestFetchStaticCategoryUsesTagFilter(t *testing.T) {
	now := time.Now()
	catalog := &fakeCatalog{events: []polymarket.APIEvent{
		eventWith("1", liveMarket("a", 72*time.Hour, now)),
	}}
	r := NewResolver(catalog, 100, testLogger())

	if _, err := r.Fetch(context.Background(), "crypto", 10, 0, "", now); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if catalog.lastQuery.TagID != "21" {
		t.Errorf("TagID = %q, want crypto tag", catalog.lastQuery.TagID)
	}
	if !catalog.lastQuery.RelatedTags {
		t.Error("RelatedTags not set for static category fetch")
	}
}

func TestFetchDeduplicatesAcrossEvents(t *testing.T) {
	now := time.Now()
	shared := liveMarket("dup", 72*time.Hour, now)

	catalog := &fakeCatalog{events: []polymarket.APIEvent{
		eventWith("1", shared),
		eventWith("2", shared),
	}}
	r := NewResolver(catalog, 100, testLogger())

	got, err := r.Fetch(context.Background(), "trending", 10, 0, "", now)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d markets, want 1 after dedup", len(got))
	}
	// First occurrence wins: the market keeps its first parent event.
	if got[0].EventID != "1" {
		t.Errorf("EventID = %q, want first event", got[0].EventID)
	}
}

func TestFetchWithEventsReturnsParents(t *testing.T) {
	now := time.Now()
	catalog := &fakeCatalog{events: []polymarket.APIEvent{
		eventWith("1", liveMarket("a", 72*time.Hour, now)),
		eventWith("2", liveMarket("b", 72*time.Hour, now)),
	}}
	r := NewResolver(catalog, 100, testLogger())

	markets, events, err := r.FetchWithEvents(context.Background(), "trending", 10, 0, now)
	if err != nil {
		t.Fatalf("FetchWithEvents: %v", err)
	}

	if len(markets) != 2 || len(events) != 2 {
		t.Fatalf("got %d markets, %d events", len(markets), len(events))
	}
	if events[0].ID != "1" || events[1].ID != "2" {
		t.Errorf("events = %v, want first-seen order", events)
	}
}

func TestFetchPropagatesCatalogError(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("upstream down")}
	r := NewResolver(catalog, 100, testLogger())

	if _, err := r.Fetch(context.Background(), "trending", 10, 0, "", time.Now()); err == nil {
		t.Fatal("expected error when catalog fails")
	}
}

func TestFetchPaging(t *testing.T) {
	now := time.Now()
	events := []polymarket.APIEvent{
		eventWith("1", liveMarket("a", 72*time.Hour, now)),
		eventWith("2", liveMarket("b", 72*time.Hour, now)),
		eventWith("3", liveMarket("c", 72*time.Hour, now)),
	}
	catalog := &fakeCatalog{events: events}
	r := NewResolver(catalog, 100, testLogger())

	got, err := r.Fetch(context.Background(), "trending", 1, 1, "", now)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].ID != "0xb" {
		t.Errorf("page = %+v, want the second market only", got)
	}

	beyond, err := r.Fetch(context.Background(), "trending", 10, 50, "", now)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(beyond) != 0 {
		t.Errorf("offset beyond result set returned %d markets", len(beyond))
	}
}
