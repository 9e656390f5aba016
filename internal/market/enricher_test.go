package market

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/polydeck/polydeck/internal/domain"
)

type fakeFeed struct {
	snapshots map[string]domain.BookSnapshot
	err       error
	calls     int
	gotAssets []string
}

func (f *fakeFeed) CollectBooks(_ context.Context, assetIDs []string) (map[string]domain.BookSnapshot, error) {
	f.calls++
	f.gotAssets = assetIDs
	return f.snapshots, f.err
}

func enrichableMarket() domain.Market {
	return domain.Market{
		ID:       "0xabc",
		Outcomes: []string{"Yes", "No"},
		Prices:   map[string]float64{"Yes": 0.65, "No": 0.35},
		Tokens: []domain.OutcomeToken{
			{TokenID: "111111111111111", Outcome: "Yes"},
			{TokenID: "222222222222222", Outcome: "No"},
		},
	}
}

func TestEnrichNoEligibleTokensSkipsSession(t *testing.T) {
	feed := &fakeFeed{}
	e := NewEnricher(feed, testLogger())

	m := enrichableMarket()
	m.Tokens = []domain.OutcomeToken{{TokenID: "short", Outcome: "Yes"}}

	got := e.Enrich(context.Background(), []domain.Market{m})

	if feed.calls != 0 {
		t.Errorf("feed opened %d sessions, want 0", feed.calls)
	}
	if got[0].Prices["Yes"] != 0.65 {
		t.Errorf("price changed without a session: %v", got[0].Prices)
	}
}

func TestEnrichSessionFailureKeepsCatalogPrices(t *testing.T) {
	feed := &fakeFeed{err: errors.New("dial failed")}
	e := NewEnricher(feed, testLogger())

	got := e.Enrich(context.Background(), []domain.Market{enrichableMarket()})

	if got[0].Prices["Yes"] != 0.65 || got[0].Prices["No"] != 0.35 {
		t.Errorf("prices changed after failed session: %v", got[0].Prices)
	}
}

func TestEnrichNarrowBookUsesMidpoint(t *testing.T) {
	feed := &fakeFeed{snapshots: map[string]domain.BookSnapshot{
		"111111111111111": {AssetID: "111111111111111", BestBid: 0.64, BestAsk: 0.65, LastTrade: 0.60},
	}}
	e := NewEnricher(feed, testLogger())

	got := e.Enrich(context.Background(), []domain.Market{enrichableMarket()})

	if math.Abs(got[0].Prices["Yes"]-0.645) > 1e-9 {
		t.Errorf("Prices[Yes] = %v, want midpoint 0.645", got[0].Prices["Yes"])
	}
	// The other outcome had no snapshot and keeps its catalog price.
	if got[0].Prices["No"] != 0.35 {
		t.Errorf("Prices[No] = %v, want catalog price", got[0].Prices["No"])
	}
	if got[0].Spread == nil {
		t.Fatal("spread not recomputed")
	}
}

func TestEnrichLockedBookUsesMidpoint(t *testing.T) {
	feed := &fakeFeed{snapshots: map[string]domain.BookSnapshot{
		"111111111111111": {AssetID: "111111111111111", BestBid: 0.50, BestAsk: 0.50, LastTrade: 0.47},
	}}
	e := NewEnricher(feed, testLogger())

	got := e.Enrich(context.Background(), []domain.Market{enrichableMarket()})

	// A locked book has zero spread, which is still narrow.
	if got[0].Prices["Yes"] != 0.50 {
		t.Errorf("Prices[Yes] = %v, want locked-book midpoint 0.50", got[0].Prices["Yes"])
	}
}

func TestEnrichOneSidedBookUsesLastTrade(t *testing.T) {
	feed := &fakeFeed{snapshots: map[string]domain.BookSnapshot{
		"111111111111111": {AssetID: "111111111111111", BestBid: 0.50, LastTrade: 0.52},
	}}
	e := NewEnricher(feed, testLogger())

	got := e.Enrich(context.Background(), []domain.Market{enrichableMarket()})

	if got[0].Prices["Yes"] != 0.52 {
		t.Errorf("Prices[Yes] = %v, want last trade when one book side is empty", got[0].Prices["Yes"])
	}
}

func TestEnrichWideBookUsesLastTrade(t *testing.T) {
	feed := &fakeFeed{snapshots: map[string]domain.BookSnapshot{
		"111111111111111": {AssetID: "111111111111111", BestBid: 0.50, BestAsk: 0.60, LastTrade: 0.55},
	}}
	e := NewEnricher(feed, testLogger())

	got := e.Enrich(context.Background(), []domain.Market{enrichableMarket()})

	if got[0].Prices["Yes"] != 0.55 {
		t.Errorf("Prices[Yes] = %v, want last trade", got[0].Prices["Yes"])
	}
}

func TestEnrichZeroSnapshotNeverOverwrites(t *testing.T) {
	feed := &fakeFeed{snapshots: map[string]domain.BookSnapshot{
		"111111111111111": {AssetID: "111111111111111"},
	}}
	e := NewEnricher(feed, testLogger())

	got := e.Enrich(context.Background(), []domain.Market{enrichableMarket()})

	if got[0].Prices["Yes"] != 0.65 {
		t.Errorf("Prices[Yes] = %v, zero snapshot must not overwrite", got[0].Prices["Yes"])
	}
}

func TestEnrichCollectsEligibleAssetIDs(t *testing.T) {
	feed := &fakeFeed{}
	e := NewEnricher(feed, testLogger())

	m := enrichableMarket()
	m.Tokens = append(m.Tokens, domain.OutcomeToken{TokenID: "tiny", Outcome: "Maybe"})

	e.Enrich(context.Background(), []domain.Market{m})

	if len(feed.gotAssets) != 2 {
		t.Errorf("subscribed assets = %v, want the two real token ids", feed.gotAssets)
	}
}
