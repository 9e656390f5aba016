package market

import (
	"math"
	"testing"
	"time"

	"github.com/polydeck/polydeck/internal/platform/polymarket"
)

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	m := polymarket.APIMarket{
		ID:            "501234",
		ConditionID:   "0xabc123",
		Slug:          "will-btc-hit-100k",
		Question:      "Will BTC hit $100k?",
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.65","0.35"]`,
		ClobTokenIDs:  `["11111111111","22222222222"]`,
		Volume:        1000,
		Volume24h:     50,
		Liquidity:     200,
		Active:        true,
		EndDate:       "2026-09-01T00:00:00Z",
	}
	e := polymarket.APIEvent{
		ID:       "ev-1",
		Slug:     "btc-100k",
		Category: "Crypto",
		New:      true,
		Image:    "https://img.example/btc.png",
		Tags:     []polymarket.APITag{{Label: "Crypto"}},
	}

	got := Normalize(m, e, now)

	if got.ID != "0xabc123" {
		t.Errorf("ID = %q, want condition id", got.ID)
	}
	if got.UpstreamID != "501234" {
		t.Errorf("UpstreamID = %q, want upstream id", got.UpstreamID)
	}
	if got.EventID != "ev-1" || got.EventSlug != "btc-100k" {
		t.Errorf("event linkage = (%q, %q)", got.EventID, got.EventSlug)
	}
	if len(got.Outcomes) != 2 || got.Outcomes[0] != "Yes" || got.Outcomes[1] != "No" {
		t.Errorf("Outcomes = %v", got.Outcomes)
	}
	if got.Prices["Yes"] != 0.65 || got.Prices["No"] != 0.35 {
		t.Errorf("Prices = %v", got.Prices)
	}
	if len(got.Tokens) != 2 || got.Tokens[0].Outcome != "Yes" || got.Tokens[1].TokenID != "22222222222" {
		t.Errorf("Tokens = %v", got.Tokens)
	}
	if got.Spread == nil || math.Abs(*got.Spread-0.3) > 1e-9 {
		t.Errorf("Spread = %v, want 0.3", got.Spread)
	}
	if got.Category != "Crypto" {
		t.Errorf("Category = %q", got.Category)
	}
	if !got.New {
		t.Error("New should inherit the event flag")
	}
	if got.Image != "https://img.example/btc.png" {
		t.Errorf("Image should fall back to the event, got %q", got.Image)
	}
	if got.EndDate == nil || !got.EndDate.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("EndDate = %v", got.EndDate)
	}
	if !got.LastSyncedAt.Equal(now) {
		t.Errorf("LastSyncedAt = %v", got.LastSyncedAt)
	}
}

func TestNormalizeMalformedListFields(t *testing.T) {
	m := polymarket.APIMarket{
		ID:            "7",
		Outcomes:      `not json at all`,
		OutcomePrices: `{"also": "wrong"}`,
		ClobTokenIDs:  ``,
	}

	got := Normalize(m, polymarket.APIEvent{}, time.Now())

	if len(got.Outcomes) != 0 {
		t.Errorf("Outcomes = %v, want empty", got.Outcomes)
	}
	if len(got.Prices) != 0 {
		t.Errorf("Prices = %v, want empty", got.Prices)
	}
	if len(got.Tokens) != 0 {
		t.Errorf("Tokens = %v, want empty", got.Tokens)
	}
	if got.Spread != nil {
		t.Errorf("Spread = %v, want nil", got.Spread)
	}
}

func TestNormalizeIdentityFallsBackToUpstreamID(t *testing.T) {
	m := polymarket.APIMarket{ID: "upstream-9"}

	got := Normalize(m, polymarket.APIEvent{}, time.Now())

	if got.ID != "upstream-9" {
		t.Errorf("ID = %q, want upstream id fallback", got.ID)
	}
}

func TestNormalizeUnparsablePriceDegradesToZero(t *testing.T) {
	m := polymarket.APIMarket{
		ID:            "8",
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.7","oops"]`,
	}

	got := Normalize(m, polymarket.APIEvent{}, time.Now())

	if got.Prices["Yes"] != 0.7 {
		t.Errorf("Prices[Yes] = %v", got.Prices["Yes"])
	}
	if got.Prices["No"] != 0 {
		t.Errorf("Prices[No] = %v, want 0", got.Prices["No"])
	}
}

func TestNormalizeTokenOutcomeBackfill(t *testing.T) {
	m := polymarket.APIMarket{
		ID:           "9",
		ClobTokenIDs: `["33333333333","44444444444"]`,
	}

	got := Normalize(m, polymarket.APIEvent{}, time.Now())

	if len(got.Tokens) != 2 {
		t.Fatalf("Tokens = %v", got.Tokens)
	}
	if got.Tokens[0].Outcome != "Yes" || got.Tokens[1].Outcome != "No" {
		t.Errorf("token outcomes = %q, %q, want Yes/No backfill",
			got.Tokens[0].Outcome, got.Tokens[1].Outcome)
	}
}

func TestDecodeStringListNumericFallback(t *testing.T) {
	got := decodeStringList(`[0.5, 0.5]`)
	if len(got) != 2 || got[0] != "0.5" {
		t.Errorf("decodeStringList = %v", got)
	}
}

func TestComputeSpread(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []string
		prices   map[string]float64
		want     *float64
	}{
		{
			name:     "two priced outcomes",
			outcomes: []string{"Yes", "No"},
			prices:   map[string]float64{"Yes": 0.65, "No": 0.35},
			want:     floatPtr(0.3),
		},
		{
			name:     "single outcome",
			outcomes: []string{"Yes"},
			prices:   map[string]float64{"Yes": 0.65},
			want:     nil,
		},
		{
			name:     "missing second price",
			outcomes: []string{"Yes", "No"},
			prices:   map[string]float64{"Yes": 0.65},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeSpread(tt.outcomes, tt.prices)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("spread = %v, want nil", *got)
			case tt.want != nil && got == nil:
				t.Errorf("spread = nil, want %v", *tt.want)
			case tt.want != nil && math.Abs(*got-*tt.want) > 1e-9:
				t.Errorf("spread = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func floatPtr(f float64) *float64 { return &f }
