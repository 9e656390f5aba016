package market

import (
	"context"
	"log/slog"

	"github.com/polydeck/polydeck/internal/domain"
)

const (
	// minAssetIDLen excludes placeholder instrument ids from enrichment;
	// real CLOB token ids are 70+ digit strings.
	minAssetIDLen = 10

	// narrowSpread is the bid/ask spread below which the midpoint is a
	// better display price than the last trade.
	narrowSpread = 0.02
)

// Enricher refreshes catalog prices with live top-of-book data from the
// streaming feed. Enrichment is strictly best-effort: any session failure
// degrades silently to the catalog-sourced prices already present.
type Enricher struct {
	feed   domain.PriceFeed
	logger *slog.Logger
}

// NewEnricher creates an Enricher over the given feed.
func NewEnricher(feed domain.PriceFeed, logger *slog.Logger) *Enricher {
	return &Enricher{
		feed:   feed,
		logger: logger.With(slog.String("component", "enricher")),
	}
}

// Enrich overwrites outcome prices with live display prices where available
// and recomputes spreads. The input slice is returned (mutated in place);
// with no eligible instrument ids it is returned untouched and no session is
// opened.
func (e *Enricher) Enrich(ctx context.Context, markets []domain.Market) []domain.Market {
	var assetIDs []string
	for _, m := range markets {
		for _, tok := range m.Tokens {
			if len(tok.TokenID) > minAssetIDLen {
				assetIDs = append(assetIDs, tok.TokenID)
			}
		}
	}
	if len(assetIDs) == 0 {
		return markets
	}

	snapshots, err := e.feed.CollectBooks(ctx, assetIDs)
	if err != nil {
		e.logger.Warn("price feed session failed, serving catalog prices",
			slog.Int("assets", len(assetIDs)),
			slog.String("error", err.Error()),
		)
		return markets
	}
	if len(snapshots) == 0 {
		return markets
	}

	for i := range markets {
		m := &markets[i]
		changed := false
		for _, tok := range m.Tokens {
			snap, ok := snapshots[tok.TokenID]
			if !ok {
				continue
			}
			price := displayPrice(snap)
			if price <= 0 {
				continue
			}
			m.Prices[tok.Outcome] = price
			changed = true
		}
		if changed {
			m.Spread = computeSpread(m.Outcomes, m.Prices)
		}
	}

	return markets
}

// displayPrice chooses what a client should see for one instrument: the
// bid/ask midpoint when the book is tight (including a locked book, where
// the spread is zero), otherwise the last observed trade. Midpoint is 0
// when either side of the book is empty.
func displayPrice(snap domain.BookSnapshot) float64 {
	if snap.Midpoint() > 0 && snap.Spread() < narrowSpread {
		return snap.Midpoint()
	}
	return snap.LastTrade
}
