package domain

import "context"

// BookSnapshot is the instantaneous top-of-book state for one instrument as
// observed on the streaming price feed.
type BookSnapshot struct {
	AssetID   string
	BestBid   float64
	BestAsk   float64
	LastTrade float64
}

// Spread is the instantaneous bid/ask spread. Zero when either side of the
// book is empty.
func (b BookSnapshot) Spread() float64 {
	if b.BestBid <= 0 || b.BestAsk <= 0 {
		return 0
	}
	return b.BestAsk - b.BestBid
}

// Midpoint is the average of best bid and best ask, or 0 when either side of
// the book is empty.
func (b BookSnapshot) Midpoint() float64 {
	if b.BestBid <= 0 || b.BestAsk <= 0 {
		return 0
	}
	return (b.BestBid + b.BestAsk) / 2
}

// PriceFeed collects live top-of-book snapshots for a batch of instruments.
// Implementations open one short-lived streaming session, gather snapshots
// until every requested id is covered or the session deadline passes, and
// return whatever was collected. Session failures surface as errors; callers
// are expected to degrade to catalog prices.
type PriceFeed interface {
	CollectBooks(ctx context.Context, assetIDs []string) (map[string]BookSnapshot, error)
}
