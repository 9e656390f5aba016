package domain

import (
	"context"
	"time"
)

// SyncStatus is the recorded outcome of one sync run.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncLog records the outcome of one orchestrated sync run. One row is
// written per run regardless of partial failures.
type SyncLog struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Status    SyncStatus    `json:"status"`
	Count     int           `json:"count"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// EventStore persists parent events.
type EventStore interface {
	// Upsert inserts the event if absent, otherwise updates only the
	// mutable lifecycle flags and activity figures.
	Upsert(ctx context.Context, e Event) error
	GetByID(ctx context.Context, id string) (Event, error)
}

// MarketStore persists canonical markets.
type MarketStore interface {
	// UpdateByUpstreamID applies a field-level update keyed on the upstream
	// internal id and reports whether any row was touched.
	UpdateByUpstreamID(ctx context.Context, m Market) (bool, error)
	// ExistsConflicting reports whether a row already occupies the market's
	// canonical id or slug under a different upstream id.
	ExistsConflicting(ctx context.Context, m Market) (bool, error)
	Insert(ctx context.Context, m Market) error
	GetByIDOrSlug(ctx context.Context, idOrSlug string) (Market, error)
	ListByCategory(ctx context.Context, category Category, limit, offset int) ([]Market, error)
}

// SyncLogStore persists sync run outcomes.
type SyncLogStore interface {
	Insert(ctx context.Context, log SyncLog) error
	ListRecent(ctx context.Context, limit int) ([]SyncLog, error)
}
