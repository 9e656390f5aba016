package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polydeck/polydeck/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates an EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Upsert inserts the event, or on conflict updates only the lifecycle flags
// and activity figures. Descriptive fields keep their first-seen values.
func (s *EventStore) Upsert(ctx context.Context, e domain.Event) error {
	const query = `
		INSERT INTO events (
			id, slug, title, description, category, tags,
			volume, volume_24h, liquidity,
			active, closed, archived, is_new, featured,
			start_date, end_date, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			volume     = EXCLUDED.volume,
			volume_24h = EXCLUDED.volume_24h,
			liquidity  = EXCLUDED.liquidity,
			active     = EXCLUDED.active,
			closed     = EXCLUDED.closed,
			archived   = EXCLUDED.archived,
			is_new     = EXCLUDED.is_new,
			featured   = EXCLUDED.featured,
			end_date   = EXCLUDED.end_date,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.Slug, e.Title, e.Description, e.Category, e.Tags,
		e.Volume, e.Volume24h, e.Liquidity,
		e.Active, e.Closed, e.Archived, e.New, e.Featured,
		e.StartDate, e.EndDate,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert event %s: %w", e.ID, err)
	}
	return nil
}

// GetByID retrieves an event by its id.
// It returns domain.ErrNotFound when no row exists.
func (s *EventStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	const query = `
		SELECT id, slug, title, description, category, tags,
		       volume, volume_24h, liquidity,
		       active, closed, archived, is_new, featured,
		       start_date, end_date
		FROM events
		WHERE id = $1`

	var e domain.Event
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Slug, &e.Title, &e.Description, &e.Category, &e.Tags,
		&e.Volume, &e.Volume24h, &e.Liquidity,
		&e.Active, &e.Closed, &e.Archived, &e.New, &e.Featured,
		&e.StartDate, &e.EndDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("postgres: get event %s: %w", id, err)
	}
	return e, nil
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
