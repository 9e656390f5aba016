package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polydeck/polydeck/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Price maps and
// outcome tokens are stored as JSONB columns.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketColumns = `
	id, upstream_id, condition_id, slug, event_id, event_slug,
	question, description, category, tags, outcomes, prices, tokens,
	volume, volume_24h, liquidity, spread,
	active, closed, archived, is_new, featured,
	image, icon, start_date, end_date, last_synced_at`

// UpdateByUpstreamID applies a field-level update keyed on the upstream
// internal id and reports whether any row was touched. last_synced_at never
// moves backwards.
func (s *MarketStore) UpdateByUpstreamID(ctx context.Context, m domain.Market) (bool, error) {
	prices, tokens, err := encodeJSONFields(m)
	if err != nil {
		return false, err
	}

	const query = `
		UPDATE markets SET
			condition_id   = $2,
			slug           = $3,
			event_id       = $4,
			event_slug     = $5,
			question       = $6,
			description    = $7,
			category       = $8,
			tags           = $9,
			outcomes       = $10,
			prices         = $11,
			tokens         = $12,
			volume         = $13,
			volume_24h     = $14,
			liquidity      = $15,
			spread         = $16,
			active         = $17,
			closed         = $18,
			archived       = $19,
			is_new         = $20,
			featured       = $21,
			image          = $22,
			icon           = $23,
			start_date     = $24,
			end_date       = $25,
			last_synced_at = GREATEST($26, last_synced_at),
			updated_at     = NOW()
		WHERE upstream_id = $1`

	tag, err := s.pool.Exec(ctx, query,
		m.UpstreamID,
		m.ConditionID, m.Slug, m.EventID, m.EventSlug,
		m.Question, m.Description, string(m.Category), m.Tags,
		m.Outcomes, prices, tokens,
		m.Volume, m.Volume24h, m.Liquidity, m.Spread,
		m.Active, m.Closed, m.Archived, m.New, m.Featured,
		m.Image, m.Icon, m.StartDate, m.EndDate, m.LastSyncedAt,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: update market by upstream id %s: %w", m.UpstreamID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ExistsConflicting reports whether a row already occupies the market's
// canonical id or slug under a different upstream id.
func (s *MarketStore) ExistsConflicting(ctx context.Context, m domain.Market) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM markets
			WHERE (id = $1 OR slug = $2) AND upstream_id <> $3
		)`

	var exists bool
	err := s.pool.QueryRow(ctx, query, m.ID, m.Slug, m.UpstreamID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check market conflict %s: %w", m.ID, err)
	}
	return exists, nil
}

// Insert stores a new market row.
func (s *MarketStore) Insert(ctx context.Context, m domain.Market) error {
	prices, tokens, err := encodeJSONFields(m)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO markets (` + marketColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21, $22,
			$23, $24, $25, $26, $27
		)`

	_, err = s.pool.Exec(ctx, query,
		m.ID, m.UpstreamID, m.ConditionID, m.Slug, m.EventID, m.EventSlug,
		m.Question, m.Description, string(m.Category), m.Tags, m.Outcomes, prices, tokens,
		m.Volume, m.Volume24h, m.Liquidity, m.Spread,
		m.Active, m.Closed, m.Archived, m.New, m.Featured,
		m.Image, m.Icon, m.StartDate, m.EndDate, m.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert market %s: %w", m.ID, err)
	}
	return nil
}

// GetByIDOrSlug retrieves a market matched by canonical id or by slug.
// It returns domain.ErrNotFound when no row exists.
func (s *MarketStore) GetByIDOrSlug(ctx context.Context, idOrSlug string) (domain.Market, error) {
	query := `
		SELECT ` + marketColumns + `
		FROM markets
		WHERE id = $1 OR slug = $1`

	m, err := scanMarket(s.pool.QueryRow(ctx, query, idOrSlug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", idOrSlug, err)
	}
	return m, nil
}

// ListByCategory returns markets in a category ordered by 24h volume.
func (s *MarketStore) ListByCategory(ctx context.Context, category domain.Category, limit, offset int) ([]domain.Market, error) {
	query := `
		SELECT ` + marketColumns + `
		FROM markets
		WHERE category = $1
		ORDER BY volume_24h DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, string(category), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets by category %s: %w", category, err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market row: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate market rows: %w", err)
	}
	return markets, nil
}

func encodeJSONFields(m domain.Market) (prices, tokens []byte, err error) {
	prices, err = json.Marshal(m.Prices)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal prices for %s: %w", m.ID, err)
	}
	tokens, err = json.Marshal(m.Tokens)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal tokens for %s: %w", m.ID, err)
	}
	return prices, tokens, nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m        domain.Market
		category string
		prices   []byte
		tokens   []byte
	)

	err := row.Scan(
		&m.ID, &m.UpstreamID, &m.ConditionID, &m.Slug, &m.EventID, &m.EventSlug,
		&m.Question, &m.Description, &category, &m.Tags, &m.Outcomes, &prices, &tokens,
		&m.Volume, &m.Volume24h, &m.Liquidity, &m.Spread,
		&m.Active, &m.Closed, &m.Archived, &m.New, &m.Featured,
		&m.Image, &m.Icon, &m.StartDate, &m.EndDate, &m.LastSyncedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.Category = domain.Category(category)
	if err := json.Unmarshal(prices, &m.Prices); err != nil {
		return domain.Market{}, fmt.Errorf("decode prices for %s: %w", m.ID, err)
	}
	if err := json.Unmarshal(tokens, &m.Tokens); err != nil {
		return domain.Market{}, fmt.Errorf("decode tokens for %s: %w", m.ID, err)
	}
	return m, nil
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
