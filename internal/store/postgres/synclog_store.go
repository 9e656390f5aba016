package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polydeck/polydeck/internal/domain"
)

// SyncLogStore implements domain.SyncLogStore using PostgreSQL.
type SyncLogStore struct {
	pool *pgxpool.Pool
}

// NewSyncLogStore creates a SyncLogStore backed by the given connection pool.
func NewSyncLogStore(pool *pgxpool.Pool) *SyncLogStore {
	return &SyncLogStore{pool: pool}
}

// Insert records the outcome of one sync run.
func (s *SyncLogStore) Insert(ctx context.Context, log domain.SyncLog) error {
	const query = `
		INSERT INTO sync_logs (id, type, status, count, failed, duration_ms, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		log.ID, log.Type, string(log.Status),
		log.Count, log.Failed, log.Duration.Milliseconds(),
		log.Error, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert sync log %s: %w", log.ID, err)
	}
	return nil
}

// ListRecent returns the most recent sync runs, newest first.
func (s *SyncLogStore) ListRecent(ctx context.Context, limit int) ([]domain.SyncLog, error) {
	const query = `
		SELECT id, type, status, count, failed, duration_ms, error, created_at
		FROM sync_logs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sync logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.SyncLog
	for rows.Next() {
		var (
			log        domain.SyncLog
			status     string
			durationMS int64
		)
		if err := rows.Scan(
			&log.ID, &log.Type, &status,
			&log.Count, &log.Failed, &durationMS,
			&log.Error, &log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan sync log row: %w", err)
		}
		log.Status = domain.SyncStatus(status)
		log.Duration = time.Duration(durationMS) * time.Millisecond
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate sync log rows: %w", err)
	}
	return logs, nil
}

// Compile-time interface check.
var _ domain.SyncLogStore = (*SyncLogStore)(nil)
