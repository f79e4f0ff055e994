// Package repository provides rate limit window stores for PostgreSQL, MySQL,
// Redis and process memory.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/roofline/crmcore/internal/database"
	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/ratelimit/domain"
)

// PostgreSQLWindowStore keeps windows in the rate_limit_windows table.
type PostgreSQLWindowStore struct {
	db *sql.DB
}

// NewPostgreSQLWindowStore creates a new PostgreSQLWindowStore.
func NewPostgreSQLWindowStore(db *sql.DB) *PostgreSQLWindowStore {
	return &PostgreSQLWindowStore{
		db: db,
	}
}

// Increment upserts the window in a single statement; the row lock taken by
// ON CONFLICT serializes concurrent callers.
func (s *PostgreSQLWindowStore) Increment(
	ctx context.Context,
	key domain.Key,
	size time.Duration,
	now time.Time,
) (*domain.Window, error) {
	querier := database.GetTx(ctx, s.db)

	query := `INSERT INTO rate_limit_windows (tenant_id, user_id, resource, request_count, window_start, updated_at)
			  VALUES ($1, $2, $3, 1, $4, $4)
			  ON CONFLICT (tenant_id, user_id, resource) DO UPDATE SET
			  request_count = CASE WHEN rate_limit_windows.window_start <= $5
			      THEN 1 ELSE rate_limit_windows.request_count + 1 END,
			  window_start = CASE WHEN rate_limit_windows.window_start <= $5
			      THEN EXCLUDED.window_start ELSE rate_limit_windows.window_start END,
			  updated_at = EXCLUDED.updated_at
			  RETURNING request_count, window_start, updated_at`

	window := &domain.Window{Key: key}
	err := querier.QueryRowContext(ctx, query,
		key.TenantID, key.UserID, key.Resource, now, now.Add(-size),
	).Scan(&window.RequestCount, &window.WindowStart, &window.UpdatedAt)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to increment rate limit window")
	}
	return window, nil
}

// DeleteStale removes windows untouched since before.
func (s *PostgreSQLWindowStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, s.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM rate_limit_windows WHERE updated_at < $1`, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete stale rate limit windows")
	}
	return result.RowsAffected()
}
