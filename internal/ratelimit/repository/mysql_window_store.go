package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/roofline/crmcore/internal/database"
	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/ratelimit/domain"
)

// MySQLWindowStore keeps windows in the rate_limit_windows table.
type MySQLWindowStore struct {
	db        *sql.DB
	txManager database.TxManager
}

// NewMySQLWindowStore creates a new MySQLWindowStore.
func NewMySQLWindowStore(db *sql.DB) *MySQLWindowStore {
	return &MySQLWindowStore{
		db:        db,
		txManager: database.NewTxManager(db),
	}
}

// Increment upserts the window and reads it back inside one transaction. MySQL
// applies the assignments left to right, so request_count is computed while
// window_start still holds the previous value.
func (s *MySQLWindowStore) Increment(
	ctx context.Context,
	key domain.Key,
	size time.Duration,
	now time.Time,
) (*domain.Window, error) {
	window := &domain.Window{Key: key}
	tenantID := database.BinaryUUID(key.TenantID)
	userID := database.BinaryUUID(key.UserID)
	expiredBefore := now.Add(-size)

	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		querier := database.GetTx(ctx, s.db)

		upsert := `INSERT INTO rate_limit_windows (tenant_id, user_id, resource, request_count, window_start, updated_at)
				   VALUES (?, ?, ?, 1, ?, ?)
				   ON DUPLICATE KEY UPDATE
				   request_count = IF(window_start <= ?, 1, request_count + 1),
				   window_start = IF(window_start <= ?, VALUES(window_start), window_start),
				   updated_at = VALUES(updated_at)`

		_, err := querier.ExecContext(ctx, upsert,
			tenantID, userID, key.Resource, now, now, expiredBefore, expiredBefore,
		)
		if err != nil {
			return err
		}

		query := `SELECT request_count, window_start, updated_at FROM rate_limit_windows
				  WHERE tenant_id = ? AND user_id = ? AND resource = ?`

		return querier.QueryRowContext(ctx, query, tenantID, userID, key.Resource).
			Scan(&window.RequestCount, &window.WindowStart, &window.UpdatedAt)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to increment rate limit window")
	}
	return window, nil
}

// DeleteStale removes windows untouched since before.
func (s *MySQLWindowStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, s.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM rate_limit_windows WHERE updated_at < ?`, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete stale rate limit windows")
	}
	return result.RowsAffected()
}
