package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/database"
	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/idempotency/domain"
)

// MySQLRecordRepository handles idempotency records for MySQL.
type MySQLRecordRepository struct {
	db *sql.DB
}

// NewMySQLRecordRepository creates a new MySQLRecordRepository.
func NewMySQLRecordRepository(db *sql.DB) *MySQLRecordRepository {
	return &MySQLRecordRepository{
		db: db,
	}
}

// CreateIfAbsent inserts the record unless the tenant already holds the key.
func (r *MySQLRecordRepository) CreateIfAbsent(ctx context.Context, record *domain.Record) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO idempotency_records (` + recordColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE tenant_id = tenant_id`

	result, err := querier.ExecContext(ctx, query,
		database.BinaryUUID(record.TenantID), record.Key, record.RequestHash, string(record.Status),
		record.ResponseBody, record.ContentType, record.StatusCode, record.LockedUntil, record.ExpiresAt,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to insert idempotency record")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read inserted rows")
	}
	return affected == 1, nil
}

// GetForUpdate locks and returns the record.
func (r *MySQLRecordRepository) GetForUpdate(
	ctx context.Context,
	tenantID uuid.UUID,
	key string,
) (*domain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + recordColumns + ` FROM idempotency_records
			  WHERE tenant_id = ? AND idempotency_key = ? FOR UPDATE`

	record, err := scanMySQLRecord(querier.QueryRowContext(ctx, query, database.BinaryUUID(tenantID), key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get idempotency record")
	}
	return record, nil
}

// Update overwrites the mutable columns of the record.
func (r *MySQLRecordRepository) Update(ctx context.Context, record *domain.Record) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE idempotency_records
			  SET request_hash = ?, status = ?, response_body = ?, content_type = ?, status_code = ?,
			      locked_until = ?, expires_at = ?, updated_at = ?
			  WHERE tenant_id = ? AND idempotency_key = ?`

	result, err := querier.ExecContext(ctx, query,
		record.RequestHash, string(record.Status), record.ResponseBody, record.ContentType, record.StatusCode,
		record.LockedUntil, record.ExpiresAt, record.UpdatedAt,
		database.BinaryUUID(record.TenantID), record.Key,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update idempotency record")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read updated rows")
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// DeleteInProgress removes an in-progress record still held by hash.
func (r *MySQLRecordRepository) DeleteInProgress(
	ctx context.Context,
	tenantID uuid.UUID,
	key, hash string,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM idempotency_records
			  WHERE tenant_id = ? AND idempotency_key = ? AND request_hash = ? AND status = 'in_progress'`

	result, err := querier.ExecContext(ctx, query, database.BinaryUUID(tenantID), key, hash)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to delete idempotency record")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read deleted rows")
	}
	return affected == 1, nil
}

// DeleteExpired removes records that stopped binding their key before the cutoff.
func (r *MySQLRecordRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM idempotency_records
			  WHERE (status = 'completed' AND expires_at < ?)
			     OR (status = 'in_progress' AND locked_until < ?)`

	result, err := querier.ExecContext(ctx, query, before, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to purge idempotency records")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read purged rows")
	}
	return count, nil
}

func scanMySQLRecord(row rowScanner) (*domain.Record, error) {
	var record domain.Record
	var tenantID []byte
	var status string

	if err := row.Scan(
		&tenantID, &record.Key, &record.RequestHash, &status, &record.ResponseBody,
		&record.ContentType, &record.StatusCode, &record.LockedUntil, &record.ExpiresAt,
		&record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return nil, err
	}

	id, err := database.ParseBinaryUUID(tenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse tenant id")
	}
	record.TenantID = id
	record.Status = domain.Status(status)
	return &record, nil
}
