// Package repository provides idempotency record persistence for PostgreSQL and MySQL.
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

const recordColumns = `tenant_id, idempotency_key, request_hash, status, response_body, content_type,
	status_code, locked_until, expires_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgreSQLRecordRepository handles idempotency records for PostgreSQL.
type PostgreSQLRecordRepository struct {
	db *sql.DB
}

// NewPostgreSQLRecordRepository creates a new PostgreSQLRecordRepository.
func NewPostgreSQLRecordRepository(db *sql.DB) *PostgreSQLRecordRepository {
	return &PostgreSQLRecordRepository{
		db: db,
	}
}

// CreateIfAbsent inserts the record unless the tenant already holds the key.
func (r *PostgreSQLRecordRepository) CreateIfAbsent(ctx context.Context, record *domain.Record) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO idempotency_records (` + recordColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  ON CONFLICT (tenant_id, idempotency_key) DO NOTHING`

	result, err := querier.ExecContext(ctx, query,
		record.TenantID, record.Key, record.RequestHash, string(record.Status), record.ResponseBody,
		record.ContentType, record.StatusCode, record.LockedUntil, record.ExpiresAt,
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
func (r *PostgreSQLRecordRepository) GetForUpdate(
	ctx context.Context,
	tenantID uuid.UUID,
	key string,
) (*domain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + recordColumns + ` FROM idempotency_records
			  WHERE tenant_id = $1 AND idempotency_key = $2 FOR UPDATE`

	record, err := scanPostgresRecord(querier.QueryRowContext(ctx, query, tenantID, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get idempotency record")
	}
	return record, nil
}

// Update overwrites the mutable columns of the record.
func (r *PostgreSQLRecordRepository) Update(ctx context.Context, record *domain.Record) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE idempotency_records
			  SET request_hash = $3, status = $4, response_body = $5, content_type = $6, status_code = $7,
			      locked_until = $8, expires_at = $9, updated_at = $10
			  WHERE tenant_id = $1 AND idempotency_key = $2`

	result, err := querier.ExecContext(ctx, query,
		record.TenantID, record.Key, record.RequestHash, string(record.Status), record.ResponseBody,
		record.ContentType, record.StatusCode, record.LockedUntil, record.ExpiresAt, record.UpdatedAt,
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
func (r *PostgreSQLRecordRepository) DeleteInProgress(
	ctx context.Context,
	tenantID uuid.UUID,
	key, hash string,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM idempotency_records
			  WHERE tenant_id = $1 AND idempotency_key = $2 AND request_hash = $3 AND status = 'in_progress'`

	result, err := querier.ExecContext(ctx, query, tenantID, key, hash)
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
func (r *PostgreSQLRecordRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM idempotency_records
			  WHERE (status = 'completed' AND expires_at < $1)
			     OR (status = 'in_progress' AND locked_until < $1)`

	result, err := querier.ExecContext(ctx, query, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to purge idempotency records")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read purged rows")
	}
	return count, nil
}

func scanPostgresRecord(row rowScanner) (*domain.Record, error) {
	var record domain.Record
	var status string

	if err := row.Scan(
		&record.TenantID, &record.Key, &record.RequestHash, &status, &record.ResponseBody,
		&record.ContentType, &record.StatusCode, &record.LockedUntil, &record.ExpiresAt,
		&record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return nil, err
	}

	record.Status = domain.Status(status)
	return &record, nil
}
