package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/database"
	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/outbox/domain"
)

const mysqlEventColumns = `id, tenant_id, aggregate_type, aggregate_id, event_type, payload, idempotency_key,
	status, retry_count, max_retries, next_retry_at, last_error, claimed_by, lease_until,
	created_at, updated_at, processed_at`

// MySQLOutboxEventRepository handles outbox event persistence for MySQL.
// Identifiers are stored as BINARY(16).
type MySQLOutboxEventRepository struct {
	db *sql.DB
}

// NewMySQLOutboxEventRepository creates a new MySQLOutboxEventRepository.
func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{
		db: db,
	}
}

// Insert stores a new event. It returns false without error when the tenant already
// has an event with the same idempotency key.
func (r *MySQLOutboxEventRepository) Insert(ctx context.Context, event *domain.Event) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	// id = id keeps the existing row untouched and reports 0 affected rows.
	query := `INSERT INTO outbox_events (` + mysqlEventColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE id = id`

	result, err := querier.ExecContext(ctx, query,
		database.BinaryUUID(event.ID), database.BinaryUUID(event.TenantID), event.AggregateType,
		event.AggregateID, event.EventType, string(event.Payload), event.IdempotencyKey, event.Status,
		event.RetryCount, event.MaxRetries, event.NextRetryAt, event.LastError, event.ClaimedBy,
		event.LeaseUntil, event.CreatedAt, event.UpdatedAt, event.ProcessedAt,
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to insert outbox event")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read inserted rows")
	}
	return affected == 1, nil
}

// GetByIdempotencyKey returns the tenant's event carrying key.
func (r *MySQLOutboxEventRepository) GetByIdempotencyKey(
	ctx context.Context,
	tenantID uuid.UUID,
	key string,
) (*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlEventColumns + ` FROM outbox_events
			  WHERE tenant_id = ? AND idempotency_key = ?`

	event, err := scanMySQLEvent(querier.QueryRowContext(ctx, query, database.BinaryUUID(tenantID), key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event by idempotency key")
	}
	return event, nil
}

// Get returns the tenant's event with the given id.
func (r *MySQLOutboxEventRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlEventColumns + ` FROM outbox_events WHERE tenant_id = ? AND id = ?`

	event, err := scanMySQLEvent(
		querier.QueryRowContext(ctx, query, database.BinaryUUID(tenantID), database.BinaryUUID(id)),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event")
	}
	return event, nil
}

// List returns the tenant's events, newest first.
func (r *MySQLOutboxEventRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	filter domain.ListFilter,
) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlEventColumns + ` FROM outbox_events WHERE tenant_id = ?`
	args := []any{database.BinaryUUID(tenantID)}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list outbox events")
	}
	defer rows.Close() //nolint:errcheck

	return collectMySQLEvents(rows)
}

// Claim leases due events to the caller. MySQL has no UPDATE ... RETURNING, so the
// rows are locked with SKIP LOCKED first and then marked processing. Must run inside
// a transaction.
func (r *MySQLOutboxEventRepository) Claim(ctx context.Context, params domain.ClaimParams) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + prefixColumns("e.", mysqlEventColumns) + ` FROM outbox_events e
			  WHERE ((e.status = 'pending' AND e.next_retry_at <= ?)
			      OR (e.status = 'processing' AND e.lease_until <= ?))
			    AND NOT EXISTS (
			      SELECT 1 FROM outbox_events p
			      WHERE p.tenant_id = e.tenant_id
			        AND p.aggregate_type = e.aggregate_type
			        AND p.aggregate_id = e.aggregate_id
			        AND p.status IN ('pending', 'processing')
			        AND (p.created_at, p.id) < (e.created_at, e.id))
			  ORDER BY e.created_at, e.id
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, params.Now, params.Now, params.Limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to select claimable outbox events")
	}
	events, err := collectMySQLEvents(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return events, nil
	}

	args := []any{domain.StatusProcessing, params.Token, params.LeaseUntil, params.Now}
	for _, event := range events {
		args = append(args, database.BinaryUUID(event.ID))
	}
	update := `UPDATE outbox_events SET status = ?, claimed_by = ?, lease_until = ?, updated_at = ?
			   WHERE id IN (` + placeholders(len(events)) + `)`
	if _, err := querier.ExecContext(ctx, update, args...); err != nil {
		return nil, apperrors.Wrap(err, "failed to claim outbox events")
	}

	for _, event := range events {
		token := params.Token
		leaseUntil := params.LeaseUntil
		event.Status = domain.StatusProcessing
		event.ClaimedBy = &token
		event.LeaseUntil = &leaseUntil
		event.UpdatedAt = params.Now
	}
	return events, nil
}

// MarkCompleted records a successful delivery under the caller's lease.
func (r *MySQLOutboxEventRepository) MarkCompleted(ctx context.Context, id uuid.UUID, token string, at time.Time) error {
	query := `UPDATE outbox_events
			  SET status = 'completed', processed_at = ?, updated_at = ?, last_error = NULL,
			      claimed_by = NULL, lease_until = NULL
			  WHERE id = ? AND status = 'processing' AND claimed_by = ?`

	return r.execUnderLease(ctx, "failed to mark outbox event completed", query,
		at, at, database.BinaryUUID(id), token)
}

// MarkRetry returns the event to pending with its next attempt scheduled.
func (r *MySQLOutboxEventRepository) MarkRetry(
	ctx context.Context,
	id uuid.UUID,
	token string,
	retryCount int,
	nextRetryAt time.Time,
	lastError string,
	at time.Time,
) error {
	query := `UPDATE outbox_events
			  SET status = 'pending', retry_count = ?, next_retry_at = ?, last_error = ?,
			      updated_at = ?, claimed_by = NULL, lease_until = NULL
			  WHERE id = ? AND status = 'processing' AND claimed_by = ?`

	return r.execUnderLease(ctx, "failed to schedule outbox event retry", query,
		retryCount, nextRetryAt, lastError, at, database.BinaryUUID(id), token)
}

// MarkFailed moves the event to its failed terminal state.
func (r *MySQLOutboxEventRepository) MarkFailed(
	ctx context.Context,
	id uuid.UUID,
	token string,
	retryCount int,
	lastError string,
	at time.Time,
) error {
	query := `UPDATE outbox_events
			  SET status = 'failed', retry_count = ?, last_error = ?, updated_at = ?,
			      claimed_by = NULL, lease_until = NULL
			  WHERE id = ? AND status = 'processing' AND claimed_by = ?`

	return r.execUnderLease(ctx, "failed to mark outbox event failed", query,
		retryCount, lastError, at, database.BinaryUUID(id), token)
}

// Cancel marks a pending or failed event canceled.
func (r *MySQLOutboxEventRepository) Cancel(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = 'canceled', updated_at = ?
			  WHERE tenant_id = ? AND id = ? AND status IN ('pending', 'failed')`

	result, err := querier.ExecContext(ctx, query, at, database.BinaryUUID(tenantID), database.BinaryUUID(id))
	if err != nil {
		return apperrors.Wrap(err, "failed to cancel outbox event")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read canceled rows")
	}
	if affected == 0 {
		return domain.ErrEventNotCancelable
	}
	return nil
}

// ArchiveProcessed moves completed and canceled events last touched before the
// cutoff into outbox_events_archive. With dryRun it only counts them. The copy
// and delete must share a transaction.
func (r *MySQLOutboxEventRepository) ArchiveProcessed(
	ctx context.Context,
	before time.Time,
	dryRun bool,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM outbox_events
				  WHERE status IN ('completed', 'canceled') AND updated_at < ?`
		if err := querier.QueryRowContext(ctx, query, before).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count archivable outbox events")
		}
		return count, nil
	}

	copyQuery := `INSERT INTO outbox_events_archive (` + mysqlEventColumns + `, archived_at)
				  SELECT ` + mysqlEventColumns + `, ? FROM outbox_events
				  WHERE status IN ('completed', 'canceled') AND updated_at < ?`
	if _, err := querier.ExecContext(ctx, copyQuery, time.Now().UTC(), before); err != nil {
		return 0, apperrors.Wrap(err, "failed to copy outbox events to archive")
	}

	deleteQuery := `DELETE FROM outbox_events WHERE status IN ('completed', 'canceled') AND updated_at < ?`
	result, err := querier.ExecContext(ctx, deleteQuery, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete archived outbox events")
	}
	return result.RowsAffected()
}

func (r *MySQLOutboxEventRepository) execUnderLease(ctx context.Context, message, query string, args ...any) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(err, message)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, message)
	}
	if affected == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

func scanMySQLEvent(row rowScanner) (*domain.Event, error) {
	var event domain.Event
	var idBytes, tenantBytes, payload []byte

	err := row.Scan(
		&idBytes, &tenantBytes, &event.AggregateType, &event.AggregateID, &event.EventType,
		&payload, &event.IdempotencyKey, &event.Status, &event.RetryCount, &event.MaxRetries,
		&event.NextRetryAt, &event.LastError, &event.ClaimedBy, &event.LeaseUntil,
		&event.CreatedAt, &event.UpdatedAt, &event.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	if event.ID, err = database.ParseBinaryUUID(idBytes); err != nil {
		return nil, err
	}
	if event.TenantID, err = database.ParseBinaryUUID(tenantBytes); err != nil {
		return nil, err
	}
	event.Payload = payload
	return &event, nil
}

func collectMySQLEvents(rows *sql.Rows) ([]*domain.Event, error) {
	events := make([]*domain.Event, 0)
	for rows.Next() {
		event, err := scanMySQLEvent(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox event")
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbox events")
	}
	return events, nil
}
