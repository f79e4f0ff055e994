// Package repository provides data persistence implementations for outbox entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/database"
	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/outbox/domain"
)

const postgresEventColumns = `id, tenant_id, aggregate_type, aggregate_id, event_type, payload, idempotency_key,
	status, retry_count, max_retries, next_retry_at, last_error, claimed_by, lease_until,
	created_at, updated_at, processed_at`

// PostgreSQLOutboxEventRepository handles outbox event persistence for PostgreSQL.
type PostgreSQLOutboxEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxEventRepository creates a new PostgreSQLOutboxEventRepository.
func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{
		db: db,
	}
}

// Insert stores a new event. It returns false without error when the tenant already
// has an event with the same idempotency key.
func (r *PostgreSQLOutboxEventRepository) Insert(ctx context.Context, event *domain.Event) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_events (` + postgresEventColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			  ON CONFLICT (tenant_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING`

	result, err := querier.ExecContext(ctx, query,
		event.ID, event.TenantID, event.AggregateType, event.AggregateID, event.EventType,
		string(event.Payload), event.IdempotencyKey, event.Status, event.RetryCount, event.MaxRetries,
		event.NextRetryAt, event.LastError, event.ClaimedBy, event.LeaseUntil,
		event.CreatedAt, event.UpdatedAt, event.ProcessedAt,
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
func (r *PostgreSQLOutboxEventRepository) GetByIdempotencyKey(
	ctx context.Context,
	tenantID uuid.UUID,
	key string,
) (*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresEventColumns + ` FROM outbox_events
			  WHERE tenant_id = $1 AND idempotency_key = $2`

	event, err := scanPostgresEvent(querier.QueryRowContext(ctx, query, tenantID, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event by idempotency key")
	}
	return event, nil
}

// Get returns the tenant's event with the given id.
func (r *PostgreSQLOutboxEventRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresEventColumns + ` FROM outbox_events WHERE tenant_id = $1 AND id = $2`

	event, err := scanPostgresEvent(querier.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event")
	}
	return event, nil
}

// List returns the tenant's events, newest first.
func (r *PostgreSQLOutboxEventRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	filter domain.ListFilter,
) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresEventColumns + ` FROM outbox_events
			  WHERE tenant_id = $1 AND ($2::text IS NULL OR status = $2)
			  ORDER BY created_at DESC, id DESC
			  LIMIT $3 OFFSET $4`

	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	rows, err := querier.QueryContext(ctx, query, tenantID, status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list outbox events")
	}
	defer rows.Close() //nolint:errcheck

	return collectPostgresEvents(rows)
}

// Claim leases due events to the caller. Only the oldest unfinished event of each
// aggregate is eligible, so per-aggregate order is preserved across dispatchers.
func (r *PostgreSQLOutboxEventRepository) Claim(
	ctx context.Context,
	params domain.ClaimParams,
) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `WITH due AS (
				SELECT e.id FROM outbox_events e
				WHERE ((e.status = 'pending' AND e.next_retry_at <= $1)
				    OR (e.status = 'processing' AND e.lease_until <= $1))
				  AND NOT EXISTS (
				    SELECT 1 FROM outbox_events p
				    WHERE p.tenant_id = e.tenant_id
				      AND p.aggregate_type = e.aggregate_type
				      AND p.aggregate_id = e.aggregate_id
				      AND p.status IN ('pending', 'processing')
				      AND (p.created_at, p.id) < (e.created_at, e.id))
				ORDER BY e.created_at, e.id
				LIMIT $2
				FOR UPDATE OF e SKIP LOCKED
			  )
			  UPDATE outbox_events o
			  SET status = 'processing', claimed_by = $3, lease_until = $4, updated_at = $1
			  FROM due WHERE o.id = due.id
			  RETURNING ` + prefixColumns("o.", postgresEventColumns)

	rows, err := querier.QueryContext(ctx, query, params.Now, params.Limit, params.Token, params.LeaseUntil)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim outbox events")
	}
	defer rows.Close() //nolint:errcheck

	events, err := collectPostgresEvents(rows)
	if err != nil {
		return nil, err
	}
	sortByCreation(events)
	return events, nil
}

// MarkCompleted records a successful delivery under the caller's lease.
func (r *PostgreSQLOutboxEventRepository) MarkCompleted(ctx context.Context, id uuid.UUID, token string, at time.Time) error {
	query := `UPDATE outbox_events
			  SET status = 'completed', processed_at = $2, updated_at = $2, last_error = NULL,
			      claimed_by = NULL, lease_until = NULL
			  WHERE id = $1 AND status = 'processing' AND claimed_by = $3`

	return r.execUnderLease(ctx, "failed to mark outbox event completed", query, id, at, token)
}

// MarkRetry returns the event to pending with its next attempt scheduled.
func (r *PostgreSQLOutboxEventRepository) MarkRetry(
	ctx context.Context,
	id uuid.UUID,
	token string,
	retryCount int,
	nextRetryAt time.Time,
	lastError string,
	at time.Time,
) error {
	query := `UPDATE outbox_events
			  SET status = 'pending', retry_count = $2, next_retry_at = $3, last_error = $4,
			      updated_at = $5, claimed_by = NULL, lease_until = NULL
			  WHERE id = $1 AND status = 'processing' AND claimed_by = $6`

	return r.execUnderLease(ctx, "failed to schedule outbox event retry", query,
		id, retryCount, nextRetryAt, lastError, at, token)
}

// MarkFailed moves the event to its failed terminal state.
func (r *PostgreSQLOutboxEventRepository) MarkFailed(
	ctx context.Context,
	id uuid.UUID,
	token string,
	retryCount int,
	lastError string,
	at time.Time,
) error {
	query := `UPDATE outbox_events
			  SET status = 'failed', retry_count = $2, last_error = $3, updated_at = $4,
			      claimed_by = NULL, lease_until = NULL
			  WHERE id = $1 AND status = 'processing' AND claimed_by = $5`

	return r.execUnderLease(ctx, "failed to mark outbox event failed", query, id, retryCount, lastError, at, token)
}

// Cancel marks a pending or failed event canceled.
func (r *PostgreSQLOutboxEventRepository) Cancel(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = 'canceled', updated_at = $3
			  WHERE tenant_id = $1 AND id = $2 AND status IN ('pending', 'failed')`

	result, err := querier.ExecContext(ctx, query, tenantID, id, at)
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
// cutoff into outbox_events_archive. With dryRun it only counts them.
func (r *PostgreSQLOutboxEventRepository) ArchiveProcessed(
	ctx context.Context,
	before time.Time,
	dryRun bool,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM outbox_events
				  WHERE status IN ('completed', 'canceled') AND updated_at < $1`
		if err := querier.QueryRowContext(ctx, query, before).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count archivable outbox events")
		}
		return count, nil
	}

	query := `WITH moved AS (
				DELETE FROM outbox_events
				WHERE status IN ('completed', 'canceled') AND updated_at < $1
				RETURNING ` + postgresEventColumns + `
			  )
			  INSERT INTO outbox_events_archive (` + postgresEventColumns + `, archived_at)
			  SELECT ` + postgresEventColumns + `, $2 FROM moved`

	result, err := querier.ExecContext(ctx, query, before, time.Now().UTC())
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to archive outbox events")
	}
	return result.RowsAffected()
}

func (r *PostgreSQLOutboxEventRepository) execUnderLease(
	ctx context.Context,
	message string,
	query string,
	args ...any,
) error {
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresEvent(row rowScanner) (*domain.Event, error) {
	var event domain.Event
	var payload []byte

	err := row.Scan(
		&event.ID, &event.TenantID, &event.AggregateType, &event.AggregateID, &event.EventType,
		&payload, &event.IdempotencyKey, &event.Status, &event.RetryCount, &event.MaxRetries,
		&event.NextRetryAt, &event.LastError, &event.ClaimedBy, &event.LeaseUntil,
		&event.CreatedAt, &event.UpdatedAt, &event.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	event.Payload = payload
	return &event, nil
}

func collectPostgresEvents(rows *sql.Rows) ([]*domain.Event, error) {
	events := make([]*domain.Event, 0)
	for rows.Next() {
		event, err := scanPostgresEvent(rows)
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

func sortByCreation(events []*domain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID.String() < events[j].ID.String()
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}
