package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/database"
	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/pipeline/domain"
)

const entryColumns = `id, tenant_id, contact_id, location_id, status, status_entered_at, assigned_to,
	approval_status, estimated_value_cents, qualification, deleted_at, deletion_reason, created_at, updated_at`

// PostgreSQLEntryRepository handles pipeline entry persistence for PostgreSQL.
type PostgreSQLEntryRepository struct {
	db *sql.DB
}

// NewPostgreSQLEntryRepository creates a new PostgreSQLEntryRepository.
func NewPostgreSQLEntryRepository(db *sql.DB) *PostgreSQLEntryRepository {
	return &PostgreSQLEntryRepository{db: db}
}

// Create inserts a new entry.
func (r *PostgreSQLEntryRepository) Create(ctx context.Context, entry *domain.Entry) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO pipeline_entries (` + entryColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := querier.ExecContext(ctx, query,
		entry.ID, entry.TenantID, entry.ContactID, entry.LocationID, entry.Status, entry.StatusEnteredAt,
		entry.AssignedTo, entry.ApprovalStatus, entry.EstimatedValueCents, entry.Qualification,
		entry.DeletedAt, entry.DeletionReason, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create pipeline entry")
	}
	return nil
}

// Get returns the tenant's entry with the given id, including soft-deleted ones.
func (r *PostgreSQLEntryRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Entry, error) {
	return r.get(ctx, tenantID, id, "")
}

// GetForUpdate is Get with a row lock held until the surrounding transaction ends.
func (r *PostgreSQLEntryRepository) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*domain.Entry, error) {
	return r.get(ctx, tenantID, id, " FOR UPDATE")
}

func (r *PostgreSQLEntryRepository) get(
	ctx context.Context,
	tenantID, id uuid.UUID,
	lock string,
) (*domain.Entry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + ` FROM pipeline_entries WHERE tenant_id = $1 AND id = $2` + lock

	entry, err := scanPostgresEntry(querier.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get pipeline entry")
	}
	return entry, nil
}

// List returns the tenant's entries, newest first.
func (r *PostgreSQLEntryRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	filter domain.ListEntriesFilter,
) ([]*domain.Entry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + ` FROM pipeline_entries
			  WHERE tenant_id = $1
			    AND ($2::text IS NULL OR status = $2)
			    AND ($3::uuid IS NULL OR assigned_to = $3)
			    AND ($4 OR deleted_at IS NULL)
			  ORDER BY created_at DESC, id DESC
			  LIMIT $5 OFFSET $6`

	rows, err := querier.QueryContext(ctx, query,
		tenantID, stringOrNil(filter.Status), filter.AssignedTo, filter.IncludeDeleted, filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pipeline entries")
	}
	defer rows.Close() //nolint:errcheck

	return collect(rows, scanPostgresEntry, "pipeline entries")
}

// Update writes every mutable attribute of the entry.
func (r *PostgreSQLEntryRepository) Update(ctx context.Context, entry *domain.Entry) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE pipeline_entries
			  SET status = $3, status_entered_at = $4, assigned_to = $5, approval_status = $6,
			      estimated_value_cents = $7, qualification = $8, deleted_at = $9, deletion_reason = $10,
			      updated_at = $11
			  WHERE tenant_id = $1 AND id = $2`

	result, err := querier.ExecContext(ctx, query,
		entry.TenantID, entry.ID, entry.Status, entry.StatusEnteredAt, entry.AssignedTo, entry.ApprovalStatus,
		entry.EstimatedValueCents, entry.Qualification, entry.DeletedAt, entry.DeletionReason, entry.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update pipeline entry")
	}
	return requireAffected(result, domain.ErrEntryNotFound)
}

func scanPostgresEntry(row rowScanner) (*domain.Entry, error) {
	var entry domain.Entry

	err := row.Scan(
		&entry.ID, &entry.TenantID, &entry.ContactID, &entry.LocationID, &entry.Status,
		&entry.StatusEnteredAt, &entry.AssignedTo, &entry.ApprovalStatus, &entry.EstimatedValueCents,
		&entry.Qualification, &entry.DeletedAt, &entry.DeletionReason, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
