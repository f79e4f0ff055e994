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

// MySQLEntryRepository handles pipeline entry persistence for MySQL.
// Identifiers are stored as BINARY(16).
type MySQLEntryRepository struct {
	db *sql.DB
}

// NewMySQLEntryRepository creates a new MySQLEntryRepository.
func NewMySQLEntryRepository(db *sql.DB) *MySQLEntryRepository {
	return &MySQLEntryRepository{db: db}
}

// Create inserts a new entry.
func (r *MySQLEntryRepository) Create(ctx context.Context, entry *domain.Entry) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO pipeline_entries (` + entryColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query,
		database.BinaryUUID(entry.ID), database.BinaryUUID(entry.TenantID), database.BinaryUUID(entry.ContactID),
		database.NullableBinaryUUID(entry.LocationID), entry.Status, entry.StatusEnteredAt,
		database.NullableBinaryUUID(entry.AssignedTo), entry.ApprovalStatus, entry.EstimatedValueCents,
		entry.Qualification, entry.DeletedAt, entry.DeletionReason, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create pipeline entry")
	}
	return nil
}

// Get returns the tenant's entry with the given id, including soft-deleted ones.
func (r *MySQLEntryRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Entry, error) {
	return r.get(ctx, tenantID, id, "")
}

// GetForUpdate is Get with a row lock held until the surrounding transaction ends.
func (r *MySQLEntryRepository) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*domain.Entry, error) {
	return r.get(ctx, tenantID, id, " FOR UPDATE")
}

func (r *MySQLEntryRepository) get(ctx context.Context, tenantID, id uuid.UUID, lock string) (*domain.Entry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + ` FROM pipeline_entries WHERE tenant_id = ? AND id = ?` + lock

	entry, err := scanMySQLEntry(
		querier.QueryRowContext(ctx, query, database.BinaryUUID(tenantID), database.BinaryUUID(id)),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get pipeline entry")
	}
	return entry, nil
}

// List returns the tenant's entries, newest first.
func (r *MySQLEntryRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	filter domain.ListEntriesFilter,
) ([]*domain.Entry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + entryColumns + ` FROM pipeline_entries WHERE tenant_id = ?`
	args := []any{database.BinaryUUID(tenantID)}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.AssignedTo != nil {
		query += ` AND assigned_to = ?`
		args = append(args, database.BinaryUUID(*filter.AssignedTo))
	}
	if !filter.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pipeline entries")
	}
	defer rows.Close() //nolint:errcheck

	return collect(rows, scanMySQLEntry, "pipeline entries")
}

// Update writes every mutable attribute of the entry.
func (r *MySQLEntryRepository) Update(ctx context.Context, entry *domain.Entry) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE pipeline_entries
			  SET status = ?, status_entered_at = ?, assigned_to = ?, approval_status = ?,
			      estimated_value_cents = ?, qualification = ?, deleted_at = ?, deletion_reason = ?,
			      updated_at = ?
			  WHERE tenant_id = ? AND id = ?`

	result, err := querier.ExecContext(ctx, query,
		entry.Status, entry.StatusEnteredAt, database.NullableBinaryUUID(entry.AssignedTo), entry.ApprovalStatus,
		entry.EstimatedValueCents, entry.Qualification, entry.DeletedAt, entry.DeletionReason, entry.UpdatedAt,
		database.BinaryUUID(entry.TenantID), database.BinaryUUID(entry.ID),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update pipeline entry")
	}
	return requireAffected(result, domain.ErrEntryNotFound)
}

func scanMySQLEntry(row rowScanner) (*domain.Entry, error) {
	var entry domain.Entry
	var id, tenantID, contactID, locationID, assignedTo []byte

	err := row.Scan(
		&id, &tenantID, &contactID, &locationID, &entry.Status, &entry.StatusEnteredAt, &assignedTo,
		&entry.ApprovalStatus, &entry.EstimatedValueCents, &entry.Qualification, &entry.DeletedAt,
		&entry.DeletionReason, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if entry.ID, err = database.ParseBinaryUUID(id); err != nil {
		return nil, err
	}
	if entry.TenantID, err = database.ParseBinaryUUID(tenantID); err != nil {
		return nil, err
	}
	if entry.ContactID, err = database.ParseBinaryUUID(contactID); err != nil {
		return nil, err
	}
	if entry.LocationID, err = database.ParseNullableBinaryUUID(locationID); err != nil {
		return nil, err
	}
	if entry.AssignedTo, err = database.ParseNullableBinaryUUID(assignedTo); err != nil {
		return nil, err
	}
	return &entry, nil
}
