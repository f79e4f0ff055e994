package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/database"
	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/pipeline/domain"
)

// MySQLApprovalRepository handles approval queue persistence for MySQL. MySQL has
// no partial indexes, so the single pending request per entry relies on the entry
// row lock taken by every caller.
type MySQLApprovalRepository struct {
	db *sql.DB
}

// NewMySQLApprovalRepository creates a new MySQLApprovalRepository.
func NewMySQLApprovalRepository(db *sql.DB) *MySQLApprovalRepository {
	return &MySQLApprovalRepository{db: db}
}

// Create inserts a pending request.
func (r *MySQLApprovalRepository) Create(ctx context.Context, approval *domain.ApprovalRequest) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO approval_requests (` + approvalColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query,
		database.BinaryUUID(approval.ID), database.BinaryUUID(approval.TenantID),
		database.BinaryUUID(approval.EntryID), approval.FromStatus, approval.ToStatus,
		database.BinaryUUID(approval.RequestedBy), approval.RequestedRole, approval.Reason, approval.Status,
		database.NullableBinaryUUID(approval.DecidedBy), approval.DecisionNote, approval.DecidedAt,
		approval.CreatedAt, approval.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create approval request")
	}
	return nil
}

// Get returns the tenant's approval request with the given id.
func (r *MySQLApprovalRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.ApprovalRequest, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE tenant_id = ? AND id = ?`

	return r.one(querier.QueryRowContext(ctx, query, database.BinaryUUID(tenantID), database.BinaryUUID(id)))
}

// GetForUpdate is Get with a row lock held until the surrounding transaction ends.
func (r *MySQLApprovalRepository) GetForUpdate(
	ctx context.Context,
	tenantID, id uuid.UUID,
) (*domain.ApprovalRequest, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE tenant_id = ? AND id = ? FOR UPDATE`

	return r.one(querier.QueryRowContext(ctx, query, database.BinaryUUID(tenantID), database.BinaryUUID(id)))
}

// GetPendingByEntry returns the entry's pending request.
func (r *MySQLApprovalRepository) GetPendingByEntry(
	ctx context.Context,
	tenantID, entryID uuid.UUID,
) (*domain.ApprovalRequest, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + approvalColumns + ` FROM approval_requests
			  WHERE tenant_id = ? AND entry_id = ? AND status = 'pending'
			  ORDER BY created_at DESC
			  LIMIT 1`

	return r.one(querier.QueryRowContext(ctx, query, database.BinaryUUID(tenantID), database.BinaryUUID(entryID)))
}

func (r *MySQLApprovalRepository) one(row *sql.Row) (*domain.ApprovalRequest, error) {
	approval, err := scanMySQLApproval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrApprovalNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get approval request")
	}
	return approval, nil
}

// List returns the tenant's approval requests, newest first.
func (r *MySQLApprovalRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	filter domain.ListApprovalsFilter,
) ([]*domain.ApprovalRequest, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE tenant_id = ?`
	args := []any{database.BinaryUUID(tenantID)}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.EntryID != nil {
		query += ` AND entry_id = ?`
		args = append(args, database.BinaryUUID(*filter.EntryID))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list approval requests")
	}
	defer rows.Close() //nolint:errcheck

	return collect(rows, scanMySQLApproval, "approval requests")
}

// Update writes the decision of a request.
func (r *MySQLApprovalRepository) Update(ctx context.Context, approval *domain.ApprovalRequest) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE approval_requests
			  SET status = ?, decided_by = ?, decision_note = ?, decided_at = ?, updated_at = ?
			  WHERE tenant_id = ? AND id = ?`

	result, err := querier.ExecContext(ctx, query,
		approval.Status, database.NullableBinaryUUID(approval.DecidedBy), approval.DecisionNote,
		approval.DecidedAt, approval.UpdatedAt, database.BinaryUUID(approval.TenantID), database.BinaryUUID(approval.ID),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update approval request")
	}
	return requireAffected(result, domain.ErrApprovalNotFound)
}

// SupersedePending closes the entry's pending requests other than exceptID.
func (r *MySQLApprovalRepository) SupersedePending(
	ctx context.Context,
	tenantID, entryID, exceptID uuid.UUID,
	at time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE approval_requests
			  SET status = 'superseded', decided_at = ?, updated_at = ?
			  WHERE tenant_id = ? AND entry_id = ? AND status = 'pending' AND id <> ?`

	result, err := querier.ExecContext(ctx, query,
		at, at, database.BinaryUUID(tenantID), database.BinaryUUID(entryID), database.BinaryUUID(exceptID),
	)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to supersede approval requests")
	}
	return result.RowsAffected()
}

func scanMySQLApproval(row rowScanner) (*domain.ApprovalRequest, error) {
	var approval domain.ApprovalRequest
	var id, tenantID, entryID, requestedBy, decidedBy []byte

	err := row.Scan(
		&id, &tenantID, &entryID, &approval.FromStatus, &approval.ToStatus, &requestedBy,
		&approval.RequestedRole, &approval.Reason, &approval.Status, &decidedBy, &approval.DecisionNote,
		&approval.DecidedAt, &approval.CreatedAt, &approval.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approval.ID, err = database.ParseBinaryUUID(id); err != nil {
		return nil, err
	}
	if approval.TenantID, err = database.ParseBinaryUUID(tenantID); err != nil {
		return nil, err
	}
	if approval.EntryID, err = database.ParseBinaryUUID(entryID); err != nil {
		return nil, err
	}
	if approval.RequestedBy, err = database.ParseBinaryUUID(requestedBy); err != nil {
		return nil, err
	}
	if approval.DecidedBy, err = database.ParseNullableBinaryUUID(decidedBy); err != nil {
		return nil, err
	}
	return &approval, nil
}
