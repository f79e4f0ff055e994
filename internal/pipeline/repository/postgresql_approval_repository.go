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

const approvalColumns = `id, tenant_id, entry_id, from_status, to_status, requested_by, requested_role, reason,
	status, decided_by, decision_note, decided_at, created_at, updated_at`

// PostgreSQLApprovalRepository handles approval queue persistence for PostgreSQL.
type PostgreSQLApprovalRepository struct {
	db *sql.DB
}

// NewPostgreSQLApprovalRepository creates a new PostgreSQLApprovalRepository.
func NewPostgreSQLApprovalRepository(db *sql.DB) *PostgreSQLApprovalRepository {
	return &PostgreSQLApprovalRepository{db: db}
}

// Create inserts a pending request. The partial unique index on pending requests
// turns a second pending request for the entry into a conflict.
func (r *PostgreSQLApprovalRepository) Create(ctx context.Context, approval *domain.ApprovalRequest) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO approval_requests (` + approvalColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := querier.ExecContext(ctx, query,
		approval.ID, approval.TenantID, approval.EntryID, approval.FromStatus, approval.ToStatus,
		approval.RequestedBy, approval.RequestedRole, approval.Reason, approval.Status, approval.DecidedBy,
		approval.DecisionNote, approval.DecidedAt, approval.CreatedAt, approval.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrApprovalAlreadyPending
		}
		return apperrors.Wrap(err, "failed to create approval request")
	}
	return nil
}

// Get returns the tenant's approval request with the given id.
func (r *PostgreSQLApprovalRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.ApprovalRequest, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE tenant_id = $1 AND id = $2`

	return r.one(querier.QueryRowContext(ctx, query, tenantID, id))
}

// GetForUpdate is Get with a row lock held until the surrounding transaction ends.
func (r *PostgreSQLApprovalRepository) GetForUpdate(
	ctx context.Context,
	tenantID, id uuid.UUID,
) (*domain.ApprovalRequest, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE tenant_id = $1 AND id = $2 FOR UPDATE`

	return r.one(querier.QueryRowContext(ctx, query, tenantID, id))
}

// GetPendingByEntry returns the entry's pending request.
func (r *PostgreSQLApprovalRepository) GetPendingByEntry(
	ctx context.Context,
	tenantID, entryID uuid.UUID,
) (*domain.ApprovalRequest, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + approvalColumns + ` FROM approval_requests
			  WHERE tenant_id = $1 AND entry_id = $2 AND status = 'pending'
			  ORDER BY created_at DESC
			  LIMIT 1`

	return r.one(querier.QueryRowContext(ctx, query, tenantID, entryID))
}

func (r *PostgreSQLApprovalRepository) one(row *sql.Row) (*domain.ApprovalRequest, error) {
	approval, err := scanPostgresApproval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrApprovalNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get approval request")
	}
	return approval, nil
}

// List returns the tenant's approval requests, newest first.
func (r *PostgreSQLApprovalRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	filter domain.ListApprovalsFilter,
) ([]*domain.ApprovalRequest, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + approvalColumns + ` FROM approval_requests
			  WHERE tenant_id = $1
			    AND ($2::text IS NULL OR status = $2)
			    AND ($3::uuid IS NULL OR entry_id = $3)
			  ORDER BY created_at DESC, id DESC
			  LIMIT $4 OFFSET $5`

	rows, err := querier.QueryContext(ctx, query,
		tenantID, stringOrNil(filter.Status), filter.EntryID, filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list approval requests")
	}
	defer rows.Close() //nolint:errcheck

	return collect(rows, scanPostgresApproval, "approval requests")
}

// Update writes the decision of a request.
func (r *PostgreSQLApprovalRepository) Update(ctx context.Context, approval *domain.ApprovalRequest) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE approval_requests
			  SET status = $3, decided_by = $4, decision_note = $5, decided_at = $6, updated_at = $7
			  WHERE tenant_id = $1 AND id = $2`

	result, err := querier.ExecContext(ctx, query,
		approval.TenantID, approval.ID, approval.Status, approval.DecidedBy, approval.DecisionNote,
		approval.DecidedAt, approval.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update approval request")
	}
	return requireAffected(result, domain.ErrApprovalNotFound)
}

// SupersedePending closes the entry's pending requests other than exceptID.
func (r *PostgreSQLApprovalRepository) SupersedePending(
	ctx context.Context,
	tenantID, entryID, exceptID uuid.UUID,
	at time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE approval_requests
			  SET status = 'superseded', decided_at = $4, updated_at = $4
			  WHERE tenant_id = $1 AND entry_id = $2 AND status = 'pending' AND id <> $3`

	result, err := querier.ExecContext(ctx, query, tenantID, entryID, exceptID, at)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to supersede approval requests")
	}
	return result.RowsAffected()
}

func scanPostgresApproval(row rowScanner) (*domain.ApprovalRequest, error) {
	var approval domain.ApprovalRequest

	err := row.Scan(
		&approval.ID, &approval.TenantID, &approval.EntryID, &approval.FromStatus, &approval.ToStatus,
		&approval.RequestedBy, &approval.RequestedRole, &approval.Reason, &approval.Status,
		&approval.DecidedBy, &approval.DecisionNote, &approval.DecidedAt, &approval.CreatedAt, &approval.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &approval, nil
}
