package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/database"
	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/pipeline/domain"
)

const historyColumns = `id, tenant_id, entry_id, from_status, to_status, transitioned_by, actor_role, reason,
	requires_approval, is_backward, approval_request_id, approved_by, created_at`

// PostgreSQLHistoryRepository handles transition history persistence for PostgreSQL.
// History rows are append-only.
type PostgreSQLHistoryRepository struct {
	db *sql.DB
}

// NewPostgreSQLHistoryRepository creates a new PostgreSQLHistoryRepository.
func NewPostgreSQLHistoryRepository(db *sql.DB) *PostgreSQLHistoryRepository {
	return &PostgreSQLHistoryRepository{db: db}
}

// Create appends a history row.
func (r *PostgreSQLHistoryRepository) Create(ctx context.Context, history *domain.TransitionHistory) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO transition_history (` + historyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := querier.ExecContext(ctx, query,
		history.ID, history.TenantID, history.EntryID, stringOrNil(history.FromStatus), history.ToStatus,
		history.TransitionedBy, history.ActorRole, history.Reason, history.RequiresApproval, history.IsBackward,
		history.ApprovalRequestID, history.ApprovedBy, history.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create transition history")
	}
	return nil
}

// ListByEntry returns the entry's history, oldest first.
func (r *PostgreSQLHistoryRepository) ListByEntry(
	ctx context.Context,
	tenantID, entryID uuid.UUID,
	offset, limit int,
) ([]*domain.TransitionHistory, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + historyColumns + ` FROM transition_history
			  WHERE tenant_id = $1 AND entry_id = $2
			  ORDER BY created_at ASC, id ASC
			  LIMIT $3 OFFSET $4`

	rows, err := querier.QueryContext(ctx, query, tenantID, entryID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list transition history")
	}
	defer rows.Close() //nolint:errcheck

	return collect(rows, scanPostgresHistory, "transition history")
}

func scanPostgresHistory(row rowScanner) (*domain.TransitionHistory, error) {
	var history domain.TransitionHistory

	err := row.Scan(
		&history.ID, &history.TenantID, &history.EntryID, &history.FromStatus, &history.ToStatus,
		&history.TransitionedBy, &history.ActorRole, &history.Reason, &history.RequiresApproval,
		&history.IsBackward, &history.ApprovalRequestID, &history.ApprovedBy, &history.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &history, nil
}
