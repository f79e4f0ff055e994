package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/database"
	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/pipeline/domain"
)

// MySQLHistoryRepository handles transition history persistence for MySQL.
type MySQLHistoryRepository struct {
	db *sql.DB
}

// NewMySQLHistoryRepository creates a new MySQLHistoryRepository.
func NewMySQLHistoryRepository(db *sql.DB) *MySQLHistoryRepository {
	return &MySQLHistoryRepository{db: db}
}

// Create appends a history row.
func (r *MySQLHistoryRepository) Create(ctx context.Context, history *domain.TransitionHistory) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO transition_history (` + historyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query,
		database.BinaryUUID(history.ID), database.BinaryUUID(history.TenantID), database.BinaryUUID(history.EntryID),
		stringOrNil(history.FromStatus), history.ToStatus, database.BinaryUUID(history.TransitionedBy),
		history.ActorRole, history.Reason, history.RequiresApproval, history.IsBackward,
		database.NullableBinaryUUID(history.ApprovalRequestID), database.NullableBinaryUUID(history.ApprovedBy),
		history.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create transition history")
	}
	return nil
}

// ListByEntry returns the entry's history, oldest first.
func (r *MySQLHistoryRepository) ListByEntry(
	ctx context.Context,
	tenantID, entryID uuid.UUID,
	offset, limit int,
) ([]*domain.TransitionHistory, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + historyColumns + ` FROM transition_history
			  WHERE tenant_id = ? AND entry_id = ?
			  ORDER BY created_at ASC, id ASC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query,
		database.BinaryUUID(tenantID), database.BinaryUUID(entryID), limit, offset,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list transition history")
	}
	defer rows.Close() //nolint:errcheck

	return collect(rows, scanMySQLHistory, "transition history")
}

func scanMySQLHistory(row rowScanner) (*domain.TransitionHistory, error) {
	var history domain.TransitionHistory
	var id, tenantID, entryID, transitionedBy, approvalRequestID, approvedBy []byte

	err := row.Scan(
		&id, &tenantID, &entryID, &history.FromStatus, &history.ToStatus, &transitionedBy,
		&history.ActorRole, &history.Reason, &history.RequiresApproval, &history.IsBackward,
		&approvalRequestID, &approvedBy, &history.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if history.ID, err = database.ParseBinaryUUID(id); err != nil {
		return nil, err
	}
	if history.TenantID, err = database.ParseBinaryUUID(tenantID); err != nil {
		return nil, err
	}
	if history.EntryID, err = database.ParseBinaryUUID(entryID); err != nil {
		return nil, err
	}
	if history.TransitionedBy, err = database.ParseBinaryUUID(transitionedBy); err != nil {
		return nil, err
	}
	if history.ApprovalRequestID, err = database.ParseNullableBinaryUUID(approvalRequestID); err != nil {
		return nil, err
	}
	if history.ApprovedBy, err = database.ParseNullableBinaryUUID(approvedBy); err != nil {
		return nil, err
	}
	return &history, nil
}
