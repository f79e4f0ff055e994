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

// MySQLRuleRepository handles transition rule persistence for MySQL.
type MySQLRuleRepository struct {
	db *sql.DB
}

// NewMySQLRuleRepository creates a new MySQLRuleRepository.
func NewMySQLRuleRepository(db *sql.DB) *MySQLRuleRepository {
	return &MySQLRuleRepository{db: db}
}

func mysqlRuleArgs(rule *domain.TransitionRule) []any {
	return []any{
		database.BinaryUUID(rule.ID), database.BinaryUUID(rule.TenantID), rule.FromStatus, rule.ToStatus,
		rule.RequiredRoles, rule.RequiresApproval, rule.RequiresReason, seconds(rule.MinTimeInStage),
		rule.MinValueCents, rule.MaxValueCents, rule.Active, rule.CreatedAt, rule.UpdatedAt,
	}
}

// Create inserts a rule. A second rule for the same status pair is a conflict.
func (r *MySQLRuleRepository) Create(ctx context.Context, rule *domain.TransitionRule) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO transition_rules (` + ruleColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := querier.ExecContext(ctx, query, mysqlRuleArgs(rule)...); err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrRuleAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create transition rule")
	}
	return nil
}

// CreateIfAbsent inserts a rule unless the tenant already has one for the pair.
func (r *MySQLRuleRepository) CreateIfAbsent(ctx context.Context, rule *domain.TransitionRule) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO transition_rules (` + ruleColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE id = id`

	result, err := querier.ExecContext(ctx, query, mysqlRuleArgs(rule)...)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to seed transition rule")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read inserted rows")
	}
	return affected == 1, nil
}

// Update writes the conditions and the active flag of a rule.
func (r *MySQLRuleRepository) Update(ctx context.Context, rule *domain.TransitionRule) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE transition_rules
			  SET required_roles = ?, requires_approval = ?, requires_reason = ?,
			      min_time_in_stage_seconds = ?, min_value_cents = ?, max_value_cents = ?,
			      active = ?, updated_at = ?
			  WHERE tenant_id = ? AND id = ?`

	result, err := querier.ExecContext(ctx, query,
		rule.RequiredRoles, rule.RequiresApproval, rule.RequiresReason, seconds(rule.MinTimeInStage),
		rule.MinValueCents, rule.MaxValueCents, rule.Active, rule.UpdatedAt,
		database.BinaryUUID(rule.TenantID), database.BinaryUUID(rule.ID),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update transition rule")
	}
	return requireAffected(result, domain.ErrRuleNotFound)
}

// Get returns the tenant's rule with the given id.
func (r *MySQLRuleRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.TransitionRule, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + ruleColumns + ` FROM transition_rules WHERE tenant_id = ? AND id = ?`

	return r.one(querier.QueryRowContext(ctx, query, database.BinaryUUID(tenantID), database.BinaryUUID(id)))
}

// GetActive returns the tenant's active rule for the status pair.
func (r *MySQLRuleRepository) GetActive(
	ctx context.Context,
	tenantID uuid.UUID,
	from, to domain.Status,
) (*domain.TransitionRule, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + ruleColumns + ` FROM transition_rules
			  WHERE tenant_id = ? AND from_status = ? AND to_status = ? AND active = TRUE`

	return r.one(querier.QueryRowContext(ctx, query, database.BinaryUUID(tenantID), string(from), string(to)))
}

func (r *MySQLRuleRepository) one(row *sql.Row) (*domain.TransitionRule, error) {
	rule, err := scanMySQLRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get transition rule")
	}
	return rule, nil
}

// List returns the tenant's rules ordered by status pair.
func (r *MySQLRuleRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	activeOnly bool,
) ([]*domain.TransitionRule, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + ruleColumns + ` FROM transition_rules WHERE tenant_id = ?`
	if activeOnly {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY from_status, to_status`

	rows, err := querier.QueryContext(ctx, query, database.BinaryUUID(tenantID))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list transition rules")
	}
	defer rows.Close() //nolint:errcheck

	return collect(rows, scanMySQLRule, "transition rules")
}

func scanMySQLRule(row rowScanner) (*domain.TransitionRule, error) {
	var rule domain.TransitionRule
	var id, tenantID []byte
	var minTimeSeconds int64

	err := row.Scan(
		&id, &tenantID, &rule.FromStatus, &rule.ToStatus, &rule.RequiredRoles, &rule.RequiresApproval,
		&rule.RequiresReason, &minTimeSeconds, &rule.MinValueCents, &rule.MaxValueCents, &rule.Active,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rule.ID, err = database.ParseBinaryUUID(id); err != nil {
		return nil, err
	}
	if rule.TenantID, err = database.ParseBinaryUUID(tenantID); err != nil {
		return nil, err
	}
	rule.MinTimeInStage = time.Duration(minTimeSeconds) * time.Second
	return &rule, nil
}
