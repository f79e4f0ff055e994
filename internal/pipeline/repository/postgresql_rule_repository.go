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

const ruleColumns = `id, tenant_id, from_status, to_status, required_roles, requires_approval, requires_reason,
	min_time_in_stage_seconds, min_value_cents, max_value_cents, active, created_at, updated_at`

// PostgreSQLRuleRepository handles transition rule persistence for PostgreSQL.
type PostgreSQLRuleRepository struct {
	db *sql.DB
}

// NewPostgreSQLRuleRepository creates a new PostgreSQLRuleRepository.
func NewPostgreSQLRuleRepository(db *sql.DB) *PostgreSQLRuleRepository {
	return &PostgreSQLRuleRepository{db: db}
}

func postgresRuleArgs(rule *domain.TransitionRule) []any {
	return []any{
		rule.ID, rule.TenantID, rule.FromStatus, rule.ToStatus, rule.RequiredRoles, rule.RequiresApproval,
		rule.RequiresReason, seconds(rule.MinTimeInStage), rule.MinValueCents, rule.MaxValueCents, rule.Active,
		rule.CreatedAt, rule.UpdatedAt,
	}
}

// Create inserts a rule. A second rule for the same status pair is a conflict.
func (r *PostgreSQLRuleRepository) Create(ctx context.Context, rule *domain.TransitionRule) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO transition_rules (` + ruleColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	if _, err := querier.ExecContext(ctx, query, postgresRuleArgs(rule)...); err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrRuleAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create transition rule")
	}
	return nil
}

// CreateIfAbsent inserts a rule unless the tenant already has one for the pair.
func (r *PostgreSQLRuleRepository) CreateIfAbsent(ctx context.Context, rule *domain.TransitionRule) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO transition_rules (` + ruleColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			  ON CONFLICT (tenant_id, from_status, to_status) DO NOTHING`

	result, err := querier.ExecContext(ctx, query, postgresRuleArgs(rule)...)
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
func (r *PostgreSQLRuleRepository) Update(ctx context.Context, rule *domain.TransitionRule) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE transition_rules
			  SET required_roles = $3, requires_approval = $4, requires_reason = $5,
			      min_time_in_stage_seconds = $6, min_value_cents = $7, max_value_cents = $8,
			      active = $9, updated_at = $10
			  WHERE tenant_id = $1 AND id = $2`

	result, err := querier.ExecContext(ctx, query,
		rule.TenantID, rule.ID, rule.RequiredRoles, rule.RequiresApproval, rule.RequiresReason,
		seconds(rule.MinTimeInStage), rule.MinValueCents, rule.MaxValueCents, rule.Active, rule.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update transition rule")
	}
	return requireAffected(result, domain.ErrRuleNotFound)
}

// Get returns the tenant's rule with the given id.
func (r *PostgreSQLRuleRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.TransitionRule, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + ruleColumns + ` FROM transition_rules WHERE tenant_id = $1 AND id = $2`

	return r.one(querier.QueryRowContext(ctx, query, tenantID, id))
}

// GetActive returns the tenant's active rule for the status pair.
func (r *PostgreSQLRuleRepository) GetActive(
	ctx context.Context,
	tenantID uuid.UUID,
	from, to domain.Status,
) (*domain.TransitionRule, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + ruleColumns + ` FROM transition_rules
			  WHERE tenant_id = $1 AND from_status = $2 AND to_status = $3 AND active`

	return r.one(querier.QueryRowContext(ctx, query, tenantID, from, to))
}

func (r *PostgreSQLRuleRepository) one(row *sql.Row) (*domain.TransitionRule, error) {
	rule, err := scanPostgresRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get transition rule")
	}
	return rule, nil
}

// List returns the tenant's rules ordered by status pair.
func (r *PostgreSQLRuleRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	activeOnly bool,
) ([]*domain.TransitionRule, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + ruleColumns + ` FROM transition_rules
			  WHERE tenant_id = $1 AND (NOT $2 OR active)
			  ORDER BY from_status, to_status`

	rows, err := querier.QueryContext(ctx, query, tenantID, activeOnly)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list transition rules")
	}
	defer rows.Close() //nolint:errcheck

	return collect(rows, scanPostgresRule, "transition rules")
}

func scanPostgresRule(row rowScanner) (*domain.TransitionRule, error) {
	var rule domain.TransitionRule
	var minTimeSeconds int64

	err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.FromStatus, &rule.ToStatus, &rule.RequiredRoles,
		&rule.RequiresApproval, &rule.RequiresReason, &minTimeSeconds, &rule.MinValueCents,
		&rule.MaxValueCents, &rule.Active, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rule.MinTimeInStage = time.Duration(minTimeSeconds) * time.Second
	return &rule, nil
}
