package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/database"
	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/tenant"
)

type ruleUseCase struct {
	txManager database.TxManager
	ruleRepo  RuleRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewRuleUseCase creates the rule administration use case.
func NewRuleUseCase(txManager database.TxManager, ruleRepo RuleRepository, logger *slog.Logger) RuleUseCase {
	return &ruleUseCase{
		txManager: txManager,
		ruleRepo:  ruleRepo,
		logger:    logger,
		now:       time.Now,
	}
}

func requireAdministrator(actor tenant.Actor) error {
	if err := validateActor(actor); err != nil {
		return err
	}
	if !actor.Role.CanAdminister() {
		return pipelineDomain.ErrNotAdministrator
	}
	return nil
}

func applyRuleInput(rule *pipelineDomain.TransitionRule, input pipelineDomain.RuleInput) {
	rule.RequiredRoles = input.RequiredRoles
	rule.RequiresApproval = input.RequiresApproval
	rule.RequiresReason = input.RequiresReason
	rule.MinTimeInStage = input.MinTimeInStage
	rule.MinValueCents = input.MinValueCents
	rule.MaxValueCents = input.MaxValueCents
	if input.Active != nil {
		rule.Active = *input.Active
	}
}

func (uc *ruleUseCase) CreateRule(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	from, to pipelineDomain.Status,
	input pipelineDomain.RuleInput,
) (*pipelineDomain.TransitionRule, error) {
	if err := requireAdministrator(actor); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	rule := &pipelineDomain.TransitionRule{
		ID:         uuid.Must(uuid.NewV7()),
		TenantID:   tenantID,
		FromStatus: from,
		ToStatus:   to,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyRuleInput(rule, input)

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := uc.ruleRepo.Create(ctx, rule); err != nil {
		return nil, err
	}

	uc.logger.Info("transition rule created",
		slog.String("tenant_id", tenantID.String()),
		slog.String("rule_id", rule.ID.String()),
		slog.String("from_status", string(from)),
		slog.String("to_status", string(to)),
	)
	return rule, nil
}

// UpdateRule replaces the conditions of a rule. The status pair is immutable.
func (uc *ruleUseCase) UpdateRule(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	input pipelineDomain.RuleInput,
) (*pipelineDomain.TransitionRule, error) {
	if err := requireAdministrator(actor); err != nil {
		return nil, err
	}

	return uc.mutate(ctx, tenantID, id, func(rule *pipelineDomain.TransitionRule) {
		applyRuleInput(rule, input)
	})
}

// DeactivateRule disables a rule. Entries can no longer take the transition but
// history that references it is kept.
func (uc *ruleUseCase) DeactivateRule(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
) (*pipelineDomain.TransitionRule, error) {
	if err := requireAdministrator(actor); err != nil {
		return nil, err
	}

	return uc.mutate(ctx, tenantID, id, func(rule *pipelineDomain.TransitionRule) {
		rule.Active = false
	})
}

func (uc *ruleUseCase) mutate(
	ctx context.Context,
	tenantID, id uuid.UUID,
	fn func(rule *pipelineDomain.TransitionRule),
) (*pipelineDomain.TransitionRule, error) {
	var rule *pipelineDomain.TransitionRule

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		rule, err = uc.ruleRepo.Get(ctx, tenantID, id)
		if err != nil {
			return err
		}

		fn(rule)
		rule.UpdatedAt = uc.now().UTC()
		if err := rule.Validate(); err != nil {
			return err
		}
		return uc.ruleRepo.Update(ctx, rule)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("transition rule updated",
		slog.String("tenant_id", tenantID.String()),
		slog.String("rule_id", id.String()),
		slog.Bool("active", rule.Active),
	)
	return rule, nil
}

func (uc *ruleUseCase) ListRules(
	ctx context.Context,
	tenantID uuid.UUID,
	activeOnly bool,
) ([]*pipelineDomain.TransitionRule, error) {
	return uc.ruleRepo.List(ctx, tenantID, activeOnly)
}

func (uc *ruleUseCase) SeedRules(
	ctx context.Context,
	tenantID uuid.UUID,
	rules []pipelineDomain.TransitionRule,
) (int, error) {
	created := 0

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		now := uc.now().UTC()
		for i := range rules {
			rule := rules[i]
			rule.ID = uuid.Must(uuid.NewV7())
			rule.TenantID = tenantID
			rule.CreatedAt = now
			rule.UpdatedAt = now

			if err := rule.Validate(); err != nil {
				return err
			}

			inserted, err := uc.ruleRepo.CreateIfAbsent(ctx, &rule)
			if err != nil {
				return err
			}
			if inserted {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	uc.logger.Info("transition rules seeded",
		slog.String("tenant_id", tenantID.String()),
		slog.Int("created", created),
		slog.Int("skipped", len(rules)-created),
	)
	return created, nil
}
