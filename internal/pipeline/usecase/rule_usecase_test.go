package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	databaseMocks "github.com/roofline/crmcore/internal/database/mocks"
	apperrors "github.com/roofline/crmcore/internal/errors"
	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	pipelineMocks "github.com/roofline/crmcore/internal/pipeline/usecase/mocks"
	"github.com/roofline/crmcore/internal/tenant"
)

func newRuleUseCase(t *testing.T) (*ruleUseCase, *databaseMocks.MockTxManager, *pipelineMocks.MockRuleRepository) {
	txManager := databaseMocks.NewMockTxManager(t)
	repo := pipelineMocks.NewMockRuleRepository(t)
	uc := NewRuleUseCase(txManager, repo, discardLogger()).(*ruleUseCase)
	uc.now = func() time.Time { return time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC) }
	return uc, txManager, repo
}

func TestRuleUseCase_CreateRule(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())

	t.Run("Success", func(t *testing.T) {
		uc, _, repo := newRuleUseCase(t)
		minValue := int64(500_000)

		repo.On("Create", ctx, mock.MatchedBy(func(r *pipelineDomain.TransitionRule) bool {
			return r.TenantID == tenantID && r.Active && r.RequiresApproval && *r.MinValueCents == minValue
		})).Return(nil).Once()

		rule, err := uc.CreateRule(ctx, tenantID, actor(tenant.RoleAdmin),
			pipelineDomain.StatusContingencySigned, pipelineDomain.StatusProject,
			pipelineDomain.RuleInput{RequiresApproval: true, MinValueCents: &minValue},
		)

		require.NoError(t, err)
		assert.Equal(t, pipelineDomain.StatusProject, rule.ToStatus)
	})

	t.Run("Error_NotAdministrator", func(t *testing.T) {
		uc, _, _ := newRuleUseCase(t)

		_, err := uc.CreateRule(ctx, tenantID, actor(tenant.RoleManager),
			pipelineDomain.StatusLead, pipelineDomain.StatusLegalReview, pipelineDomain.RuleInput{})

		assert.ErrorIs(t, err, pipelineDomain.ErrNotAdministrator)
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	})

	t.Run("Error_InvalidRule", func(t *testing.T) {
		uc, _, _ := newRuleUseCase(t)

		_, err := uc.CreateRule(ctx, tenantID, actor(tenant.RoleOwner),
			pipelineDomain.StatusLead, pipelineDomain.StatusLead, pipelineDomain.RuleInput{})

		assert.ErrorIs(t, err, pipelineDomain.ErrInvalidRule)
	})

	t.Run("Error_Duplicate", func(t *testing.T) {
		uc, _, repo := newRuleUseCase(t)
		repo.On("Create", ctx, mock.Anything).Return(pipelineDomain.ErrRuleAlreadyExists).Once()

		_, err := uc.CreateRule(ctx, tenantID, actor(tenant.RoleOwner),
			pipelineDomain.StatusLead, pipelineDomain.StatusLegalReview, pipelineDomain.RuleInput{})

		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	})
}

func TestRuleUseCase_UpdateAndDeactivate(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())
	ruleID := uuid.Must(uuid.NewV7())
	existing := func() *pipelineDomain.TransitionRule {
		return &pipelineDomain.TransitionRule{
			ID: ruleID, TenantID: tenantID, Active: true,
			FromStatus: pipelineDomain.StatusLead, ToStatus: pipelineDomain.StatusLegalReview,
		}
	}

	t.Run("Update", func(t *testing.T) {
		uc, txManager, repo := newRuleUseCase(t)
		txManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
		repo.On("Get", ctx, tenantID, ruleID).Return(existing(), nil).Once()
		repo.On("Update", ctx, mock.Anything).Return(nil).Once()

		rule, err := uc.UpdateRule(ctx, tenantID, actor(tenant.RoleAdmin), ruleID, pipelineDomain.RuleInput{
			RequiredRoles:  pipelineDomain.Roles{tenant.RoleOffice},
			MinTimeInStage: 2 * time.Hour,
		})

		require.NoError(t, err)
		assert.True(t, rule.Active)
		assert.Equal(t, 2*time.Hour, rule.MinTimeInStage)
		assert.Equal(t, pipelineDomain.StatusLead, rule.FromStatus)
	})

	t.Run("Deactivate", func(t *testing.T) {
		uc, txManager, repo := newRuleUseCase(t)
		txManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
		repo.On("Get", ctx, tenantID, ruleID).Return(existing(), nil).Once()
		repo.On("Update", ctx, mock.MatchedBy(func(r *pipelineDomain.TransitionRule) bool {
			return !r.Active
		})).Return(nil).Once()

		rule, err := uc.DeactivateRule(ctx, tenantID, actor(tenant.RoleOwner), ruleID)

		require.NoError(t, err)
		assert.False(t, rule.Active)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		uc, txManager, repo := newRuleUseCase(t)
		txManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
		repo.On("Get", ctx, tenantID, ruleID).Return(nil, pipelineDomain.ErrRuleNotFound).Once()

		_, err := uc.DeactivateRule(ctx, tenantID, actor(tenant.RoleOwner), ruleID)

		assert.ErrorIs(t, err, pipelineDomain.ErrRuleNotFound)
	})
}

func TestRuleUseCase_SeedRules(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7())
	uc, txManager, repo := newRuleUseCase(t)
	rules := pipelineDomain.DefaultRules()

	txManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
	repo.On("CreateIfAbsent", ctx, mock.MatchedBy(func(r *pipelineDomain.TransitionRule) bool {
		return r.FromStatus == pipelineDomain.StatusLead && r.ToStatus == pipelineDomain.StatusLegalReview
	})).Return(false, nil).Once()
	repo.On("CreateIfAbsent", ctx, mock.MatchedBy(func(r *pipelineDomain.TransitionRule) bool {
		return r.TenantID == tenantID && r.ID != uuid.Nil
	})).Return(true, nil).Times(len(rules) - 1)

	created, err := uc.SeedRules(ctx, tenantID, rules)

	require.NoError(t, err)
	assert.Equal(t, len(rules)-1, created)
}
