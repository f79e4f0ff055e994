package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/tenant"
)

func resultOrNil(args mock.Arguments) *pipelineDomain.TransitionResult {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*pipelineDomain.TransitionResult)
}

// MockPipelineUseCase is a mock implementation of PipelineUseCase.
type MockPipelineUseCase struct {
	mock.Mock
}

// NewMockPipelineUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockPipelineUseCase(t testingT) *MockPipelineUseCase {
	m := &MockPipelineUseCase{}
	register(&m.Mock, t)
	return m
}

func (m *MockPipelineUseCase) CreateEntry(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	input pipelineDomain.CreateEntryInput,
) (*pipelineDomain.Entry, error) {
	args := m.Called(ctx, tenantID, actor, input)
	return entryOrNil(args), args.Error(1)
}

func (m *MockPipelineUseCase) GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.Entry, error) {
	args := m.Called(ctx, tenantID, id)
	return entryOrNil(args), args.Error(1)
}

func (m *MockPipelineUseCase) ListEntries(
	ctx context.Context,
	tenantID uuid.UUID,
	filter pipelineDomain.ListEntriesFilter,
) ([]*pipelineDomain.Entry, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pipelineDomain.Entry), args.Error(1)
}

func (m *MockPipelineUseCase) UpdateEntry(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	input pipelineDomain.UpdateEntryInput,
) (*pipelineDomain.Entry, error) {
	args := m.Called(ctx, tenantID, actor, id, input)
	return entryOrNil(args), args.Error(1)
}

func (m *MockPipelineUseCase) Assign(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	assignee *uuid.UUID,
) (*pipelineDomain.Entry, error) {
	args := m.Called(ctx, tenantID, actor, id, assignee)
	return entryOrNil(args), args.Error(1)
}

func (m *MockPipelineUseCase) Disqualify(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	reason string,
) (*pipelineDomain.Entry, error) {
	args := m.Called(ctx, tenantID, actor, id, reason)
	return entryOrNil(args), args.Error(1)
}

func (m *MockPipelineUseCase) AttemptTransition(
	ctx context.Context,
	tenantID, entryID uuid.UUID,
	req pipelineDomain.TransitionRequest,
) (*pipelineDomain.TransitionResult, error) {
	args := m.Called(ctx, tenantID, entryID, req)
	return resultOrNil(args), args.Error(1)
}

func (m *MockPipelineUseCase) ListHistory(
	ctx context.Context,
	tenantID, entryID uuid.UUID,
	offset, limit int,
) ([]*pipelineDomain.TransitionHistory, error) {
	args := m.Called(ctx, tenantID, entryID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pipelineDomain.TransitionHistory), args.Error(1)
}

func (m *MockPipelineUseCase) GetApproval(
	ctx context.Context,
	tenantID, id uuid.UUID,
) (*pipelineDomain.ApprovalRequest, error) {
	args := m.Called(ctx, tenantID, id)
	return approvalOrNil(args), args.Error(1)
}

func (m *MockPipelineUseCase) ListApprovals(
	ctx context.Context,
	tenantID uuid.UUID,
	filter pipelineDomain.ListApprovalsFilter,
) ([]*pipelineDomain.ApprovalRequest, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pipelineDomain.ApprovalRequest), args.Error(1)
}

func (m *MockPipelineUseCase) Approve(
	ctx context.Context,
	tenantID uuid.UUID,
	approver tenant.Actor,
	approvalID uuid.UUID,
	note *string,
) (*pipelineDomain.TransitionResult, error) {
	args := m.Called(ctx, tenantID, approver, approvalID, note)
	return resultOrNil(args), args.Error(1)
}

func (m *MockPipelineUseCase) RejectApproval(
	ctx context.Context,
	tenantID uuid.UUID,
	approver tenant.Actor,
	approvalID uuid.UUID,
	note *string,
) (*pipelineDomain.ApprovalRequest, error) {
	args := m.Called(ctx, tenantID, approver, approvalID, note)
	return approvalOrNil(args), args.Error(1)
}

// MockRuleUseCase is a mock implementation of RuleUseCase.
type MockRuleUseCase struct {
	mock.Mock
}

// NewMockRuleUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockRuleUseCase(t testingT) *MockRuleUseCase {
	m := &MockRuleUseCase{}
	register(&m.Mock, t)
	return m
}

func (m *MockRuleUseCase) CreateRule(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	from, to pipelineDomain.Status,
	input pipelineDomain.RuleInput,
) (*pipelineDomain.TransitionRule, error) {
	args := m.Called(ctx, tenantID, actor, from, to, input)
	return ruleOrNil(args), args.Error(1)
}

func (m *MockRuleUseCase) UpdateRule(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	input pipelineDomain.RuleInput,
) (*pipelineDomain.TransitionRule, error) {
	args := m.Called(ctx, tenantID, actor, id, input)
	return ruleOrNil(args), args.Error(1)
}

func (m *MockRuleUseCase) DeactivateRule(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
) (*pipelineDomain.TransitionRule, error) {
	args := m.Called(ctx, tenantID, actor, id)
	return ruleOrNil(args), args.Error(1)
}

func (m *MockRuleUseCase) ListRules(
	ctx context.Context,
	tenantID uuid.UUID,
	activeOnly bool,
) ([]*pipelineDomain.TransitionRule, error) {
	args := m.Called(ctx, tenantID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*pipelineDomain.TransitionRule), args.Error(1)
}

func (m *MockRuleUseCase) SeedRules(
	ctx context.Context,
	tenantID uuid.UUID,
	rules []pipelineDomain.TransitionRule,
) (int, error) {
	args := m.Called(ctx, tenantID, rules)
	return args.Int(0), args.Error(1)
}
