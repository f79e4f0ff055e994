// Package mocks provides mock implementations of the pipeline use case interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t testingT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

func entryOrNil(args mock.Arguments) *pipelineDomain.Entry {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*pipelineDomain.Entry)
}

func ruleOrNil(args mock.Arguments) *pipelineDomain.TransitionRule {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*pipelineDomain.TransitionRule)
}

func approvalOrNil(args mock.Arguments) *pipelineDomain.ApprovalRequest {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*pipelineDomain.ApprovalRequest)
}

// MockEntryRepository is a mock implementation of EntryRepository.
type MockEntryRepository struct {
	mock.Mock
}

// NewMockEntryRepository creates a mock whose expectations are asserted on cleanup.
func NewMockEntryRepository(t testingT) *MockEntryRepository {
	m := &MockEntryRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockEntryRepository) Create(ctx context.Context, entry *pipelineDomain.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockEntryRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.Entry, error) {
	args := m.Called(ctx, tenantID, id)
	return entryOrNil(args), args.Error(1)
}

func (m *MockEntryRepository) GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.Entry, error) {
	args := m.Called(ctx, tenantID, id)
	return entryOrNil(args), args.Error(1)
}

func (m *MockEntryRepository) List(
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

func (m *MockEntryRepository) Update(ctx context.Context, entry *pipelineDomain.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

// MockRuleRepository is a mock implementation of RuleRepository.
type MockRuleRepository struct {
	mock.Mock
}

// NewMockRuleRepository creates a mock whose expectations are asserted on cleanup.
func NewMockRuleRepository(t testingT) *MockRuleRepository {
	m := &MockRuleRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockRuleRepository) Create(ctx context.Context, rule *pipelineDomain.TransitionRule) error {
	return m.Called(ctx, rule).Error(0)
}

func (m *MockRuleRepository) CreateIfAbsent(ctx context.Context, rule *pipelineDomain.TransitionRule) (bool, error) {
	args := m.Called(ctx, rule)
	return args.Bool(0), args.Error(1)
}

func (m *MockRuleRepository) Update(ctx context.Context, rule *pipelineDomain.TransitionRule) error {
	return m.Called(ctx, rule).Error(0)
}

func (m *MockRuleRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.TransitionRule, error) {
	args := m.Called(ctx, tenantID, id)
	return ruleOrNil(args), args.Error(1)
}

func (m *MockRuleRepository) GetActive(
	ctx context.Context,
	tenantID uuid.UUID,
	from, to pipelineDomain.Status,
) (*pipelineDomain.TransitionRule, error) {
	args := m.Called(ctx, tenantID, from, to)
	return ruleOrNil(args), args.Error(1)
}

func (m *MockRuleRepository) List(
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

// MockHistoryRepository is a mock implementation of HistoryRepository.
type MockHistoryRepository struct {
	mock.Mock
}

// NewMockHistoryRepository creates a mock whose expectations are asserted on cleanup.
func NewMockHistoryRepository(t testingT) *MockHistoryRepository {
	m := &MockHistoryRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockHistoryRepository) Create(ctx context.Context, history *pipelineDomain.TransitionHistory) error {
	return m.Called(ctx, history).Error(0)
}

func (m *MockHistoryRepository) ListByEntry(
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

// MockApprovalRepository is a mock implementation of ApprovalRepository.
type MockApprovalRepository struct {
	mock.Mock
}

// NewMockApprovalRepository creates a mock whose expectations are asserted on cleanup.
func NewMockApprovalRepository(t testingT) *MockApprovalRepository {
	m := &MockApprovalRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockApprovalRepository) Create(ctx context.Context, approval *pipelineDomain.ApprovalRequest) error {
	return m.Called(ctx, approval).Error(0)
}

func (m *MockApprovalRepository) Get(
	ctx context.Context,
	tenantID, id uuid.UUID,
) (*pipelineDomain.ApprovalRequest, error) {
	args := m.Called(ctx, tenantID, id)
	return approvalOrNil(args), args.Error(1)
}

func (m *MockApprovalRepository) GetForUpdate(
	ctx context.Context,
	tenantID, id uuid.UUID,
) (*pipelineDomain.ApprovalRequest, error) {
	args := m.Called(ctx, tenantID, id)
	return approvalOrNil(args), args.Error(1)
}

func (m *MockApprovalRepository) GetPendingByEntry(
	ctx context.Context,
	tenantID, entryID uuid.UUID,
) (*pipelineDomain.ApprovalRequest, error) {
	args := m.Called(ctx, tenantID, entryID)
	return approvalOrNil(args), args.Error(1)
}

func (m *MockApprovalRepository) List(
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

func (m *MockApprovalRepository) Update(ctx context.Context, approval *pipelineDomain.ApprovalRequest) error {
	return m.Called(ctx, approval).Error(0)
}

func (m *MockApprovalRepository) SupersedePending(
	ctx context.Context,
	tenantID, entryID, exceptID uuid.UUID,
	at time.Time,
) (int64, error) {
	args := m.Called(ctx, tenantID, entryID, exceptID, at)
	return args.Get(0).(int64), args.Error(1)
}
