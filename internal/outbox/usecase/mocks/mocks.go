// Package mocks provides mock implementations of the outbox use case interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockOutboxEventRepository is a mock implementation of OutboxEventRepository.
type MockOutboxEventRepository struct {
	mock.Mock
}

// NewMockOutboxEventRepository creates a mock whose expectations are asserted on cleanup.
func NewMockOutboxEventRepository(t testingT) *MockOutboxEventRepository {
	m := &MockOutboxEventRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOutboxEventRepository) Insert(ctx context.Context, event *outboxDomain.Event) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *MockOutboxEventRepository) GetByIdempotencyKey(
	ctx context.Context,
	tenantID uuid.UUID,
	key string,
) (*outboxDomain.Event, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.Event), args.Error(1)
}

func (m *MockOutboxEventRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*outboxDomain.Event, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.Event), args.Error(1)
}

func (m *MockOutboxEventRepository) List(
	ctx context.Context,
	tenantID uuid.UUID,
	filter outboxDomain.ListFilter,
) ([]*outboxDomain.Event, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outboxDomain.Event), args.Error(1)
}

func (m *MockOutboxEventRepository) Claim(
	ctx context.Context,
	params outboxDomain.ClaimParams,
) ([]*outboxDomain.Event, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outboxDomain.Event), args.Error(1)
}

func (m *MockOutboxEventRepository) MarkCompleted(ctx context.Context, id uuid.UUID, token string, at time.Time) error {
	args := m.Called(ctx, id, token, at)
	return args.Error(0)
}

func (m *MockOutboxEventRepository) MarkRetry(
	ctx context.Context,
	id uuid.UUID,
	token string,
	retryCount int,
	nextRetryAt time.Time,
	lastError string,
	at time.Time,
) error {
	args := m.Called(ctx, id, token, retryCount, nextRetryAt, lastError, at)
	return args.Error(0)
}

func (m *MockOutboxEventRepository) MarkFailed(
	ctx context.Context,
	id uuid.UUID,
	token string,
	retryCount int,
	lastError string,
	at time.Time,
) error {
	args := m.Called(ctx, id, token, retryCount, lastError, at)
	return args.Error(0)
}

func (m *MockOutboxEventRepository) Cancel(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, tenantID, id, at)
	return args.Error(0)
}

func (m *MockOutboxEventRepository) ArchiveProcessed(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	args := m.Called(ctx, before, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

// MockSenderResolver is a mock implementation of SenderResolver.
type MockSenderResolver struct {
	mock.Mock
}

// NewMockSenderResolver creates a mock whose expectations are asserted on cleanup.
func NewMockSenderResolver(t testingT) *MockSenderResolver {
	m := &MockSenderResolver{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSenderResolver) Resolve(eventType string) (outboxDomain.Sender, error) {
	args := m.Called(eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(outboxDomain.Sender), args.Error(1)
}

// MockSender is a mock implementation of outbox domain Sender.
type MockSender struct {
	mock.Mock
}

// NewMockSender creates a mock whose expectations are asserted on cleanup.
func NewMockSender(t testingT) *MockSender {
	m := &MockSender{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSender) Send(ctx context.Context, msg outboxDomain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockLedger is a mock implementation of Ledger.
type MockLedger struct {
	mock.Mock
}

// NewMockLedger creates a mock whose expectations are asserted on cleanup.
func NewMockLedger(t testingT) *MockLedger {
	m := &MockLedger{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockLedger) Append(
	ctx context.Context,
	tenantID uuid.UUID,
	params outboxDomain.AppendParams,
) (*outboxDomain.Event, error) {
	args := m.Called(ctx, tenantID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.Event), args.Error(1)
}

func (m *MockLedger) AppendPayload(
	ctx context.Context,
	tenantID uuid.UUID,
	aggregateType, aggregateID string,
	payload outboxDomain.Payload,
	idempotencyKey *string,
) (*outboxDomain.Event, error) {
	args := m.Called(ctx, tenantID, aggregateType, aggregateID, payload, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.Event), args.Error(1)
}

// MockOutboxUseCase is a mock implementation of OutboxUseCase.
type MockOutboxUseCase struct {
	mock.Mock
}

// NewMockOutboxUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockOutboxUseCase(t testingT) *MockOutboxUseCase {
	m := &MockOutboxUseCase{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOutboxUseCase) Get(ctx context.Context, tenantID, id uuid.UUID) (*outboxDomain.Event, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.Event), args.Error(1)
}

func (m *MockOutboxUseCase) List(
	ctx context.Context,
	tenantID uuid.UUID,
	filter outboxDomain.ListFilter,
) ([]*outboxDomain.Event, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outboxDomain.Event), args.Error(1)
}

func (m *MockOutboxUseCase) Cancel(ctx context.Context, tenantID, id uuid.UUID) (*outboxDomain.Event, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.Event), args.Error(1)
}

func (m *MockOutboxUseCase) ArchiveProcessed(
	ctx context.Context,
	olderThan time.Duration,
	dryRun bool,
) (int64, error) {
	args := m.Called(ctx, olderThan, dryRun)
	return args.Get(0).(int64), args.Error(1)
}
