// Package mocks provides mock implementations of the idempotency use case interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	idempotencyDomain "github.com/roofline/crmcore/internal/idempotency/domain"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockRecordRepository is a mock implementation of RecordRepository.
type MockRecordRepository struct {
	mock.Mock
}

// NewMockRecordRepository creates a mock whose expectations are asserted on cleanup.
func NewMockRecordRepository(t testingT) *MockRecordRepository {
	m := &MockRecordRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRecordRepository) CreateIfAbsent(ctx context.Context, record *idempotencyDomain.Record) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecordRepository) GetForUpdate(
	ctx context.Context,
	tenantID uuid.UUID,
	key string,
) (*idempotencyDomain.Record, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idempotencyDomain.Record), args.Error(1)
}

func (m *MockRecordRepository) Update(ctx context.Context, record *idempotencyDomain.Record) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockRecordRepository) DeleteInProgress(
	ctx context.Context,
	tenantID uuid.UUID,
	key, hash string,
) (bool, error) {
	args := m.Called(ctx, tenantID, key, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecordRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// MockIdempotencyUseCase is a mock implementation of IdempotencyUseCase.
type MockIdempotencyUseCase struct {
	mock.Mock
}

// NewMockIdempotencyUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockIdempotencyUseCase(t testingT) *MockIdempotencyUseCase {
	m := &MockIdempotencyUseCase{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockIdempotencyUseCase) Begin(
	ctx context.Context,
	tenantID uuid.UUID,
	key, hash string,
) (*idempotencyDomain.BeginResult, error) {
	args := m.Called(ctx, tenantID, key, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idempotencyDomain.BeginResult), args.Error(1)
}

func (m *MockIdempotencyUseCase) Complete(
	ctx context.Context,
	tenantID uuid.UUID,
	key, hash string,
	response []byte,
	contentType string,
	statusCode int,
	ttl time.Duration,
) error {
	return m.Called(ctx, tenantID, key, hash, response, contentType, statusCode, ttl).Error(0)
}

func (m *MockIdempotencyUseCase) Release(ctx context.Context, tenantID uuid.UUID, key, hash string) error {
	return m.Called(ctx, tenantID, key, hash).Error(0)
}

func (m *MockIdempotencyUseCase) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}
