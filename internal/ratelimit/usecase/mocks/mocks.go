// Package mocks provides mock implementations of the rate limit use case interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	ratelimitDomain "github.com/roofline/crmcore/internal/ratelimit/domain"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockWindowStore is a mock implementation of WindowStore.
type MockWindowStore struct {
	mock.Mock
}

// NewMockWindowStore creates a mock whose expectations are asserted on cleanup.
func NewMockWindowStore(t testingT) *MockWindowStore {
	m := &MockWindowStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockWindowStore) Increment(
	ctx context.Context,
	key ratelimitDomain.Key,
	size time.Duration,
	now time.Time,
) (*ratelimitDomain.Window, error) {
	args := m.Called(ctx, key, size, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ratelimitDomain.Window), args.Error(1)
}

func (m *MockWindowStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// MockRateLimitUseCase is a mock implementation of RateLimitUseCase.
type MockRateLimitUseCase struct {
	mock.Mock
}

// NewMockRateLimitUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockRateLimitUseCase(t testingT) *MockRateLimitUseCase {
	m := &MockRateLimitUseCase{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRateLimitUseCase) CheckAndIncrement(
	ctx context.Context,
	key ratelimitDomain.Key,
	limit int,
	window time.Duration,
) (*ratelimitDomain.Decision, error) {
	args := m.Called(ctx, key, limit, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ratelimitDomain.Decision), args.Error(1)
}

func (m *MockRateLimitUseCase) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}
