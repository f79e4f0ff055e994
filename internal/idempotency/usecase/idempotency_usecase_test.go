package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	databaseMocks "github.com/roofline/crmcore/internal/database/mocks"
	idempotencyDomain "github.com/roofline/crmcore/internal/idempotency/domain"
	"github.com/roofline/crmcore/internal/idempotency/usecase/mocks"
)

const (
	testKey  = "retry-7f3a"
	hashA    = "aaaa"
	hashB    = "bbbb"
	lockTime = 30 * time.Second
	ttl      = 24 * time.Hour
)

type idempotencyFixture struct {
	uc       *idempotencyUseCase
	tx       *databaseMocks.MockTxManager
	repo     *mocks.MockRecordRepository
	now      time.Time
	tenantID uuid.UUID
}

func newIdempotencyFixture(t *testing.T) *idempotencyFixture {
	t.Helper()

	f := &idempotencyFixture{
		tx:       databaseMocks.NewMockTxManager(t),
		repo:     mocks.NewMockRecordRepository(t),
		now:      time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
		tenantID: uuid.Must(uuid.NewV7()),
	}
	f.uc = NewIdempotencyUseCase(
		f.tx, f.repo, lockTime, ttl, slog.New(slog.NewTextHandler(io.Discard, nil)),
	).(*idempotencyUseCase)
	f.uc.now = func() time.Time { return f.now }
	return f
}

func (f *idempotencyFixture) expectTx() {
	f.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
}

func (f *idempotencyFixture) completed(hash string, expiresAt time.Time) *idempotencyDomain.Record {
	return &idempotencyDomain.Record{
		TenantID:     f.tenantID,
		Key:          testKey,
		RequestHash:  hash,
		Status:       idempotencyDomain.StatusCompleted,
		ResponseBody: []byte(`{"outcome":"applied"}`),
		ContentType:  "application/json; charset=utf-8",
		StatusCode:   200,
		ExpiresAt:    &expiresAt,
	}
}

func TestIdempotencyUseCase_Begin(t *testing.T) {
	ctx := context.Background()

	t.Run("Fresh_NewKey", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.expectTx()
		f.repo.On("CreateIfAbsent", mock.Anything, mock.MatchedBy(func(r *idempotencyDomain.Record) bool {
			return r.Status == idempotencyDomain.StatusInProgress && r.RequestHash == hashA &&
				r.LockedUntil.Equal(f.now.Add(lockTime))
		})).Return(true, nil).Once()

		result, err := f.uc.Begin(ctx, f.tenantID, testKey, hashA)

		require.NoError(t, err)
		assert.Equal(t, idempotencyDomain.OutcomeFresh, result.Outcome)
	})

	t.Run("Replayed_SameHash", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		stored := f.completed(hashA, f.now.Add(time.Hour))
		f.expectTx()
		f.repo.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, nil).Once()
		f.repo.On("GetForUpdate", mock.Anything, f.tenantID, testKey).Return(stored, nil).Once()

		result, err := f.uc.Begin(ctx, f.tenantID, testKey, hashA)

		require.NoError(t, err)
		assert.Equal(t, idempotencyDomain.OutcomeReplayed, result.Outcome)
		assert.Same(t, stored, result.Record)
	})

	t.Run("Conflict_DifferentHash", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.expectTx()
		f.repo.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, nil).Once()
		f.repo.On("GetForUpdate", mock.Anything, f.tenantID, testKey).
			Return(f.completed(hashA, f.now.Add(time.Hour)), nil).Once()

		result, err := f.uc.Begin(ctx, f.tenantID, testKey, hashB)

		require.NoError(t, err)
		assert.Equal(t, idempotencyDomain.OutcomeConflict, result.Outcome)
		assert.Nil(t, result.Record)
	})

	t.Run("InFlight_SameHash", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.expectTx()
		f.repo.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, nil).Once()
		f.repo.On("GetForUpdate", mock.Anything, f.tenantID, testKey).Return(&idempotencyDomain.Record{
			TenantID: f.tenantID, Key: testKey, RequestHash: hashA,
			Status: idempotencyDomain.StatusInProgress, LockedUntil: f.now.Add(12 * time.Second),
		}, nil).Once()

		result, err := f.uc.Begin(ctx, f.tenantID, testKey, hashA)

		require.NoError(t, err)
		assert.Equal(t, idempotencyDomain.OutcomeInFlight, result.Outcome)
		assert.Equal(t, 12*time.Second, result.RetryAfter)
	})

	t.Run("Fresh_AbandonedClaimTakenOver", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.expectTx()
		f.repo.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, nil).Once()
		f.repo.On("GetForUpdate", mock.Anything, f.tenantID, testKey).Return(&idempotencyDomain.Record{
			TenantID: f.tenantID, Key: testKey, RequestHash: hashB,
			Status: idempotencyDomain.StatusInProgress, LockedUntil: f.now.Add(-time.Second),
		}, nil).Once()
		f.repo.On("Update", mock.Anything, mock.MatchedBy(func(r *idempotencyDomain.Record) bool {
			return r.RequestHash == hashA && r.Status == idempotencyDomain.StatusInProgress && r.ExpiresAt == nil
		})).Return(nil).Once()

		result, err := f.uc.Begin(ctx, f.tenantID, testKey, hashA)

		require.NoError(t, err)
		assert.Equal(t, idempotencyDomain.OutcomeFresh, result.Outcome)
	})

	t.Run("Fresh_ExpiredResponseReplaced", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.expectTx()
		f.repo.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, nil).Once()
		f.repo.On("GetForUpdate", mock.Anything, f.tenantID, testKey).
			Return(f.completed(hashB, f.now.Add(-time.Minute)), nil).Once()
		f.repo.On("Update", mock.Anything, mock.Anything).Return(nil).Once()

		result, err := f.uc.Begin(ctx, f.tenantID, testKey, hashA)

		require.NoError(t, err)
		assert.Equal(t, idempotencyDomain.OutcomeFresh, result.Outcome)
	})

	t.Run("Error_InvalidKey", func(t *testing.T) {
		f := newIdempotencyFixture(t)

		_, err := f.uc.Begin(ctx, f.tenantID, "", hashA)

		assert.ErrorIs(t, err, idempotencyDomain.ErrInvalidKey)
	})

	t.Run("Error_Repository", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		dbErr := errors.New("connection reset")
		f.expectTx()
		f.repo.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, dbErr).Once()

		_, err := f.uc.Begin(ctx, f.tenantID, testKey, hashA)

		assert.ErrorIs(t, err, dbErr)
	})
}

func TestIdempotencyUseCase_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_DefaultTTL", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.expectTx()
		f.repo.On("GetForUpdate", mock.Anything, f.tenantID, testKey).Return(&idempotencyDomain.Record{
			TenantID: f.tenantID, Key: testKey, RequestHash: hashA,
			Status: idempotencyDomain.StatusInProgress, LockedUntil: f.now.Add(lockTime),
		}, nil).Once()
		f.repo.On("Update", mock.Anything, mock.MatchedBy(func(r *idempotencyDomain.Record) bool {
			return r.Status == idempotencyDomain.StatusCompleted && r.StatusCode == 201 &&
				string(r.ResponseBody) == `{"id":"1"}` && r.ExpiresAt.Equal(f.now.Add(ttl))
		})).Return(nil).Once()

		err := f.uc.Complete(ctx, f.tenantID, testKey, hashA, []byte(`{"id":"1"}`), "application/json", 201, 0)

		assert.NoError(t, err)
	})

	t.Run("Error_AlreadyCompleted", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.expectTx()
		f.repo.On("GetForUpdate", mock.Anything, f.tenantID, testKey).
			Return(f.completed(hashA, f.now.Add(time.Hour)), nil).Once()

		err := f.uc.Complete(ctx, f.tenantID, testKey, hashA, nil, "", 200, time.Hour)

		assert.ErrorIs(t, err, idempotencyDomain.ErrNotOwner)
	})

	t.Run("Error_TakenOverByAnotherRequest", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.expectTx()
		f.repo.On("GetForUpdate", mock.Anything, f.tenantID, testKey).Return(&idempotencyDomain.Record{
			TenantID: f.tenantID, Key: testKey, RequestHash: hashB, Status: idempotencyDomain.StatusInProgress,
		}, nil).Once()

		err := f.uc.Complete(ctx, f.tenantID, testKey, hashA, nil, "", 200, time.Hour)

		assert.ErrorIs(t, err, idempotencyDomain.ErrNotOwner)
	})
}

func TestIdempotencyUseCase_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.repo.On("DeleteInProgress", ctx, f.tenantID, testKey, hashA).Return(true, nil).Once()

		assert.NoError(t, f.uc.Release(ctx, f.tenantID, testKey, hashA))
	})

	t.Run("Error_NotOwner", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.repo.On("DeleteInProgress", ctx, f.tenantID, testKey, hashA).Return(false, nil).Once()

		assert.ErrorIs(t, f.uc.Release(ctx, f.tenantID, testKey, hashA), idempotencyDomain.ErrNotOwner)
	})
}

func TestIdempotencyUseCase_PurgeExpired(t *testing.T) {
	f := newIdempotencyFixture(t)
	ctx := context.Background()
	f.repo.On("DeleteExpired", ctx, f.now).Return(int64(4), nil).Once()

	count, err := f.uc.PurgeExpired(ctx, f.now)

	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
