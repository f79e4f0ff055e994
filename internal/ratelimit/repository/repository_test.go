package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roofline/crmcore/internal/database"
	"github.com/roofline/crmcore/internal/ratelimit/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testKey() domain.Key {
	return domain.Key{
		TenantID: uuid.Must(uuid.NewV7()),
		UserID:   uuid.Must(uuid.NewV7()),
		Resource: "pipeline.transition",
	}
}

func TestPostgreSQLWindowStore_Increment(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 0, 30, 0, time.UTC)
	start := now.Add(-10 * time.Second)

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewPostgreSQLWindowStore(db)
		key := testKey()

		mock.ExpectQuery("INSERT INTO rate_limit_windows (.+) ON CONFLICT \\(tenant_id, user_id, resource\\) DO UPDATE SET (.+) RETURNING request_count, window_start, updated_at").
			WithArgs(key.TenantID, key.UserID, "pipeline.transition", now, now.Add(-time.Minute)).
			WillReturnRows(sqlmock.NewRows([]string{"request_count", "window_start", "updated_at"}).
				AddRow(4, start, now))

		window, err := store.Increment(context.Background(), key, time.Minute, now)

		require.NoError(t, err)
		assert.Equal(t, key, window.Key)
		assert.Equal(t, 4, window.RequestCount)
		assert.Equal(t, start, window.WindowStart)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewPostgreSQLWindowStore(db)

		mock.ExpectQuery("INSERT INTO rate_limit_windows").WillReturnError(errors.New("connection reset"))

		_, err := store.Increment(context.Background(), testKey(), time.Minute, now)

		assert.ErrorContains(t, err, "failed to increment rate limit window")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgreSQLWindowStore_DeleteStale(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgreSQLWindowStore(db)
	before := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM rate_limit_windows WHERE updated_at < \\$1").
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 7))

	count, err := store.DeleteStale(context.Background(), before)

	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLWindowStore_Increment(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 0, 30, 0, time.UTC)
	expiredBefore := now.Add(-time.Minute)

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewMySQLWindowStore(db)
		key := testKey()
		tenantID := database.BinaryUUID(key.TenantID)
		userID := database.BinaryUUID(key.UserID)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO rate_limit_windows (.+) ON DUPLICATE KEY UPDATE").
			WithArgs(tenantID, userID, "pipeline.transition", now, now, expiredBefore, expiredBefore).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectQuery("SELECT request_count, window_start, updated_at FROM rate_limit_windows WHERE tenant_id = \\? AND user_id = \\? AND resource = \\?").
			WithArgs(tenantID, userID, "pipeline.transition").
			WillReturnRows(sqlmock.NewRows([]string{"request_count", "window_start", "updated_at"}).
				AddRow(1, now, now))
		mock.ExpectCommit()

		window, err := store.Increment(context.Background(), key, time.Minute, now)

		require.NoError(t, err)
		assert.Equal(t, 1, window.RequestCount)
		assert.Equal(t, now, window.WindowStart)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		db, mock := newMockDB(t)
		store := NewMySQLWindowStore(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO rate_limit_windows").WillReturnError(errors.New("deadlock"))
		mock.ExpectRollback()

		_, err := store.Increment(context.Background(), testKey(), time.Minute, now)

		assert.ErrorContains(t, err, "deadlock")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMySQLWindowStore_DeleteStale(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewMySQLWindowStore(db)
	before := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM rate_limit_windows WHERE updated_at < \\?").
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := store.DeleteStale(context.Background(), before)

	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryWindowStore_Increment(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	store := NewMemoryWindowStore()
	key := testKey()

	first, err := store.Increment(ctx, key, time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.RequestCount)
	assert.Equal(t, now, first.WindowStart)

	second, err := store.Increment(ctx, key, time.Minute, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, second.RequestCount)
	assert.Equal(t, now, second.WindowStart)

	reset, err := store.Increment(ctx, key, time.Minute, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, reset.RequestCount)
	assert.Equal(t, now.Add(time.Minute), reset.WindowStart)
}

func TestMemoryWindowStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	store := NewMemoryWindowStore()
	key := testKey()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Increment(ctx, key, time.Minute, now)
		}()
	}
	wg.Wait()

	window, err := store.Increment(ctx, key, time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, 51, window.RequestCount)
}

func TestMemoryWindowStore_DeleteStale(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	store := NewMemoryWindowStore()
	oldKey := testKey()
	freshKey := testKey()

	_, err := store.Increment(ctx, oldKey, time.Minute, now.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = store.Increment(ctx, freshKey, time.Minute, now)
	require.NoError(t, err)

	count, err := store.DeleteStale(ctx, now.Add(-time.Hour))

	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	window, err := store.Increment(ctx, oldKey, time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, 1, window.RequestCount)
}
