package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	idempotencyMocks "github.com/roofline/crmcore/internal/idempotency/usecase/mocks"
	ratelimitMocks "github.com/roofline/crmcore/internal/ratelimit/usecase/mocks"
)

func TestRunPurgeIdempotencyKeys(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("text-output", func(t *testing.T) {
		useCase := idempotencyMocks.NewMockIdempotencyUseCase(t)
		useCase.On("PurgeExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(7), nil)

		var out bytes.Buffer
		err := RunPurgeIdempotencyKeys(ctx, useCase, logger, &out, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Successfully purged 7 idempotency key(s)")
	})

	t.Run("error", func(t *testing.T) {
		useCase := idempotencyMocks.NewMockIdempotencyUseCase(t)
		useCase.On("PurgeExpired", ctx, mock.Anything).Return(int64(0), errors.New("db down"))

		err := RunPurgeIdempotencyKeys(ctx, useCase, logger, &bytes.Buffer{}, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to purge idempotency keys")
	})
}

func TestRunPurgeRateLimits(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("json-output", func(t *testing.T) {
		useCase := ratelimitMocks.NewMockRateLimitUseCase(t)
		useCase.On("PurgeStale", ctx, mock.MatchedBy(func(before time.Time) bool {
			return time.Since(before) >= 24*time.Hour && time.Since(before) < 25*time.Hour
		})).Return(int64(3), nil)

		var out bytes.Buffer
		err := RunPurgeRateLimits(ctx, useCase, logger, &out, 24*time.Hour, "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"count": 3`)
	})

	t.Run("negative-retention", func(t *testing.T) {
		err := RunPurgeRateLimits(ctx, ratelimitMocks.NewMockRateLimitUseCase(t), logger, &bytes.Buffer{}, -time.Hour, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "retention must not be negative")
	})
}
