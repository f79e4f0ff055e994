package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	idempotencyUseCase "github.com/roofline/crmcore/internal/idempotency/usecase"
	ratelimitUseCase "github.com/roofline/crmcore/internal/ratelimit/usecase"
)

// RunPurgeIdempotencyKeys deletes idempotency records that expired or whose lock
// lapsed before now.
func RunPurgeIdempotencyKeys(
	ctx context.Context,
	useCase idempotencyUseCase.IdempotencyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	before := time.Now().UTC()
	count, err := useCase.PurgeExpired(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to purge idempotency keys: %w", err)
	}

	logger.Info("idempotency keys purged", slog.Int64("count", count))
	return writePurgeResult(writer, format, "idempotency key(s)", count, before)
}

// RunPurgeRateLimits deletes rate limit windows not touched within retention.
func RunPurgeRateLimits(
	ctx context.Context,
	useCase ratelimitUseCase.RateLimitUseCase,
	logger *slog.Logger,
	writer io.Writer,
	retention time.Duration,
	format string,
) error {
	if retention < 0 {
		return fmt.Errorf("retention must not be negative, got: %s", retention)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	before := time.Now().UTC().Add(-retention)
	count, err := useCase.PurgeStale(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to purge rate limit windows: %w", err)
	}

	logger.Info("rate limit windows purged", slog.Int64("count", count))
	return writePurgeResult(writer, format, "rate limit window(s)", count, before)
}

func writePurgeResult(writer io.Writer, format, noun string, count int64, before time.Time) error {
	if format == "json" {
		return writeJSON(writer, map[string]any{
			"count":  count,
			"before": before.Format(time.RFC3339),
		})
	}
	_, err := fmt.Fprintf(writer, "Successfully purged %d %s older than %s\n", count, noun, before.Format(time.RFC3339))
	return err
}
