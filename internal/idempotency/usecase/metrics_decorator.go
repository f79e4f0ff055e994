package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	idempotencyDomain "github.com/roofline/crmcore/internal/idempotency/domain"
	"github.com/roofline/crmcore/internal/metrics"
)

// idempotencyUseCaseWithMetrics decorates IdempotencyUseCase with metrics instrumentation.
type idempotencyUseCaseWithMetrics struct {
	next    IdempotencyUseCase
	metrics metrics.BusinessMetrics
}

// NewIdempotencyUseCaseWithMetrics wraps an IdempotencyUseCase with metrics recording.
func NewIdempotencyUseCaseWithMetrics(useCase IdempotencyUseCase, m metrics.BusinessMetrics) IdempotencyUseCase {
	return &idempotencyUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (i *idempotencyUseCaseWithMetrics) record(ctx context.Context, operation, status string, start time.Time) {
	i.metrics.RecordOperation(ctx, "idempotency", operation, status)
	i.metrics.RecordDuration(ctx, "idempotency", operation, time.Since(start), status)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Begin records the outcome of each claim.
func (i *idempotencyUseCaseWithMetrics) Begin(
	ctx context.Context,
	tenantID uuid.UUID,
	key, hash string,
) (*idempotencyDomain.BeginResult, error) {
	start := time.Now()
	result, err := i.next.Begin(ctx, tenantID, key, hash)
	status := statusOf(err)
	if err == nil {
		status = string(result.Outcome)
	}
	i.record(ctx, "begin", status, start)
	return result, err
}

// Complete records metrics for response storage.
func (i *idempotencyUseCaseWithMetrics) Complete(
	ctx context.Context,
	tenantID uuid.UUID,
	key, hash string,
	response []byte,
	contentType string,
	statusCode int,
	ttl time.Duration,
) error {
	start := time.Now()
	err := i.next.Complete(ctx, tenantID, key, hash, response, contentType, statusCode, ttl)
	i.record(ctx, "complete", statusOf(err), start)
	return err
}

// Release records metrics for released claims.
func (i *idempotencyUseCaseWithMetrics) Release(ctx context.Context, tenantID uuid.UUID, key, hash string) error {
	start := time.Now()
	err := i.next.Release(ctx, tenantID, key, hash)
	i.record(ctx, "release", statusOf(err), start)
	return err
}

// PurgeExpired records metrics for purge runs.
func (i *idempotencyUseCaseWithMetrics) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	count, err := i.next.PurgeExpired(ctx, before)
	i.record(ctx, "purge", statusOf(err), start)
	return count, err
}
