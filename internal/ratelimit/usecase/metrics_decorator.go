package usecase

import (
	"context"
	"time"

	"github.com/roofline/crmcore/internal/metrics"
	ratelimitDomain "github.com/roofline/crmcore/internal/ratelimit/domain"
)

// rateLimitUseCaseWithMetrics decorates RateLimitUseCase with metrics instrumentation.
type rateLimitUseCaseWithMetrics struct {
	next    RateLimitUseCase
	metrics metrics.BusinessMetrics
}

// NewRateLimitUseCaseWithMetrics wraps a RateLimitUseCase with metrics recording.
func NewRateLimitUseCaseWithMetrics(useCase RateLimitUseCase, m metrics.BusinessMetrics) RateLimitUseCase {
	return &rateLimitUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// CheckAndIncrement records allowed and denied decisions separately.
func (r *rateLimitUseCaseWithMetrics) CheckAndIncrement(
	ctx context.Context,
	key ratelimitDomain.Key,
	limit int,
	window time.Duration,
) (*ratelimitDomain.Decision, error) {
	start := time.Now()
	decision, err := r.next.CheckAndIncrement(ctx, key, limit, window)

	status := "error"
	switch {
	case err != nil:
	case decision.Allowed:
		status = "allowed"
	default:
		status = "denied"
	}

	r.metrics.RecordOperation(ctx, "ratelimit", "check", status)
	r.metrics.RecordDuration(ctx, "ratelimit", "check", time.Since(start), status)
	return decision, err
}

// PurgeStale records metrics for purge runs.
func (r *rateLimitUseCaseWithMetrics) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	count, err := r.next.PurgeStale(ctx, before)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "ratelimit", "purge", status)
	r.metrics.RecordDuration(ctx, "ratelimit", "purge", time.Since(start), status)
	return count, err
}
