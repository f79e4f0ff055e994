package usecase

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/roofline/crmcore/internal/errors"
	ratelimitDomain "github.com/roofline/crmcore/internal/ratelimit/domain"
)

type rateLimitUseCase struct {
	store  WindowStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRateLimitUseCase creates a fixed-window rate limiter backed by store.
func NewRateLimitUseCase(store WindowStore, logger *slog.Logger) RateLimitUseCase {
	return &rateLimitUseCase{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (uc *rateLimitUseCase) CheckAndIncrement(
	ctx context.Context,
	key ratelimitDomain.Key,
	limit int,
	window time.Duration,
) (*ratelimitDomain.Decision, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return &ratelimitDomain.Decision{Allowed: true}, nil
	}
	if window <= 0 {
		return nil, ratelimitDomain.ErrInvalidWindow
	}

	now := uc.now().UTC()
	current, err := uc.store.Increment(ctx, key, window, now)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to increment rate limit window")
	}

	decision := ratelimitDomain.Decide(current, limit, window, now)
	if !decision.Allowed {
		uc.logger.Debug("rate limit exceeded",
			slog.String("tenant_id", key.TenantID.String()),
			slog.String("user_id", key.UserID.String()),
			slog.String("resource", key.Resource),
			slog.Int("count", decision.Count),
			slog.Duration("retry_after", decision.RetryAfter))
	}
	return decision, nil
}

func (uc *rateLimitUseCase) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	count, err := uc.store.DeleteStale(ctx, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to purge rate limit windows")
	}

	uc.logger.Info("purged rate limit windows",
		slog.Int64("count", count),
		slog.Time("before", before))
	return count, nil
}
