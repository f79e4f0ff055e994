// Package janitor periodically purges request-layer state that outlived its TTL:
// idempotency records and rate limit windows.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// IdempotencyPurger deletes idempotency records that no longer bind their key.
type IdempotencyPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// RateLimitPurger deletes rate limit windows untouched since before.
type RateLimitPurger interface {
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

// Config holds janitor configuration.
type Config struct {
	Interval           time.Duration
	RateLimitRetention time.Duration
}

// Janitor runs both purges on a fixed interval.
type Janitor struct {
	config      Config
	idempotency IdempotencyPurger
	rateLimits  RateLimitPurger
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Janitor.
func New(config Config, idempotency IdempotencyPurger, rateLimits RateLimitPurger, logger *slog.Logger) *Janitor {
	return &Janitor{
		config:      config,
		idempotency: idempotency,
		rateLimits:  rateLimits,
		logger:      logger,
		now:         time.Now,
	}
}

// Start sweeps once immediately and then on every tick until ctx is canceled.
func (j *Janitor) Start(ctx context.Context) error {
	j.logger.Info("starting janitor",
		slog.Duration("interval", j.config.Interval),
		slog.Duration("rate_limit_retention", j.config.RateLimitRetention))

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		if err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error("janitor sweep failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			j.logger.Info("stopping janitor")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep. A failing purge does not prevent the other.
func (j *Janitor) RunOnce(ctx context.Context) error {
	now := j.now().UTC()

	_, idemErr := j.idempotency.PurgeExpired(ctx, now)
	_, rlErr := j.rateLimits.PurgeStale(ctx, now.Add(-j.config.RateLimitRetention))

	return errors.Join(idemErr, rlErr)
}
