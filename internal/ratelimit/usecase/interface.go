// Package usecase implements fixed-window rate limiting per tenant, user and resource.
package usecase

import (
	"context"
	"time"

	ratelimitDomain "github.com/roofline/crmcore/internal/ratelimit/domain"
)

// WindowStore persists fixed-window counters.
type WindowStore interface {
	// Increment adds one to the counter of key and returns the updated window. When
	// the stored window is older than size it restarts at now with a count of one.
	// Implementations must make the read-modify-write atomic.
	Increment(
		ctx context.Context,
		key ratelimitDomain.Key,
		size time.Duration,
		now time.Time,
	) (*ratelimitDomain.Window, error)
	// DeleteStale removes windows last touched before the given time.
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// RateLimitUseCase defines rate limiting operations.
type RateLimitUseCase interface {
	// CheckAndIncrement counts one call for key and reports whether it fits in limit.
	// A non-positive limit disables the check.
	CheckAndIncrement(
		ctx context.Context,
		key ratelimitDomain.Key,
		limit int,
		window time.Duration,
	) (*ratelimitDomain.Decision, error)
	// PurgeStale deletes windows untouched since before.
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}
