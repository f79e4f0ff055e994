package http

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/roofline/crmcore/internal/httputil"
	ratelimitDomain "github.com/roofline/crmcore/internal/ratelimit/domain"
	"github.com/roofline/crmcore/internal/tenant"
)

const (
	throttleCleanupInterval = 5 * time.Minute
	throttleIdleTimeout     = time.Hour
)

// throttleStore holds per-tenant token buckets.
type throttleStore struct {
	limiters sync.Map // map[uuid.UUID]*throttleEntry
	rps      float64
	burst    int
}

type throttleEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.Mutex
}

// TenantThrottleMiddleware applies a process-local token bucket to each tenant,
// independently of the fixed windows kept per user.
//
// MUST be used after tenant.Middleware. Idle buckets are dropped by a goroutine
// that stops when ctx is done.
func TenantThrottleMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := &throttleStore{
		rps:   rps,
		burst: burst,
	}

	go store.cleanupStale(ctx, throttleCleanupInterval, throttleIdleTimeout)

	return func(c *gin.Context) {
		tc, ok := tenant.MustFromGin(c, logger)
		if !ok {
			return
		}

		limiter := store.getLimiter(tc.TenantID, time.Now())

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()

			logger.Debug("tenant throttled",
				slog.String("tenant_id", tc.TenantID.String()),
				slog.Duration("retry_after", delay))

			httputil.SetRetryAfter(c, delay)
			httputil.HandleErrorGin(c, ratelimitDomain.ErrLimitExceeded, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

func (s *throttleStore) getLimiter(tenantID uuid.UUID, now time.Time) *rate.Limiter {
	if val, ok := s.limiters.Load(tenantID); ok {
		entry := val.(*throttleEntry)
		entry.mu.Lock()
		entry.lastAccess = now
		entry.mu.Unlock()
		return entry.limiter
	}

	entry := &throttleEntry{
		limiter:    rate.NewLimiter(rate.Limit(s.rps), s.burst),
		lastAccess: now,
	}
	val, _ := s.limiters.LoadOrStore(tenantID, entry)
	return val.(*throttleEntry).limiter
}

func (s *throttleStore) cleanupStale(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.evictIdle(now.Add(-idle))
		}
	}
}

func (s *throttleStore) evictIdle(threshold time.Time) {
	s.limiters.Range(func(key, value any) bool {
		entry := value.(*throttleEntry)
		entry.mu.Lock()
		idle := entry.lastAccess.Before(threshold)
		entry.mu.Unlock()

		if idle {
			s.limiters.Delete(key)
		}
		return true
	})
}
