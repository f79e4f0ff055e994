// Package http provides the rate limiting middlewares of the API.
package http

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roofline/crmcore/internal/httputil"
	ratelimitDomain "github.com/roofline/crmcore/internal/ratelimit/domain"
	"github.com/roofline/crmcore/internal/ratelimit/usecase"
	"github.com/roofline/crmcore/internal/tenant"
)

// Rate limit response headers.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
)

// Rule configures the fixed window guarding one resource.
type Rule struct {
	Resource string
	Limit    int
	Window   time.Duration
}

// Middleware counts each request against the (tenant, actor, resource) window
// of rule and answers 429 with Retry-After once the window is full.
//
// MUST be used after tenant.Middleware. Store failures let the request through.
func Middleware(useCase usecase.RateLimitUseCase, rule Rule, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := tenant.MustFromGin(c, logger)
		if !ok {
			return
		}

		key := ratelimitDomain.Key{
			TenantID: tc.TenantID,
			UserID:   tc.Actor.UserID,
			Resource: rule.Resource,
		}

		decision, err := useCase.CheckAndIncrement(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			logger.Warn("rate limit check failed, allowing request",
				slog.String("resource", rule.Resource),
				slog.Any("error", err))
			c.Next()
			return
		}

		if decision.Limit > 0 {
			c.Header(HeaderLimit, strconv.Itoa(decision.Limit))
			c.Header(HeaderRemaining, strconv.Itoa(decision.Remaining))
		}

		if !decision.Allowed {
			httputil.SetRetryAfter(c, decision.RetryAfter)
			httputil.HandleErrorGin(c, ratelimitDomain.ErrLimitExceeded, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}
