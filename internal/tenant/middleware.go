package tenant

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/httputil"
)

// Middleware resolves the tenant scope of every request and aborts when it
// cannot be resolved.
func Middleware(resolver Resolver, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := resolver.Resolve(c.Request)
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithContext(c.Request.Context(), tc))
		c.Next()
	}
}

// MustFromGin returns the tenant scope of a request that went through
// Middleware. It writes an error response and returns false otherwise.
func MustFromGin(c *gin.Context, logger *slog.Logger) (*Context, bool) {
	tc, ok := FromContext(c.Request.Context())
	if !ok {
		logger.Error("tenant scope missing from request context")
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
		c.Abort()
		return nil, false
	}
	return tc, true
}
