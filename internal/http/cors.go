package http

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	idempotencyHTTP "github.com/roofline/crmcore/internal/idempotency/http"
)

// Browser clients need the tenant headers on the way in and the guard headers on
// the way out (replay marker, rate limit counters).
var (
	corsRequestHeaders = []string{
		"Authorization",
		"Content-Type",
		idempotencyHTTP.HeaderIdempotencyKey,
		"X-Tenant-ID",
		"X-Location-ID",
		"X-User-ID",
		"X-User-Role",
	}
	corsExposedHeaders = []string{
		"X-Request-Id",
		"Retry-After",
		idempotencyHTTP.HeaderReplayed,
		"X-RateLimit-Limit",
		"X-RateLimit-Remaining",
	}
)

// corsMiddleware returns nil when CORS is off or no origin survives parsing, so the
// router can skip it. A "*" entry allows any origin but drops credentials, since
// browsers reject credentialed wildcard responses.
func corsMiddleware(enabled bool, allowOrigins string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := splitOrigins(allowOrigins)
	if len(origins) == 0 {
		logger.Warn("CORS enabled without any allowed origin, skipping")
		return nil
	}

	cfg := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowHeaders:  corsRequestHeaders,
		ExposeHeaders: corsExposedHeaders,
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}

	logger.Info("CORS enabled", slog.Any("origins", origins))
	return cors.New(cfg)
}

// splitOrigins splits a comma-separated list, dropping blanks and duplicates.
func splitOrigins(s string) []string {
	var origins []string
	for part := range strings.SplitSeq(s, ",") {
		origin := strings.TrimRight(strings.TrimSpace(part), "/")
		if origin == "" || slices.Contains(origins, origin) {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
