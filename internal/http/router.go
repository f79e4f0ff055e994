package http

import (
	"context"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	idempotencyHTTP "github.com/roofline/crmcore/internal/idempotency/http"
	"github.com/roofline/crmcore/internal/metrics"
	ratelimitHTTP "github.com/roofline/crmcore/internal/ratelimit/http"
	"github.com/roofline/crmcore/internal/tenant"
)

// Rate limit resources.
const (
	ResourceTransition = "pipeline.transition"
	ResourceWrite      = "write"
)

// SetupRouter builds the API routes. ctx bounds background work started by the
// middlewares.
//
// Every /v1 route resolves the tenant first. Mutations then pass the fixed-window
// limit of their resource and the idempotency middleware before the handler runs.
func (s *Server) SetupRouter(ctx context.Context, deps RouterDeps) {
	cfg := deps.Config

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if cors := corsMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); cors != nil {
		router.Use(cors)
	}
	if cfg.MetricsEnabled && deps.MetricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(deps.MetricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	v1.Use(tenant.Middleware(deps.TenantResolver, s.logger))
	if cfg.TenantThrottleEnabled {
		v1.Use(ratelimitHTTP.TenantThrottleMiddleware(
			ctx, cfg.TenantThrottleRequestsPerSec, cfg.TenantThrottleBurst, s.logger,
		))
	}

	writeLimit := ratelimitHTTP.Middleware(deps.RateLimitUseCase, ratelimitHTTP.Rule{
		Resource: ResourceWrite,
		Limit:    cfg.RateLimitWriteLimit,
		Window:   cfg.RateLimitWriteWindow,
	}, s.logger)
	transitionLimit := ratelimitHTTP.Middleware(deps.RateLimitUseCase, ratelimitHTTP.Rule{
		Resource: ResourceTransition,
		Limit:    cfg.RateLimitTransitionLimit,
		Window:   cfg.RateLimitTransitionWindow,
	}, s.logger)
	idempotent := idempotencyHTTP.Middleware(deps.IdempotencyUseCase, idempotencyHTTP.MiddlewareConfig{
		TTL: cfg.IdempotencyTTL,
	}, s.logger)

	pipeline := v1.Group("/pipeline")
	{
		entries := pipeline.Group("/entries")
		entries.GET("", deps.EntryHandler.ListHandler)
		entries.POST("", writeLimit, idempotent, deps.EntryHandler.CreateHandler)
		entries.GET("/:id", deps.EntryHandler.GetHandler)
		entries.PATCH("/:id", writeLimit, idempotent, deps.EntryHandler.UpdateHandler)
		entries.PUT("/:id/assignee", writeLimit, idempotent, deps.EntryHandler.AssignHandler)
		entries.POST("/:id/disqualify", writeLimit, idempotent, deps.EntryHandler.DisqualifyHandler)
		entries.GET("/:id/transitions", deps.TransitionHandler.HistoryHandler)
		entries.POST("/:id/transitions", transitionLimit, idempotent, deps.TransitionHandler.AttemptHandler)

		approvals := pipeline.Group("/approvals")
		approvals.GET("", deps.ApprovalHandler.ListHandler)
		approvals.GET("/:id", deps.ApprovalHandler.GetHandler)
		approvals.POST("/:id/approve", transitionLimit, idempotent, deps.ApprovalHandler.ApproveHandler)
		approvals.POST("/:id/reject", writeLimit, idempotent, deps.ApprovalHandler.RejectHandler)

		rules := pipeline.Group("/rules")
		rules.GET("", deps.RuleHandler.ListHandler)
		rules.POST("", writeLimit, deps.RuleHandler.CreateHandler)
		rules.PUT("/:id", writeLimit, deps.RuleHandler.UpdateHandler)
		rules.DELETE("/:id", writeLimit, deps.RuleHandler.DeactivateHandler)
	}

	outbox := v1.Group("/outbox/events")
	{
		outbox.GET("", deps.OutboxHandler.ListHandler)
		outbox.GET("/:id", deps.OutboxHandler.GetHandler)
		outbox.POST("/:id/cancel", writeLimit, idempotent, deps.OutboxHandler.CancelHandler)
	}

	s.router = router
}
