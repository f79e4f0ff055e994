// Package http provides the API server, its router and the metrics server.
package http

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roofline/crmcore/internal/config"
	idempotencyUseCase "github.com/roofline/crmcore/internal/idempotency/usecase"
	"github.com/roofline/crmcore/internal/metrics"
	outboxHTTP "github.com/roofline/crmcore/internal/outbox/http"
	pipelineHTTP "github.com/roofline/crmcore/internal/pipeline/http"
	ratelimitUseCase "github.com/roofline/crmcore/internal/ratelimit/usecase"
	"github.com/roofline/crmcore/internal/tenant"
)

// Server represents the API HTTP server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// newHTTPServer applies the timeouts shared by the API and metrics listeners.
func newHTTPServer(host string, port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// listen blocks in ListenAndServe, treating a closed server as a clean stop.
func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NewServer creates a new Server. SetupRouter must be called before Start.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: newHTTPServer(host, port, nil),
	}
}

// Start serves requests until Shutdown is called.
func (s *Server) Start(_ context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not configured")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := listen(s.server); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// GetHandler returns the configured router for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// RouterDeps holds everything the API routes need.
type RouterDeps struct {
	Config             *config.Config
	MetricsProvider    *metrics.Provider
	TenantResolver     tenant.Resolver
	IdempotencyUseCase idempotencyUseCase.IdempotencyUseCase
	RateLimitUseCase   ratelimitUseCase.RateLimitUseCase
	EntryHandler       *pipelineHTTP.EntryHandler
	TransitionHandler  *pipelineHTTP.TransitionHandler
	ApprovalHandler    *pipelineHTTP.ApprovalHandler
	RuleHandler        *pipelineHTTP.RuleHandler
	OutboxHandler      *outboxHTTP.OutboxHandler
}
