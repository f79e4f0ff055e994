// Package app provides the dependency injection container that assembles the
// application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/roofline/crmcore/internal/config"
	"github.com/roofline/crmcore/internal/database"
	"github.com/roofline/crmcore/internal/http"
	"github.com/roofline/crmcore/internal/metrics"
)

// Container holds all application dependencies. Components are created lazily on
// first access and cached; a failed initialization is cached as well.
type Container struct {
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	dispatchMetrics metrics.DispatchMetrics

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	pipelineComponents
	outboxComponents
	idempotencyComponents
	rateLimitComponents

	loggerInit          sync.Once
	dbInit              sync.Once
	txManagerInit       sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	dispatchMetricsInit sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once

	mu         sync.Mutex
	initErrors map[string]error
	closers    []func(context.Context) error
}

// NewContainer creates a new container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// resolve runs init once, storing its value in slot or its error under name.
func resolve[T any](c *Container, once *sync.Once, name string, slot *T, init func() (T, error)) (T, error) {
	once.Do(func() {
		value, err := init()
		if err != nil {
			c.mu.Lock()
			c.initErrors[name] = err
			c.mu.Unlock()
			return
		}
		*slot = value
	})

	c.mu.Lock()
	err := c.initErrors[name]
	c.mu.Unlock()
	if err != nil {
		var zero T
		return zero, err
	}
	return *slot, nil
}

// onShutdown registers a cleanup run by Shutdown in reverse order.
func (c *Container) onShutdown(fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the JSON logger configured with the log level from configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	return resolve(c, &c.dbInit, "db", &c.db, c.initDB)
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	return resolve(c, &c.txManagerInit, "txManager", &c.txManager, c.initTxManager)
}

// MetricsProvider returns the OpenTelemetry provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	return resolve(c, &c.metricsProviderInit, "metricsProvider", &c.metricsProvider, c.initMetricsProvider)
}

// BusinessMetrics returns the business metrics recorder. It is a no-op when
// metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	return resolve(c, &c.businessMetricsInit, "businessMetrics", &c.businessMetrics, c.initBusinessMetrics)
}

// DispatchMetrics returns the dispatcher metrics recorder.
func (c *Container) DispatchMetrics() (metrics.DispatchMetrics, error) {
	return resolve(c, &c.dispatchMetricsInit, "dispatchMetrics", &c.dispatchMetrics, c.initDispatchMetrics)
}

// HTTPServer returns the API server with its routes configured.
func (c *Container) HTTPServer(ctx context.Context) (*http.Server, error) {
	return resolve(c, &c.httpServerInit, "httpServer", &c.httpServer, func() (*http.Server, error) {
		return c.initHTTPServer(ctx)
	})
}

// MetricsServer returns the metrics server.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	return resolve(c, &c.metricsServerInit, "metricsServer", &c.metricsServer, c.initMetricsServer)
}

// Shutdown releases every initialized resource, most recently created first.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	c.onShutdown(func(context.Context) error {
		if err := db.Close(); err != nil {
			return fmt.Errorf("database close: %w", err)
		}
		return nil
	})
	return db, nil
}

func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}

	c.onShutdown(func(ctx context.Context) error {
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("metrics provider shutdown: %w", err)
		}
		return nil
	})
	return provider, nil
}

func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

func (c *Container) initDispatchMetrics() (metrics.DispatchMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return metrics.NewNoOpDispatchMetrics(), nil
	}
	return metrics.NewDispatchMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

func (c *Container) initHTTPServer(ctx context.Context) (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}
	idempotencyUseCase, err := c.IdempotencyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency use case for http server: %w", err)
	}
	rateLimitUseCase, err := c.RateLimitUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit use case for http server: %w", err)
	}
	entryHandler, err := c.EntryHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get entry handler for http server: %w", err)
	}
	transitionHandler, err := c.TransitionHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get transition handler for http server: %w", err)
	}
	approvalHandler, err := c.ApprovalHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get approval handler for http server: %w", err)
	}
	ruleHandler, err := c.RuleHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get rule handler for http server: %w", err)
	}
	outboxHandler, err := c.OutboxHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox handler for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(ctx, http.RouterDeps{
		Config:             c.config,
		MetricsProvider:    provider,
		TenantResolver:     c.TenantResolver(),
		IdempotencyUseCase: idempotencyUseCase,
		RateLimitUseCase:   rateLimitUseCase,
		EntryHandler:       entryHandler,
		TransitionHandler:  transitionHandler,
		ApprovalHandler:    approvalHandler,
		RuleHandler:        ruleHandler,
		OutboxHandler:      outboxHandler,
	})

	c.onShutdown(func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})
	return server, nil
}

func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("metrics are disabled")
	}

	server := http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
	c.onShutdown(func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	})
	return server, nil
}
