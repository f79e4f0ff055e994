package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roofline/crmcore/internal/app"
	"github.com/roofline/crmcore/internal/config"
)

// shutdownTimeout bounds graceful shutdown of the servers and the container.
const shutdownTimeout = 30 * time.Second

// lifecycle is a server that can be started and shut down.
type lifecycle interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// RunServer starts the API server, and the metrics server when metrics are enabled,
// and blocks until SIGINT/SIGTERM or a server failure. Both servers are shut down
// gracefully before returning.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := container.HTTPServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	servers := map[string]lifecycle{"api": server}
	if cfg.MetricsEnabled {
		metricsServer, err := container.MetricsServer()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics server: %w", err)
		}
		servers["metrics"] = metricsServer
	}

	return serve(ctx, logger, servers)
}

// serve starts every server and waits for ctx to end or a server to fail, then shuts
// them all down.
func serve(ctx context.Context, logger *slog.Logger, servers map[string]lifecycle) error {
	serverErr := make(chan error, len(servers))
	for name, server := range servers {
		go func() {
			if err := server.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("%s server error: %w", name, err)
			}
		}()
	}

	var errs []error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		errs = append(errs, err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for name, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("%s server shutdown: %w", name, err))
		}
	}

	return errors.Join(errs...)
}
