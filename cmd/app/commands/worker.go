package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/roofline/crmcore/internal/app"
	"github.com/roofline/crmcore/internal/config"
)

// Runner is a background loop that runs until ctx is canceled.
type Runner interface {
	Start(ctx context.Context) error
}

// RunWorker starts the outbox dispatcher and the janitor and blocks until
// SIGINT/SIGTERM. In-flight deliveries finish before it returns.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	dispatcher, err := container.Dispatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	janitor, err := container.Janitor()
	if err != nil {
		return fmt.Errorf("failed to initialize janitor: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runAll(ctx, logger, map[string]Runner{
		"dispatcher": dispatcher,
		"janitor":    janitor,
	})
}

// runAll runs every runner until ctx ends. A runner failing for any reason other
// than cancellation stops the others and its error is returned.
func runAll(ctx context.Context, logger *slog.Logger, runners map[string]Runner) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, runner := range runners {
		g.Go(func() error {
			err := runner.Start(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", slog.Any("error", err))
		return err
	}

	logger.Info("worker stopped")
	return nil
}
