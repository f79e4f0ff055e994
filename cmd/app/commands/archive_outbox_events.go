package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	outboxUseCase "github.com/roofline/crmcore/internal/outbox/usecase"
)

// RunArchiveOutboxEvents moves completed and canceled events older than the given
// number of days into the archive table. Dry-run only counts them.
func RunArchiveOutboxEvents(
	ctx context.Context,
	useCase outboxUseCase.OutboxUseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("archiving outbox events",
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	count, err := useCase.ArchiveProcessed(ctx, time.Duration(days)*24*time.Hour, dryRun)
	if err != nil {
		return fmt.Errorf("failed to archive outbox events: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"count":   count,
			"days":    days,
			"dry_run": dryRun,
		})
	}

	if dryRun {
		_, err = fmt.Fprintf(writer, "Dry-run mode: Would archive %d event(s) older than %d day(s)\n", count, days)
	} else {
		_, err = fmt.Fprintf(writer, "Successfully archived %d event(s) older than %d day(s)\n", count, days)
	}
	return err
}
