package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	outboxUseCase "github.com/roofline/crmcore/internal/outbox/usecase"
)

// RunCancelEvent cancels a pending or failed outbox event so the dispatcher never
// delivers it.
func RunCancelEvent(
	ctx context.Context,
	useCase outboxUseCase.OutboxUseCase,
	logger *slog.Logger,
	writer io.Writer,
	tenantIDStr string,
	eventIDStr string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(tenantIDStr)
	if err != nil {
		return fmt.Errorf("invalid tenant ID format: %w", err)
	}
	eventID, err := uuid.Parse(eventIDStr)
	if err != nil {
		return fmt.Errorf("invalid event ID format: %w", err)
	}

	event, err := useCase.Cancel(ctx, tenantID, eventID)
	if err != nil {
		return fmt.Errorf("failed to cancel event: %w", err)
	}

	logger.Info("outbox event canceled",
		slog.String("tenant_id", tenantID.String()),
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"id":          event.ID.String(),
			"tenant_id":   event.TenantID.String(),
			"event_type":  event.EventType,
			"status":      string(event.Status),
			"retry_count": event.RetryCount,
		})
	}

	_, err = fmt.Fprintf(writer, "Canceled event %s (%s) after %d attempt(s)\n",
		event.ID, event.EventType, event.RetryCount)
	return err
}
