package sender

import (
	"context"
	"log/slog"

	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

// LogSender writes events to the structured log. It is the default channel for
// local development and for event types nobody consumes yet.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message.
func (s *LogSender) Send(ctx context.Context, msg outboxDomain.Message) error {
	s.logger.InfoContext(ctx, "outbox event",
		slog.String("event_id", msg.EventID.String()),
		slog.String("event_type", msg.EventType),
		slog.String("tenant_id", msg.TenantID.String()),
		slog.String("aggregate_type", msg.AggregateType),
		slog.String("aggregate_id", msg.AggregateID),
		slog.String("idempotency_key", msg.DeduplicationKey()),
		slog.Int("attempt", msg.Attempt),
		slog.String("payload", string(msg.Payload)),
	)
	return nil
}
