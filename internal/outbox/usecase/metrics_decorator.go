package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/metrics"
	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

// outboxUseCaseWithMetrics decorates OutboxUseCase with metrics instrumentation.
type outboxUseCaseWithMetrics struct {
	next    OutboxUseCase
	metrics metrics.BusinessMetrics
}

// NewOutboxUseCaseWithMetrics wraps an OutboxUseCase with metrics recording.
func NewOutboxUseCaseWithMetrics(useCase OutboxUseCase, m metrics.BusinessMetrics) OutboxUseCase {
	return &outboxUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (o *outboxUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	o.metrics.RecordOperation(ctx, "outbox", operation, status)
	o.metrics.RecordDuration(ctx, "outbox", operation, time.Since(start), status)
}

// Get records metrics for event retrieval.
func (o *outboxUseCaseWithMetrics) Get(ctx context.Context, tenantID, id uuid.UUID) (*outboxDomain.Event, error) {
	start := time.Now()
	event, err := o.next.Get(ctx, tenantID, id)
	o.record(ctx, "event_get", start, err)
	return event, err
}

// List records metrics for event listing.
func (o *outboxUseCaseWithMetrics) List(
	ctx context.Context,
	tenantID uuid.UUID,
	filter outboxDomain.ListFilter,
) ([]*outboxDomain.Event, error) {
	start := time.Now()
	events, err := o.next.List(ctx, tenantID, filter)
	o.record(ctx, "event_list", start, err)
	return events, err
}

// Cancel records metrics for event cancellation.
func (o *outboxUseCaseWithMetrics) Cancel(ctx context.Context, tenantID, id uuid.UUID) (*outboxDomain.Event, error) {
	start := time.Now()
	event, err := o.next.Cancel(ctx, tenantID, id)
	o.record(ctx, "event_cancel", start, err)
	return event, err
}

// ArchiveProcessed records metrics for archive runs.
func (o *outboxUseCaseWithMetrics) ArchiveProcessed(
	ctx context.Context,
	olderThan time.Duration,
	dryRun bool,
) (int64, error) {
	start := time.Now()
	count, err := o.next.ArchiveProcessed(ctx, olderThan, dryRun)
	o.record(ctx, "event_archive", start, err)
	return count, err
}
