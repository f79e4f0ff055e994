package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Delivery outcomes recorded by the outbox dispatcher.
const (
	DeliveryCompleted = "completed"
	DeliveryRetried   = "retried"
	DeliveryFailed    = "failed"
	DeliveryLeaseLost = "lease_lost"
	DeliveryDeferred  = "deferred"
)

// DispatchMetrics records outbox dispatcher activity.
type DispatchMetrics interface {
	// RecordClaimed records the size of a claimed batch.
	RecordClaimed(ctx context.Context, count int)

	// RecordDelivery records one delivery attempt with its outcome.
	RecordDelivery(ctx context.Context, eventType, outcome string, duration time.Duration)
}

type dispatchMetrics struct {
	claimedCounter  metric.Int64Counter
	deliveryCounter metric.Int64Counter
	deliveryHisto   metric.Float64Histogram
}

// NewDispatchMetrics creates DispatchMetrics on the given meter provider.
func NewDispatchMetrics(meterProvider metric.MeterProvider, namespace string) (DispatchMetrics, error) {
	meter := meterProvider.Meter(namespace)

	claimedCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_outbox_claimed_events_total", namespace),
		metric.WithDescription("Total number of outbox events claimed by the dispatcher"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create claimed counter: %w", err)
	}

	deliveryCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_outbox_deliveries_total", namespace),
		metric.WithDescription("Total number of outbox delivery attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery counter: %w", err)
	}

	deliveryHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_outbox_delivery_duration_seconds", namespace),
		metric.WithDescription("Duration of outbox delivery attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery histogram: %w", err)
	}

	return &dispatchMetrics{
		claimedCounter:  claimedCounter,
		deliveryCounter: deliveryCounter,
		deliveryHisto:   deliveryHisto,
	}, nil
}

func (d *dispatchMetrics) RecordClaimed(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	d.claimedCounter.Add(ctx, int64(count))
}

func (d *dispatchMetrics) RecordDelivery(
	ctx context.Context,
	eventType, outcome string,
	duration time.Duration,
) {
	attrs := metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	)
	d.deliveryCounter.Add(ctx, 1, attrs)
	d.deliveryHisto.Record(ctx, duration.Seconds(), attrs)
}

// NoOpDispatchMetrics discards dispatcher metrics.
type NoOpDispatchMetrics struct{}

// NewNoOpDispatchMetrics creates a no-op DispatchMetrics implementation.
func NewNoOpDispatchMetrics() DispatchMetrics {
	return &NoOpDispatchMetrics{}
}

// RecordClaimed does nothing.
func (n *NoOpDispatchMetrics) RecordClaimed(ctx context.Context, count int) {}

// RecordDelivery does nothing.
func (n *NoOpDispatchMetrics) RecordDelivery(
	ctx context.Context,
	eventType, outcome string,
	duration time.Duration,
) {
}
