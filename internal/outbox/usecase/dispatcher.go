package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roofline/crmcore/internal/database"
	"github.com/roofline/crmcore/internal/metrics"
	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

// outcomeTimeout bounds the write that records a delivery outcome.
const outcomeTimeout = 10 * time.Second

// DispatcherConfig holds dispatcher configuration.
type DispatcherConfig struct {
	Interval      time.Duration
	BatchSize     int
	Workers       int
	LeaseDuration time.Duration
	SendTimeout   time.Duration
	Backoff       outboxDomain.Backoff
	// WorkerID prefixes lease tokens so claims can be traced to a process.
	WorkerID string
}

// Dispatcher claims due outbox events and delivers them through the sender registry.
// Several dispatchers may run against the same ledger; claims are exclusive.
type Dispatcher struct {
	config    DispatcherConfig
	txManager database.TxManager
	repo      OutboxEventRepository
	senders   SenderResolver
	metrics   metrics.DispatchMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// validateLease rejects a lease that cannot cover a batch spread evenly over the
// workers, each send taking up to SendTimeout.
func (c DispatcherConfig) validateLease() error {
	if c.SendTimeout <= 0 {
		return nil
	}
	rounds := (c.BatchSize + c.Workers - 1) / c.Workers
	if minimum := time.Duration(rounds) * c.SendTimeout; c.LeaseDuration < minimum {
		return fmt.Errorf(
			"outbox lease %s is shorter than %s (%d sends per worker at %s each)",
			c.LeaseDuration, minimum, rounds, c.SendTimeout,
		)
	}
	return nil
}

// NewDispatcher creates a new Dispatcher. It fails when the lease is too short for
// the batch size, worker count and send timeout.
func NewDispatcher(
	config DispatcherConfig,
	txManager database.TxManager,
	repo OutboxEventRepository,
	senders SenderResolver,
	dispatchMetrics metrics.DispatchMetrics,
	logger *slog.Logger,
) (*Dispatcher, error) {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.BatchSize < 1 {
		config.BatchSize = 1
	}
	if config.WorkerID == "" {
		config.WorkerID = "dispatcher"
	}
	if err := config.validateLease(); err != nil {
		return nil, err
	}
	if dispatchMetrics == nil {
		dispatchMetrics = metrics.NewNoOpDispatchMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		config:    config,
		txManager: txManager,
		repo:      repo,
		senders:   senders,
		metrics:   dispatchMetrics,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start polls the ledger until ctx is canceled. Each tick drains every due event
// before waiting for the next one. In-flight deliveries finish before Start returns.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("starting outbox dispatcher",
		slog.String("worker_id", d.config.WorkerID),
		slog.Duration("interval", d.config.Interval),
		slog.Int("batch_size", d.config.BatchSize),
		slog.Int("workers", d.config.Workers),
	)

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("stopping outbox dispatcher")
			return ctx.Err()
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		count, err := d.ProcessBatch(ctx)
		if err != nil {
			d.logger.Error("failed to process outbox batch", slog.Any("error", err))
			return
		}
		if count == 0 {
			return
		}
	}
}

// ProcessBatch claims one batch of due events and delivers it. Events of the same
// aggregate are delivered in order by a single goroutine; different aggregates are
// delivered concurrently up to the configured worker count. An event is only sent
// while the lease still covers a full SendTimeout; otherwise it and the rest of its
// aggregate are left for reclaim once the lease lapses. It returns the number of
// events claimed.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	now := d.now().UTC()
	params := outboxDomain.ClaimParams{
		Token:      d.config.WorkerID + ":" + uuid.NewString(),
		Now:        now,
		LeaseUntil: now.Add(d.config.LeaseDuration),
		Limit:      d.config.BatchSize,
	}

	var events []*outboxDomain.Event
	err := d.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		events, err = d.repo.Claim(ctx, params)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	d.metrics.RecordClaimed(ctx, len(events))
	d.logger.Debug("claimed outbox events", slog.Int("count", len(events)), slog.String("token", params.Token))

	var g errgroup.Group
	g.SetLimit(d.config.Workers)
	for _, group := range groupByAggregate(events) {
		g.Go(func() error {
			for i, event := range group {
				if !d.leaseCovers(params.LeaseUntil) {
					d.deferDelivery(ctx, params, group[i:])
					break
				}
				d.deliver(ctx, params.Token, event)
			}
			return nil
		})
	}
	_ = g.Wait()

	return len(events), nil
}

// leaseCovers reports whether a send started now would finish before leaseUntil.
func (d *Dispatcher) leaseCovers(leaseUntil time.Time) bool {
	return !d.now().UTC().Add(d.config.SendTimeout).After(leaseUntil)
}

// deferDelivery leaves events in processing with no outcome recorded. Once the lease
// lapses the next claim picks them up in aggregate order.
func (d *Dispatcher) deferDelivery(ctx context.Context, params outboxDomain.ClaimParams, events []*outboxDomain.Event) {
	for _, event := range events {
		d.logger.Warn("outbox lease too close to expiry, leaving event for reclaim",
			slog.String("event_id", event.ID.String()),
			slog.String("aggregate_id", event.AggregateID),
			slog.Time("lease_until", params.LeaseUntil),
		)
		d.metrics.RecordDelivery(ctx, event.EventType, metrics.DeliveryDeferred, 0)
	}
}

// deliver performs one attempt and records its outcome. The attempt is detached from
// ctx cancellation and bounded by SendTimeout instead, so shutdown never abandons a
// delivery halfway.
func (d *Dispatcher) deliver(ctx context.Context, token string, event *outboxDomain.Event) {
	start := time.Now()
	logger := d.logger.With(
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.String("tenant_id", event.TenantID.String()),
		slog.String("aggregate_id", event.AggregateID),
	)

	sendErr := d.send(ctx, event)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeTimeout)
	defer cancel()

	now := d.now().UTC()
	outcome := metrics.DeliveryCompleted
	var err error

	switch {
	case sendErr == nil:
		err = d.repo.MarkCompleted(writeCtx, event.ID, token, now)
	case outboxDomain.IsPermanent(sendErr) || event.RetryCount+1 > event.MaxRetries:
		outcome = metrics.DeliveryFailed
		err = d.repo.MarkFailed(writeCtx, event.ID, token, event.RetryCount+1, sendErr.Error(), now)
		if err == nil {
			logger.Error("outbox event failed",
				slog.Int("retry_count", event.RetryCount+1),
				slog.Bool("permanent", outboxDomain.IsPermanent(sendErr)),
				slog.Any("error", sendErr),
			)
		}
	default:
		outcome = metrics.DeliveryRetried
		retryCount := event.RetryCount + 1
		nextRetryAt := d.config.Backoff.NextRetryAt(now, event.NextRetryAt, retryCount)
		err = d.repo.MarkRetry(writeCtx, event.ID, token, retryCount, nextRetryAt, sendErr.Error(), now)
		if err == nil {
			logger.Warn("outbox delivery failed, retry scheduled",
				slog.Int("retry_count", retryCount),
				slog.Time("next_retry_at", nextRetryAt),
				slog.Any("error", sendErr),
			)
		}
	}

	switch {
	case errors.Is(err, outboxDomain.ErrLeaseLost):
		outcome = metrics.DeliveryLeaseLost
		logger.Warn("outbox lease lost before outcome was recorded", slog.String("token", token))
	case err != nil:
		logger.Error("failed to record outbox delivery outcome", slog.Any("error", err))
	case outcome == metrics.DeliveryCompleted:
		logger.Debug("outbox event delivered")
	}

	d.metrics.RecordDelivery(ctx, event.EventType, outcome, time.Since(start))
}

func (d *Dispatcher) send(ctx context.Context, event *outboxDomain.Event) error {
	sender, err := d.senders.Resolve(event.EventType)
	if err != nil {
		return err
	}

	sendCtx := context.WithoutCancel(ctx)
	if d.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(sendCtx, d.config.SendTimeout)
		defer cancel()
	}

	return sender.Send(sendCtx, outboxDomain.NewMessage(event))
}

// groupByAggregate splits a claimed batch into per-aggregate sequences, keeping
// the claim order inside each sequence.
func groupByAggregate(events []*outboxDomain.Event) [][]*outboxDomain.Event {
	type aggregateKey struct {
		tenantID      uuid.UUID
		aggregateType string
		aggregateID   string
	}

	index := make(map[aggregateKey]int)
	groups := make([][]*outboxDomain.Event, 0)
	for _, event := range events {
		key := aggregateKey{event.TenantID, event.AggregateType, event.AggregateID}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], event)
	}
	return groups
}
