package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/database"
	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

type outboxUseCase struct {
	txManager database.TxManager
	repo      OutboxEventRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewOutboxUseCase creates the operator use case.
func NewOutboxUseCase(txManager database.TxManager, repo OutboxEventRepository, logger *slog.Logger) OutboxUseCase {
	return &outboxUseCase{
		txManager: txManager,
		repo:      repo,
		logger:    logger,
		now:       time.Now,
	}
}

func (uc *outboxUseCase) Get(ctx context.Context, tenantID, id uuid.UUID) (*outboxDomain.Event, error) {
	return uc.repo.Get(ctx, tenantID, id)
}

func (uc *outboxUseCase) List(
	ctx context.Context,
	tenantID uuid.UUID,
	filter outboxDomain.ListFilter,
) ([]*outboxDomain.Event, error) {
	return uc.repo.List(ctx, tenantID, filter)
}

// Cancel stops delivery of a pending or failed event. Processing events are owned
// by a dispatcher and cannot be canceled until their attempt finishes.
func (uc *outboxUseCase) Cancel(ctx context.Context, tenantID, id uuid.UUID) (*outboxDomain.Event, error) {
	var event *outboxDomain.Event

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		current, err := uc.repo.Get(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if !current.CanCancel() {
			return outboxDomain.ErrEventNotCancelable
		}

		now := uc.now().UTC()
		if err := uc.repo.Cancel(ctx, tenantID, id, now); err != nil {
			return err
		}

		current.Status = outboxDomain.StatusCanceled
		current.UpdatedAt = now
		event = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("outbox event canceled",
		slog.String("tenant_id", tenantID.String()),
		slog.String("event_id", id.String()),
		slog.String("event_type", event.EventType),
	)
	return event, nil
}

// ArchiveProcessed moves completed and canceled events older than olderThan to the
// archive table. Failed events stay in the ledger for triage.
func (uc *outboxUseCase) ArchiveProcessed(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error) {
	before := uc.now().UTC().Add(-olderThan)

	var count int64
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		count, err = uc.repo.ArchiveProcessed(ctx, before, dryRun)
		return err
	})
	if err != nil {
		return 0, err
	}

	uc.logger.Info("outbox archive finished",
		slog.Time("before", before),
		slog.Bool("dry_run", dryRun),
		slog.Int64("count", count),
	)
	return count, nil
}
