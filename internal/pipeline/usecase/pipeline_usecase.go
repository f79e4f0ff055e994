package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/database"
	apperrors "github.com/roofline/crmcore/internal/errors"
	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
	outboxUseCase "github.com/roofline/crmcore/internal/outbox/usecase"
	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/tenant"
)

type pipelineUseCase struct {
	txManager    database.TxManager
	entryRepo    EntryRepository
	ruleRepo     RuleRepository
	historyRepo  HistoryRepository
	approvalRepo ApprovalRepository
	ledger       outboxUseCase.Ledger
	logger       *slog.Logger
	now          func() time.Time
}

// NewPipelineUseCase creates the pipeline use case.
func NewPipelineUseCase(
	txManager database.TxManager,
	entryRepo EntryRepository,
	ruleRepo RuleRepository,
	historyRepo HistoryRepository,
	approvalRepo ApprovalRepository,
	ledger outboxUseCase.Ledger,
	logger *slog.Logger,
) PipelineUseCase {
	return &pipelineUseCase{
		txManager:    txManager,
		entryRepo:    entryRepo,
		ruleRepo:     ruleRepo,
		historyRepo:  historyRepo,
		approvalRepo: approvalRepo,
		ledger:       ledger,
		logger:       logger,
		now:          time.Now,
	}
}

func validateActor(actor tenant.Actor) error {
	if actor.UserID == uuid.Nil || !actor.Role.Valid() {
		return pipelineDomain.ErrInvalidActor
	}
	return nil
}

func (uc *pipelineUseCase) emit(
	ctx context.Context,
	entry *pipelineDomain.Entry,
	payload outboxDomain.Payload,
	key *string,
) (uuid.UUID, error) {
	event, err := uc.ledger.AppendPayload(
		ctx, entry.TenantID, pipelineDomain.AggregateType, entry.ID.String(), payload, key,
	)
	if err != nil {
		return uuid.Nil, err
	}
	return event.ID, nil
}

// CreateEntry adds a lead to the pipeline. The initial status is recorded in the
// history with no from status.
func (uc *pipelineUseCase) CreateEntry(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	input pipelineDomain.CreateEntryInput,
) (*pipelineDomain.Entry, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if input.ContactID == uuid.Nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "contact id is required")
	}

	now := uc.now().UTC()
	entry := &pipelineDomain.Entry{
		ID:                  uuid.Must(uuid.NewV7()),
		TenantID:            tenantID,
		ContactID:           input.ContactID,
		LocationID:          input.LocationID,
		Status:              pipelineDomain.StatusLead,
		StatusEnteredAt:     now,
		AssignedTo:          input.AssignedTo,
		ApprovalStatus:      pipelineDomain.ApprovalNone,
		EstimatedValueCents: input.EstimatedValueCents,
		Qualification:       input.Qualification,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.entryRepo.Create(ctx, entry); err != nil {
			return err
		}

		history := &pipelineDomain.TransitionHistory{
			ID:             uuid.Must(uuid.NewV7()),
			TenantID:       tenantID,
			EntryID:        entry.ID,
			ToStatus:       entry.Status,
			TransitionedBy: actor.UserID,
			ActorRole:      actor.Role,
			CreatedAt:      now,
		}
		if err := uc.historyRepo.Create(ctx, history); err != nil {
			return err
		}

		key := pipelineDomain.EntryCreatedKey(entry.ID)
		_, err := uc.emit(ctx, entry, pipelineDomain.EntryCreated{
			EntryID:             entry.ID,
			ContactID:           entry.ContactID,
			LocationID:          entry.LocationID,
			Status:              entry.Status,
			AssignedTo:          entry.AssignedTo,
			EstimatedValueCents: entry.EstimatedValueCents,
			CreatedBy:           actor.UserID,
			OccurredAt:          now,
		}, &key)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (uc *pipelineUseCase) GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.Entry, error) {
	return uc.entryRepo.Get(ctx, tenantID, id)
}

func (uc *pipelineUseCase) ListEntries(
	ctx context.Context,
	tenantID uuid.UUID,
	filter pipelineDomain.ListEntriesFilter,
) ([]*pipelineDomain.Entry, error) {
	return uc.entryRepo.List(ctx, tenantID, filter)
}

// UpdateEntry changes the estimated value or qualification of an entry. Status
// changes always go through AttemptTransition.
func (uc *pipelineUseCase) UpdateEntry(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	input pipelineDomain.UpdateEntryInput,
) (*pipelineDomain.Entry, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if input.EstimatedValueCents != nil && *input.EstimatedValueCents < 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "estimated value must not be negative")
	}

	var entry *pipelineDomain.Entry
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = uc.entryRepo.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}

		now := uc.now().UTC()
		if input.EstimatedValueCents != nil {
			entry.EstimatedValueCents = input.EstimatedValueCents
		}
		if input.Qualification != nil {
			entry.Qualification = *input.Qualification
		}
		entry.UpdatedAt = now

		if err := uc.entryRepo.Update(ctx, entry); err != nil {
			return err
		}

		_, err = uc.emit(ctx, entry, pipelineDomain.EntryUpdated{
			EntryID:             entry.ID,
			EstimatedValueCents: entry.EstimatedValueCents,
			Qualification:       entry.Qualification,
			UpdatedBy:           actor.UserID,
			OccurredAt:          now,
		}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Assign changes the owner of an entry. A nil assignee unassigns it.
func (uc *pipelineUseCase) Assign(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	assignee *uuid.UUID,
) (*pipelineDomain.Entry, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}

	var entry *pipelineDomain.Entry
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = uc.entryRepo.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}

		now := uc.now().UTC()
		previous := entry.AssignedTo
		entry.AssignedTo = assignee
		entry.UpdatedAt = now

		if err := uc.entryRepo.Update(ctx, entry); err != nil {
			return err
		}

		_, err = uc.emit(ctx, entry, pipelineDomain.EntryAssigned{
			EntryID:            entry.ID,
			PreviousAssignedTo: previous,
			AssignedTo:         assignee,
			AssignedBy:         actor.UserID,
			OccurredAt:         now,
		}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Disqualify soft-deletes an entry without changing its status. Only approvers
// may disqualify, and a reason is always required.
func (uc *pipelineUseCase) Disqualify(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	reason string,
) (*pipelineDomain.Entry, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if !actor.Role.CanApprove() {
		return nil, pipelineDomain.ErrNotApprover
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pipelineDomain.ErrReasonRequired
	}

	var entry *pipelineDomain.Entry
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = uc.entryRepo.GetForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if entry.IsDeleted() {
			return pipelineDomain.ErrEntryAlreadyDeleted
		}

		now := uc.now().UTC()
		entry.DeletedAt = &now
		entry.DeletionReason = &reason
		entry.UpdatedAt = now

		if err := uc.entryRepo.Update(ctx, entry); err != nil {
			return err
		}
		if _, err := uc.approvalRepo.SupersedePending(ctx, tenantID, entry.ID, uuid.Nil, now); err != nil {
			return err
		}

		_, err = uc.emit(ctx, entry, pipelineDomain.EntryDisqualified{
			EntryID:        entry.ID,
			Status:         entry.Status,
			Reason:         reason,
			DisqualifiedBy: actor.UserID,
			OccurredAt:     now,
		}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("pipeline entry disqualified",
		slog.String("tenant_id", tenantID.String()),
		slog.String("entry_id", id.String()),
		slog.String("user_id", actor.UserID.String()),
	)
	return entry, nil
}

// ListHistory returns the transitions of an entry, oldest first.
func (uc *pipelineUseCase) ListHistory(
	ctx context.Context,
	tenantID, entryID uuid.UUID,
	offset, limit int,
) ([]*pipelineDomain.TransitionHistory, error) {
	if _, err := uc.entryRepo.Get(ctx, tenantID, entryID); err != nil {
		return nil, err
	}
	return uc.historyRepo.ListByEntry(ctx, tenantID, entryID, offset, limit)
}

func (uc *pipelineUseCase) GetApproval(
	ctx context.Context,
	tenantID, id uuid.UUID,
) (*pipelineDomain.ApprovalRequest, error) {
	return uc.approvalRepo.Get(ctx, tenantID, id)
}

func (uc *pipelineUseCase) ListApprovals(
	ctx context.Context,
	tenantID uuid.UUID,
	filter pipelineDomain.ListApprovalsFilter,
) ([]*pipelineDomain.ApprovalRequest, error) {
	return uc.approvalRepo.List(ctx, tenantID, filter)
}
