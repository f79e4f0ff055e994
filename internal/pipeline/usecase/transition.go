package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/roofline/crmcore/internal/errors"
	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/tenant"
)

// grant is a manager decision that satisfies the approval requirement of a rule.
type grant struct {
	approval *pipelineDomain.ApprovalRequest
	approver tenant.Actor
}

// AttemptTransition moves an entry to req.ToStatus when the tenant's active rule
// allows it. The entry row stays locked for the whole evaluation so concurrent
// attempts on the same entry serialize. Rejections are results, not errors.
func (uc *pipelineUseCase) AttemptTransition(
	ctx context.Context,
	tenantID, entryID uuid.UUID,
	req pipelineDomain.TransitionRequest,
) (*pipelineDomain.TransitionResult, error) {
	if !req.ToStatus.Valid() {
		return nil, apperrors.Wrapf(pipelineDomain.ErrInvalidStatus, "unknown status %q", req.ToStatus)
	}
	if err := validateActor(req.Actor); err != nil {
		return nil, err
	}

	var result *pipelineDomain.TransitionResult
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		entry, err := uc.entryRepo.GetForUpdate(ctx, tenantID, entryID)
		if err != nil {
			return err
		}

		result, err = uc.transition(ctx, entry, req, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.logTransition(tenantID, entryID, req, result)
	return result, nil
}

func (uc *pipelineUseCase) transition(
	ctx context.Context,
	entry *pipelineDomain.Entry,
	req pipelineDomain.TransitionRequest,
	granted *grant,
) (*pipelineDomain.TransitionResult, error) {
	now := uc.now().UTC()

	rule, err := uc.ruleRepo.GetActive(ctx, entry.TenantID, entry.Status, req.ToStatus)
	if err != nil && !apperrors.Is(err, pipelineDomain.ErrRuleNotFound) {
		return nil, err
	}

	if rejection := pipelineDomain.Evaluate(rule, entry, req, now); rejection != nil {
		return &pipelineDomain.TransitionResult{
			Outcome:   pipelineDomain.OutcomeRejected,
			Rejection: rejection,
		}, nil
	}

	if pipelineDomain.NeedsApproval(rule, req.Actor, granted != nil) {
		return uc.requestApproval(ctx, entry, req)
	}

	return uc.apply(ctx, entry, rule, req, granted)
}

// requestApproval queues the transition for a manager and marks the entry's
// approval summary pending. A repeated request for the same target returns the
// pending request; a request for another target is rejected while one is pending.
func (uc *pipelineUseCase) requestApproval(
	ctx context.Context,
	entry *pipelineDomain.Entry,
	req pipelineDomain.TransitionRequest,
) (*pipelineDomain.TransitionResult, error) {
	now := uc.now().UTC()

	pending, err := uc.approvalRepo.GetPendingByEntry(ctx, entry.TenantID, entry.ID)
	switch {
	case err == nil && pending.FromStatus == entry.Status:
		if pending.ToStatus == req.ToStatus {
			return pipelineDomain.PendingApproval(entry, pending), nil
		}
		return pipelineDomain.Rejected(
			pipelineDomain.RejectApprovalPending,
			"entry already has a pending approval to move to %s", pending.ToStatus,
		), nil
	case err == nil:
		if _, err := uc.approvalRepo.SupersedePending(ctx, entry.TenantID, entry.ID, uuid.Nil, now); err != nil {
			return nil, err
		}
	case !apperrors.Is(err, pipelineDomain.ErrApprovalNotFound):
		return nil, err
	}

	approval := &pipelineDomain.ApprovalRequest{
		ID:            uuid.Must(uuid.NewV7()),
		TenantID:      entry.TenantID,
		EntryID:       entry.ID,
		FromStatus:    entry.Status,
		ToStatus:      req.ToStatus,
		RequestedBy:   req.Actor.UserID,
		RequestedRole: req.Actor.Role,
		Reason:        req.Reason,
		Status:        pipelineDomain.ApprovalPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.approvalRepo.Create(ctx, approval); err != nil {
		return nil, err
	}

	entry.ApprovalStatus = pipelineDomain.ApprovalPending
	entry.UpdatedAt = now
	if err := uc.entryRepo.Update(ctx, entry); err != nil {
		return nil, err
	}

	return pipelineDomain.PendingApproval(entry, approval), nil
}

// apply mutates the entry, appends the history row and the status changed event.
// Every other pending request of the entry is superseded.
func (uc *pipelineUseCase) apply(
	ctx context.Context,
	entry *pipelineDomain.Entry,
	rule *pipelineDomain.TransitionRule,
	req pipelineDomain.TransitionRequest,
	granted *grant,
) (*pipelineDomain.TransitionResult, error) {
	now := uc.now().UTC()
	from := entry.Status

	history := &pipelineDomain.TransitionHistory{
		ID:               uuid.Must(uuid.NewV7()),
		TenantID:         entry.TenantID,
		EntryID:          entry.ID,
		FromStatus:       &from,
		ToStatus:         req.ToStatus,
		TransitionedBy:   req.Actor.UserID,
		ActorRole:        req.Actor.Role,
		Reason:           req.Reason,
		RequiresApproval: rule.RequiresApproval,
		IsBackward:       pipelineDomain.IsBackward(from, req.ToStatus),
		CreatedAt:        now,
	}

	exceptID := uuid.Nil
	switch {
	case granted != nil:
		exceptID = granted.approval.ID
		history.ApprovalRequestID = &granted.approval.ID
		history.ApprovedBy = &granted.approver.UserID
	case rule.RequiresApproval:
		history.ApprovedBy = &req.Actor.UserID
	}

	entry.Status = req.ToStatus
	entry.StatusEnteredAt = now
	entry.UpdatedAt = now
	entry.ApprovalStatus = pipelineDomain.ApprovalNone
	if rule.RequiresApproval {
		entry.ApprovalStatus = pipelineDomain.ApprovalApproved
	}
	if req.ToStatus.SoftDeletes() {
		entry.DeletedAt = &now
		entry.DeletionReason = req.Reason
	} else {
		entry.DeletedAt = nil
		entry.DeletionReason = nil
	}

	if err := uc.entryRepo.Update(ctx, entry); err != nil {
		return nil, err
	}
	if err := uc.historyRepo.Create(ctx, history); err != nil {
		return nil, err
	}
	if _, err := uc.approvalRepo.SupersedePending(ctx, entry.TenantID, entry.ID, exceptID, now); err != nil {
		return nil, err
	}

	key := pipelineDomain.StatusChangedKey(history.ID)
	eventID, err := uc.emit(ctx, entry, pipelineDomain.StatusChanged{
		EntryID:           entry.ID,
		ContactID:         entry.ContactID,
		HistoryID:         history.ID,
		FromStatus:        from,
		ToStatus:          entry.Status,
		IsBackward:        history.IsBackward,
		TransitionedBy:    history.TransitionedBy,
		ActorRole:         history.ActorRole,
		Reason:            history.Reason,
		ApprovalRequestID: history.ApprovalRequestID,
		ApprovedBy:        history.ApprovedBy,
		OccurredAt:        now,
	}, &key)
	if err != nil {
		return nil, err
	}

	return pipelineDomain.Applied(entry, history, eventID), nil
}

// Approve decides a pending request in favor of the requester and re-runs the
// transition as the requester with the approval satisfied. A request whose entry
// has left the requested from status is superseded and reported as stale. When the
// rule no longer allows the transition the request is rejected.
func (uc *pipelineUseCase) Approve(
	ctx context.Context,
	tenantID uuid.UUID,
	approver tenant.Actor,
	approvalID uuid.UUID,
	note *string,
) (*pipelineDomain.TransitionResult, error) {
	if err := validateActor(approver); err != nil {
		return nil, err
	}
	if !approver.Role.CanApprove() {
		return nil, pipelineDomain.ErrNotApprover
	}

	var result *pipelineDomain.TransitionResult
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		approval, entry, err := uc.lockPending(ctx, tenantID, approvalID)
		if err != nil {
			return err
		}

		now := uc.now().UTC()
		if entry.Status != approval.FromStatus {
			approval.Decide(pipelineDomain.ApprovalSuperseded, approver.UserID, note, now)
			result = pipelineDomain.Rejected(
				pipelineDomain.RejectApprovalStale,
				"entry moved from %s to %s after the request", approval.FromStatus, entry.Status,
			)
		} else {
			req := pipelineDomain.TransitionRequest{
				ToStatus: approval.ToStatus,
				Actor:    tenant.Actor{UserID: approval.RequestedBy, Role: approval.RequestedRole},
				Reason:   approval.Reason,
			}
			result, err = uc.transition(ctx, entry, req, &grant{approval: approval, approver: approver})
			if err != nil {
				return err
			}

			if result.Outcome == pipelineDomain.OutcomeApplied {
				approval.Decide(pipelineDomain.ApprovalApproved, approver.UserID, note, now)
			} else {
				approval.Decide(pipelineDomain.ApprovalRejected, approver.UserID, note, now)
				if err := uc.markEntryRejected(ctx, entry, now); err != nil {
					return err
				}
			}
		}

		result.Approval = approval
		return uc.closeApproval(ctx, entry, approval)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("approval decided",
		slog.String("tenant_id", tenantID.String()),
		slog.String("approval_id", approvalID.String()),
		slog.String("decision", string(result.Approval.Status)),
		slog.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

// RejectApproval declines a pending request. The entry keeps its status and its
// approval summary becomes rejected.
func (uc *pipelineUseCase) RejectApproval(
	ctx context.Context,
	tenantID uuid.UUID,
	approver tenant.Actor,
	approvalID uuid.UUID,
	note *string,
) (*pipelineDomain.ApprovalRequest, error) {
	if err := validateActor(approver); err != nil {
		return nil, err
	}
	if !approver.Role.CanApprove() {
		return nil, pipelineDomain.ErrNotApprover
	}

	var approval *pipelineDomain.ApprovalRequest
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var (
			entry *pipelineDomain.Entry
			err   error
		)
		approval, entry, err = uc.lockPending(ctx, tenantID, approvalID)
		if err != nil {
			return err
		}

		now := uc.now().UTC()
		approval.Decide(pipelineDomain.ApprovalRejected, approver.UserID, note, now)
		if err := uc.markEntryRejected(ctx, entry, now); err != nil {
			return err
		}
		return uc.closeApproval(ctx, entry, approval)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("approval rejected",
		slog.String("tenant_id", tenantID.String()),
		slog.String("approval_id", approvalID.String()),
		slog.String("user_id", approver.UserID.String()),
	)
	return approval, nil
}

// lockPending locks the request and its entry, in that order.
func (uc *pipelineUseCase) lockPending(
	ctx context.Context,
	tenantID, approvalID uuid.UUID,
) (*pipelineDomain.ApprovalRequest, *pipelineDomain.Entry, error) {
	approval, err := uc.approvalRepo.GetForUpdate(ctx, tenantID, approvalID)
	if err != nil {
		return nil, nil, err
	}
	if !approval.IsPending() {
		return nil, nil, pipelineDomain.ErrApprovalNotPending
	}

	entry, err := uc.entryRepo.GetForUpdate(ctx, tenantID, approval.EntryID)
	if err != nil {
		return nil, nil, err
	}
	return approval, entry, nil
}

func (uc *pipelineUseCase) markEntryRejected(
	ctx context.Context,
	entry *pipelineDomain.Entry,
	now time.Time,
) error {
	entry.ApprovalStatus = pipelineDomain.ApprovalRejected
	entry.UpdatedAt = now
	return uc.entryRepo.Update(ctx, entry)
}

func (uc *pipelineUseCase) closeApproval(
	ctx context.Context,
	entry *pipelineDomain.Entry,
	approval *pipelineDomain.ApprovalRequest,
) error {
	if err := uc.approvalRepo.Update(ctx, approval); err != nil {
		return err
	}

	key := pipelineDomain.ApprovalDecidedKey(approval.ID)
	_, err := uc.emit(ctx, entry, pipelineDomain.ApprovalDecided{
		ApprovalID:   approval.ID,
		EntryID:      approval.EntryID,
		FromStatus:   approval.FromStatus,
		ToStatus:     approval.ToStatus,
		Decision:     approval.Status,
		DecidedBy:    *approval.DecidedBy,
		DecisionNote: approval.DecisionNote,
		OccurredAt:   *approval.DecidedAt,
	}, &key)
	return err
}

func (uc *pipelineUseCase) logTransition(
	tenantID, entryID uuid.UUID,
	req pipelineDomain.TransitionRequest,
	result *pipelineDomain.TransitionResult,
) {
	attrs := []any{
		slog.String("tenant_id", tenantID.String()),
		slog.String("entry_id", entryID.String()),
		slog.String("to_status", string(req.ToStatus)),
		slog.String("user_id", req.Actor.UserID.String()),
		slog.String("outcome", string(result.Outcome)),
	}

	switch result.Outcome {
	case pipelineDomain.OutcomeRejected:
		uc.logger.Info("transition rejected", append(attrs, slog.String("code", string(result.Rejection.Code)))...)
	case pipelineDomain.OutcomePendingApproval:
		uc.logger.Info("transition awaiting approval", append(attrs, slog.String("approval_id", result.Approval.ID.String()))...)
	default:
		uc.logger.Info("transition applied", attrs...)
	}
}
