// Package usecase implements the pipeline state machine: lead intake, rule driven
// status transitions with manager approvals, and tenant rule administration.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/tenant"
)

// EntryRepository defines pipeline entry persistence operations.
type EntryRepository interface {
	Create(ctx context.Context, entry *pipelineDomain.Entry) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.Entry, error)
	GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.Entry, error)
	List(ctx context.Context, tenantID uuid.UUID, filter pipelineDomain.ListEntriesFilter) ([]*pipelineDomain.Entry, error)
	Update(ctx context.Context, entry *pipelineDomain.Entry) error
}

// RuleRepository defines transition rule persistence operations.
type RuleRepository interface {
	Create(ctx context.Context, rule *pipelineDomain.TransitionRule) error
	CreateIfAbsent(ctx context.Context, rule *pipelineDomain.TransitionRule) (bool, error)
	Update(ctx context.Context, rule *pipelineDomain.TransitionRule) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.TransitionRule, error)
	GetActive(
		ctx context.Context,
		tenantID uuid.UUID,
		from, to pipelineDomain.Status,
	) (*pipelineDomain.TransitionRule, error)
	List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]*pipelineDomain.TransitionRule, error)
}

// HistoryRepository defines transition history persistence operations.
type HistoryRepository interface {
	Create(ctx context.Context, history *pipelineDomain.TransitionHistory) error
	ListByEntry(
		ctx context.Context,
		tenantID, entryID uuid.UUID,
		offset, limit int,
	) ([]*pipelineDomain.TransitionHistory, error)
}

// ApprovalRepository defines approval queue persistence operations.
type ApprovalRepository interface {
	Create(ctx context.Context, approval *pipelineDomain.ApprovalRequest) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.ApprovalRequest, error)
	GetForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.ApprovalRequest, error)
	GetPendingByEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*pipelineDomain.ApprovalRequest, error)
	List(
		ctx context.Context,
		tenantID uuid.UUID,
		filter pipelineDomain.ListApprovalsFilter,
	) ([]*pipelineDomain.ApprovalRequest, error)
	Update(ctx context.Context, approval *pipelineDomain.ApprovalRequest) error
	// SupersedePending closes every pending request of the entry except exceptID,
	// which may be uuid.Nil.
	SupersedePending(ctx context.Context, tenantID, entryID, exceptID uuid.UUID, at time.Time) (int64, error)
}

// PipelineUseCase defines entry and transition operations.
type PipelineUseCase interface {
	CreateEntry(
		ctx context.Context,
		tenantID uuid.UUID,
		actor tenant.Actor,
		input pipelineDomain.CreateEntryInput,
	) (*pipelineDomain.Entry, error)
	GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.Entry, error)
	ListEntries(
		ctx context.Context,
		tenantID uuid.UUID,
		filter pipelineDomain.ListEntriesFilter,
	) ([]*pipelineDomain.Entry, error)
	UpdateEntry(
		ctx context.Context,
		tenantID uuid.UUID,
		actor tenant.Actor,
		id uuid.UUID,
		input pipelineDomain.UpdateEntryInput,
	) (*pipelineDomain.Entry, error)
	Assign(
		ctx context.Context,
		tenantID uuid.UUID,
		actor tenant.Actor,
		id uuid.UUID,
		assignee *uuid.UUID,
	) (*pipelineDomain.Entry, error)
	Disqualify(
		ctx context.Context,
		tenantID uuid.UUID,
		actor tenant.Actor,
		id uuid.UUID,
		reason string,
	) (*pipelineDomain.Entry, error)

	AttemptTransition(
		ctx context.Context,
		tenantID, entryID uuid.UUID,
		req pipelineDomain.TransitionRequest,
	) (*pipelineDomain.TransitionResult, error)
	ListHistory(
		ctx context.Context,
		tenantID, entryID uuid.UUID,
		offset, limit int,
	) ([]*pipelineDomain.TransitionHistory, error)

	GetApproval(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.ApprovalRequest, error)
	ListApprovals(
		ctx context.Context,
		tenantID uuid.UUID,
		filter pipelineDomain.ListApprovalsFilter,
	) ([]*pipelineDomain.ApprovalRequest, error)
	Approve(
		ctx context.Context,
		tenantID uuid.UUID,
		approver tenant.Actor,
		approvalID uuid.UUID,
		note *string,
	) (*pipelineDomain.TransitionResult, error)
	RejectApproval(
		ctx context.Context,
		tenantID uuid.UUID,
		approver tenant.Actor,
		approvalID uuid.UUID,
		note *string,
	) (*pipelineDomain.ApprovalRequest, error)
}

// RuleUseCase defines tenant rule administration.
type RuleUseCase interface {
	CreateRule(
		ctx context.Context,
		tenantID uuid.UUID,
		actor tenant.Actor,
		from, to pipelineDomain.Status,
		input pipelineDomain.RuleInput,
	) (*pipelineDomain.TransitionRule, error)
	UpdateRule(
		ctx context.Context,
		tenantID uuid.UUID,
		actor tenant.Actor,
		id uuid.UUID,
		input pipelineDomain.RuleInput,
	) (*pipelineDomain.TransitionRule, error)
	DeactivateRule(
		ctx context.Context,
		tenantID uuid.UUID,
		actor tenant.Actor,
		id uuid.UUID,
	) (*pipelineDomain.TransitionRule, error)
	ListRules(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]*pipelineDomain.TransitionRule, error)
	// SeedRules inserts the given rules, skipping status pairs the tenant already
	// configured, and returns how many were created.
	SeedRules(ctx context.Context, tenantID uuid.UUID, rules []pipelineDomain.TransitionRule) (int, error)
}
