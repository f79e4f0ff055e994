package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/metrics"
	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/tenant"
)

const metricsDomain = "pipeline"

func metricStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func record(ctx context.Context, m metrics.BusinessMetrics, operation string, start time.Time, status string) {
	m.RecordOperation(ctx, metricsDomain, operation, status)
	m.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// pipelineUseCaseWithMetrics decorates PipelineUseCase with metrics instrumentation.
type pipelineUseCaseWithMetrics struct {
	next    PipelineUseCase
	metrics metrics.BusinessMetrics
}

// NewPipelineUseCaseWithMetrics wraps a PipelineUseCase with metrics recording.
// Transition attempts are labeled with their outcome instead of plain success.
func NewPipelineUseCaseWithMetrics(useCase PipelineUseCase, m metrics.BusinessMetrics) PipelineUseCase {
	return &pipelineUseCaseWithMetrics{next: useCase, metrics: m}
}

func (p *pipelineUseCaseWithMetrics) CreateEntry(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	input pipelineDomain.CreateEntryInput,
) (*pipelineDomain.Entry, error) {
	start := time.Now()
	entry, err := p.next.CreateEntry(ctx, tenantID, actor, input)
	record(ctx, p.metrics, "entry_create", start, metricStatus(err))
	return entry, err
}

func (p *pipelineUseCaseWithMetrics) GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*pipelineDomain.Entry, error) {
	start := time.Now()
	entry, err := p.next.GetEntry(ctx, tenantID, id)
	record(ctx, p.metrics, "entry_get", start, metricStatus(err))
	return entry, err
}

func (p *pipelineUseCaseWithMetrics) ListEntries(
	ctx context.Context,
	tenantID uuid.UUID,
	filter pipelineDomain.ListEntriesFilter,
) ([]*pipelineDomain.Entry, error) {
	start := time.Now()
	entries, err := p.next.ListEntries(ctx, tenantID, filter)
	record(ctx, p.metrics, "entry_list", start, metricStatus(err))
	return entries, err
}

func (p *pipelineUseCaseWithMetrics) UpdateEntry(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	input pipelineDomain.UpdateEntryInput,
) (*pipelineDomain.Entry, error) {
	start := time.Now()
	entry, err := p.next.UpdateEntry(ctx, tenantID, actor, id, input)
	record(ctx, p.metrics, "entry_update", start, metricStatus(err))
	return entry, err
}

func (p *pipelineUseCaseWithMetrics) Assign(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	assignee *uuid.UUID,
) (*pipelineDomain.Entry, error) {
	start := time.Now()
	entry, err := p.next.Assign(ctx, tenantID, actor, id, assignee)
	record(ctx, p.metrics, "entry_assign", start, metricStatus(err))
	return entry, err
}

func (p *pipelineUseCaseWithMetrics) Disqualify(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	reason string,
) (*pipelineDomain.Entry, error) {
	start := time.Now()
	entry, err := p.next.Disqualify(ctx, tenantID, actor, id, reason)
	record(ctx, p.metrics, "entry_disqualify", start, metricStatus(err))
	return entry, err
}

func (p *pipelineUseCaseWithMetrics) AttemptTransition(
	ctx context.Context,
	tenantID, entryID uuid.UUID,
	req pipelineDomain.TransitionRequest,
) (*pipelineDomain.TransitionResult, error) {
	start := time.Now()
	result, err := p.next.AttemptTransition(ctx, tenantID, entryID, req)
	status := metricStatus(err)
	if err == nil {
		status = string(result.Outcome)
	}
	record(ctx, p.metrics, "attempt_transition", start, status)
	return result, err
}

func (p *pipelineUseCaseWithMetrics) ListHistory(
	ctx context.Context,
	tenantID, entryID uuid.UUID,
	offset, limit int,
) ([]*pipelineDomain.TransitionHistory, error) {
	start := time.Now()
	history, err := p.next.ListHistory(ctx, tenantID, entryID, offset, limit)
	record(ctx, p.metrics, "history_list", start, metricStatus(err))
	return history, err
}

func (p *pipelineUseCaseWithMetrics) GetApproval(
	ctx context.Context,
	tenantID, id uuid.UUID,
) (*pipelineDomain.ApprovalRequest, error) {
	start := time.Now()
	approval, err := p.next.GetApproval(ctx, tenantID, id)
	record(ctx, p.metrics, "approval_get", start, metricStatus(err))
	return approval, err
}

func (p *pipelineUseCaseWithMetrics) ListApprovals(
	ctx context.Context,
	tenantID uuid.UUID,
	filter pipelineDomain.ListApprovalsFilter,
) ([]*pipelineDomain.ApprovalRequest, error) {
	start := time.Now()
	approvals, err := p.next.ListApprovals(ctx, tenantID, filter)
	record(ctx, p.metrics, "approval_list", start, metricStatus(err))
	return approvals, err
}

func (p *pipelineUseCaseWithMetrics) Approve(
	ctx context.Context,
	tenantID uuid.UUID,
	approver tenant.Actor,
	approvalID uuid.UUID,
	note *string,
) (*pipelineDomain.TransitionResult, error) {
	start := time.Now()
	result, err := p.next.Approve(ctx, tenantID, approver, approvalID, note)
	status := metricStatus(err)
	if err == nil {
		status = string(result.Outcome)
	}
	record(ctx, p.metrics, "approval_approve", start, status)
	return result, err
}

func (p *pipelineUseCaseWithMetrics) RejectApproval(
	ctx context.Context,
	tenantID uuid.UUID,
	approver tenant.Actor,
	approvalID uuid.UUID,
	note *string,
) (*pipelineDomain.ApprovalRequest, error) {
	start := time.Now()
	approval, err := p.next.RejectApproval(ctx, tenantID, approver, approvalID, note)
	record(ctx, p.metrics, "approval_reject", start, metricStatus(err))
	return approval, err
}

// ruleUseCaseWithMetrics decorates RuleUseCase with metrics instrumentation.
type ruleUseCaseWithMetrics struct {
	next    RuleUseCase
	metrics metrics.BusinessMetrics
}

// NewRuleUseCaseWithMetrics wraps a RuleUseCase with metrics recording.
func NewRuleUseCaseWithMetrics(useCase RuleUseCase, m metrics.BusinessMetrics) RuleUseCase {
	return &ruleUseCaseWithMetrics{next: useCase, metrics: m}
}

func (r *ruleUseCaseWithMetrics) CreateRule(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	from, to pipelineDomain.Status,
	input pipelineDomain.RuleInput,
) (*pipelineDomain.TransitionRule, error) {
	start := time.Now()
	rule, err := r.next.CreateRule(ctx, tenantID, actor, from, to, input)
	record(ctx, r.metrics, "rule_create", start, metricStatus(err))
	return rule, err
}

func (r *ruleUseCaseWithMetrics) UpdateRule(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
	input pipelineDomain.RuleInput,
) (*pipelineDomain.TransitionRule, error) {
	start := time.Now()
	rule, err := r.next.UpdateRule(ctx, tenantID, actor, id, input)
	record(ctx, r.metrics, "rule_update", start, metricStatus(err))
	return rule, err
}

func (r *ruleUseCaseWithMetrics) DeactivateRule(
	ctx context.Context,
	tenantID uuid.UUID,
	actor tenant.Actor,
	id uuid.UUID,
) (*pipelineDomain.TransitionRule, error) {
	start := time.Now()
	rule, err := r.next.DeactivateRule(ctx, tenantID, actor, id)
	record(ctx, r.metrics, "rule_deactivate", start, metricStatus(err))
	return rule, err
}

func (r *ruleUseCaseWithMetrics) ListRules(
	ctx context.Context,
	tenantID uuid.UUID,
	activeOnly bool,
) ([]*pipelineDomain.TransitionRule, error) {
	start := time.Now()
	rules, err := r.next.ListRules(ctx, tenantID, activeOnly)
	record(ctx, r.metrics, "rule_list", start, metricStatus(err))
	return rules, err
}

func (r *ruleUseCaseWithMetrics) SeedRules(
	ctx context.Context,
	tenantID uuid.UUID,
	rules []pipelineDomain.TransitionRule,
) (int, error) {
	start := time.Now()
	created, err := r.next.SeedRules(ctx, tenantID, rules)
	record(ctx, r.metrics, "rule_seed", start, metricStatus(err))
	return created, err
}
