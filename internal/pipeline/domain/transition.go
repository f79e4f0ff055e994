package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/tenant"
)

// Outcome is the result kind of a transition attempt.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomePendingApproval Outcome = "pending_approval"
	OutcomeRejected        Outcome = "rejected"
)

// RejectionCode identifies why a transition was rejected.
type RejectionCode string

const (
	RejectNoActiveRule    RejectionCode = "no_active_rule"
	RejectRoleNotAllowed  RejectionCode = "role_not_allowed"
	RejectReasonRequired  RejectionCode = "reason_required"
	RejectMinTimeInStage  RejectionCode = "min_time_in_stage"
	RejectValueOutOfRange RejectionCode = "value_out_of_range"
	RejectApprovalPending RejectionCode = "approval_pending"
	RejectApprovalStale   RejectionCode = "approval_stale"
)

// TransitionRequest asks to move an entry to a new status.
type TransitionRequest struct {
	ToStatus Status
	Actor    tenant.Actor
	Reason   *string
}

// Rejection explains a rejected transition.
type Rejection struct {
	Code   RejectionCode
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Reason)
}

// TransitionResult is returned by every transition attempt. Exactly one of the
// outcome specific groups of fields is populated.
type TransitionResult struct {
	Outcome Outcome

	// Applied
	Entry   *Entry
	History *TransitionHistory
	EventID *uuid.UUID

	// PendingApproval (and the decided request on approval flows)
	Approval *ApprovalRequest

	// Rejected
	Rejection *Rejection
}

// Applied builds an applied result.
func Applied(entry *Entry, history *TransitionHistory, eventID uuid.UUID) *TransitionResult {
	return &TransitionResult{Outcome: OutcomeApplied, Entry: entry, History: history, EventID: &eventID}
}

// PendingApproval builds a pending approval result.
func PendingApproval(entry *Entry, approval *ApprovalRequest) *TransitionResult {
	return &TransitionResult{Outcome: OutcomePendingApproval, Entry: entry, Approval: approval}
}

// Rejected builds a rejected result.
func Rejected(code RejectionCode, format string, args ...any) *TransitionResult {
	return &TransitionResult{
		Outcome:   OutcomeRejected,
		Rejection: &Rejection{Code: code, Reason: fmt.Sprintf(format, args...)},
	}
}

// Evaluate runs the rule checks in order and returns the first failing one, or
// nil when the transition may proceed. A nil or inactive rule rejects.
func Evaluate(rule *TransitionRule, entry *Entry, req TransitionRequest, now time.Time) *Rejection {
	if rule == nil || !rule.Active {
		return &Rejection{
			Code:   RejectNoActiveRule,
			Reason: fmt.Sprintf("no active rule from %s to %s", entry.Status, req.ToStatus),
		}
	}

	if !rule.AllowsRole(req.Actor.Role) {
		return &Rejection{
			Code:   RejectRoleNotAllowed,
			Reason: fmt.Sprintf("role %s may not move entries from %s to %s", req.Actor.Role, rule.FromStatus, rule.ToStatus),
		}
	}

	if rule.RequiresReason && (req.Reason == nil || strings.TrimSpace(*req.Reason) == "") {
		return &Rejection{Code: RejectReasonRequired, Reason: "a reason is required for this transition"}
	}

	if rule.MinTimeInStage > 0 {
		if elapsed := entry.TimeInStage(now); elapsed < rule.MinTimeInStage {
			return &Rejection{
				Code: RejectMinTimeInStage,
				Reason: fmt.Sprintf(
					"entry must stay in %s for %s, %s remaining",
					entry.Status, rule.MinTimeInStage, (rule.MinTimeInStage - elapsed).Round(time.Second),
				),
			}
		}
	}

	if rule.HasValueRange() {
		if rej := checkValue(rule, entry); rej != nil {
			return rej
		}
	}

	return nil
}

func checkValue(rule *TransitionRule, entry *Entry) *Rejection {
	if entry.EstimatedValueCents == nil {
		return &Rejection{Code: RejectValueOutOfRange, Reason: "an estimated value is required for this transition"}
	}

	value := *entry.EstimatedValueCents
	if rule.MinValueCents != nil && value < *rule.MinValueCents {
		return &Rejection{
			Code:   RejectValueOutOfRange,
			Reason: fmt.Sprintf("estimated value %d is below the minimum of %d", value, *rule.MinValueCents),
		}
	}
	if rule.MaxValueCents != nil && value > *rule.MaxValueCents {
		return &Rejection{
			Code:   RejectValueOutOfRange,
			Reason: fmt.Sprintf("estimated value %d is above the maximum of %d", value, *rule.MaxValueCents),
		}
	}
	return nil
}

// NeedsApproval reports whether the transition must wait for a manager. Actors
// with an approver role satisfy the approval themselves.
func NeedsApproval(rule *TransitionRule, actor tenant.Actor, granted bool) bool {
	return rule.RequiresApproval && !granted && !actor.Role.CanApprove()
}
