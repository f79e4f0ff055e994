package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/tenant"
)

// ApprovalRequest is a transition waiting for a manager decision. An entry has at
// most one pending request at a time.
type ApprovalRequest struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	EntryID       uuid.UUID
	FromStatus    Status
	ToStatus      Status
	RequestedBy   uuid.UUID
	RequestedRole tenant.Role
	Reason        *string
	Status        ApprovalStatus
	DecidedBy     *uuid.UUID
	DecisionNote  *string
	DecidedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsPending reports whether the request still awaits a decision.
func (a *ApprovalRequest) IsPending() bool {
	return a.Status == ApprovalPending
}

// Decide records the decision on the request.
func (a *ApprovalRequest) Decide(status ApprovalStatus, decidedBy uuid.UUID, note *string, at time.Time) {
	a.Status = status
	a.DecidedBy = &decidedBy
	a.DecisionNote = note
	a.DecidedAt = &at
	a.UpdatedAt = at
}

// ListApprovalsFilter narrows approval listings.
type ListApprovalsFilter struct {
	Status  *ApprovalStatus
	EntryID *uuid.UUID
	Offset  int
	Limit   int
}

// TransitionHistory is the audit record of one applied transition, or of the
// initial status when an entry is created (FromStatus is nil then).
type TransitionHistory struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	EntryID           uuid.UUID
	FromStatus        *Status
	ToStatus          Status
	TransitionedBy    uuid.UUID
	ActorRole         tenant.Role
	Reason            *string
	RequiresApproval  bool
	IsBackward        bool
	ApprovalRequestID *uuid.UUID
	ApprovedBy        *uuid.UUID
	CreatedAt         time.Time
}
