package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/tenant"
)

// AggregateType is the outbox aggregate type of pipeline entries.
const AggregateType = "pipeline_entry"

// Outbox event types emitted by the pipeline.
const (
	EventEntryCreated      = "pipeline.entry_created"
	EventEntryUpdated      = "pipeline.entry_updated"
	EventEntryAssigned     = "pipeline.entry_assigned"
	EventEntryDisqualified = "pipeline.entry_disqualified"
	EventStatusChanged     = "pipeline.status_changed"
	EventApprovalDecided   = "pipeline.approval_decided"
)

// StatusChangedKey is the idempotency key of the status change recorded by historyID.
func StatusChangedKey(historyID uuid.UUID) string {
	return EventStatusChanged + ":" + historyID.String()
}

// ApprovalDecidedKey is the idempotency key of the decision on approvalID.
func ApprovalDecidedKey(approvalID uuid.UUID) string {
	return EventApprovalDecided + ":" + approvalID.String()
}

// EntryCreatedKey is the idempotency key of the creation of entryID.
func EntryCreatedKey(entryID uuid.UUID) string {
	return EventEntryCreated + ":" + entryID.String()
}

// EntryCreated is emitted when a lead enters the pipeline.
type EntryCreated struct {
	EntryID             uuid.UUID  `json:"entry_id"`
	ContactID           uuid.UUID  `json:"contact_id"`
	LocationID          *uuid.UUID `json:"location_id,omitempty"`
	Status              Status     `json:"status"`
	AssignedTo          *uuid.UUID `json:"assigned_to,omitempty"`
	EstimatedValueCents *int64     `json:"estimated_value_cents,omitempty"`
	CreatedBy           uuid.UUID  `json:"created_by"`
	OccurredAt          time.Time  `json:"occurred_at"`
}

func (EntryCreated) EventType() string { return EventEntryCreated }

// EntryUpdated is emitted when the value or qualification of an entry changes.
type EntryUpdated struct {
	EntryID             uuid.UUID     `json:"entry_id"`
	EstimatedValueCents *int64        `json:"estimated_value_cents,omitempty"`
	Qualification       Qualification `json:"qualification"`
	UpdatedBy           uuid.UUID     `json:"updated_by"`
	OccurredAt          time.Time     `json:"occurred_at"`
}

func (EntryUpdated) EventType() string { return EventEntryUpdated }

// EntryAssigned is emitted when the owner of an entry changes.
type EntryAssigned struct {
	EntryID            uuid.UUID  `json:"entry_id"`
	PreviousAssignedTo *uuid.UUID `json:"previous_assigned_to,omitempty"`
	AssignedTo         *uuid.UUID `json:"assigned_to,omitempty"`
	AssignedBy         uuid.UUID  `json:"assigned_by"`
	OccurredAt         time.Time  `json:"occurred_at"`
}

func (EntryAssigned) EventType() string { return EventEntryAssigned }

// EntryDisqualified is emitted when an entry is soft-deleted without a status change.
type EntryDisqualified struct {
	EntryID        uuid.UUID `json:"entry_id"`
	Status         Status    `json:"status"`
	Reason         string    `json:"reason"`
	DisqualifiedBy uuid.UUID `json:"disqualified_by"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (EntryDisqualified) EventType() string { return EventEntryDisqualified }

// StatusChanged is emitted for every applied transition.
type StatusChanged struct {
	EntryID           uuid.UUID   `json:"entry_id"`
	ContactID         uuid.UUID   `json:"contact_id"`
	HistoryID         uuid.UUID   `json:"history_id"`
	FromStatus        Status      `json:"from_status"`
	ToStatus          Status      `json:"to_status"`
	IsBackward        bool        `json:"is_backward"`
	TransitionedBy    uuid.UUID   `json:"transitioned_by"`
	ActorRole         tenant.Role `json:"actor_role"`
	Reason            *string     `json:"reason,omitempty"`
	ApprovalRequestID *uuid.UUID  `json:"approval_request_id,omitempty"`
	ApprovedBy        *uuid.UUID  `json:"approved_by,omitempty"`
	OccurredAt        time.Time   `json:"occurred_at"`
}

func (StatusChanged) EventType() string { return EventStatusChanged }

// ApprovalDecided is emitted when a manager approves or rejects a request, or when
// a request is closed as stale.
type ApprovalDecided struct {
	ApprovalID   uuid.UUID      `json:"approval_id"`
	EntryID      uuid.UUID      `json:"entry_id"`
	FromStatus   Status         `json:"from_status"`
	ToStatus     Status         `json:"to_status"`
	Decision     ApprovalStatus `json:"decision"`
	DecidedBy    uuid.UUID      `json:"decided_by"`
	DecisionNote *string        `json:"decision_note,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

func (ApprovalDecided) EventType() string { return EventApprovalDecided }
