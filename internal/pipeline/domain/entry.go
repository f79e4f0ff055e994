package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the state of a manager approval, both on the approval request
// and as the summary kept on the entry.
type ApprovalStatus string

const (
	ApprovalNone       ApprovalStatus = "none"
	ApprovalPending    ApprovalStatus = "pending"
	ApprovalApproved   ApprovalStatus = "approved"
	ApprovalRejected   ApprovalStatus = "rejected"
	ApprovalSuperseded ApprovalStatus = "superseded"
)

// Valid reports whether a is a known approval status.
func (a ApprovalStatus) Valid() bool {
	switch a {
	case ApprovalNone, ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalSuperseded:
		return true
	default:
		return false
	}
}

// Qualification holds the lead qualification data captured at intake.
type Qualification struct {
	Source string   `json:"source,omitempty"`
	Score  *int     `json:"score,omitempty"`
	Notes  string   `json:"notes,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// Value stores the qualification as a JSON document.
func (q Qualification) Value() (driver.Value, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON document column.
func (q *Qualification) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*q = Qualification{}
		return nil
	case []byte:
		return json.Unmarshal(v, q)
	case string:
		return json.Unmarshal([]byte(v), q)
	default:
		return fmt.Errorf("cannot scan %T into Qualification", src)
	}
}

// Entry is a lead or opportunity moving through the pipeline.
type Entry struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	ContactID           uuid.UUID
	LocationID          *uuid.UUID
	Status              Status
	StatusEnteredAt     time.Time
	AssignedTo          *uuid.UUID
	ApprovalStatus      ApprovalStatus
	EstimatedValueCents *int64
	Qualification       Qualification
	DeletedAt           *time.Time
	DeletionReason      *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsDeleted reports whether the entry is soft-deleted.
func (e *Entry) IsDeleted() bool {
	return e.DeletedAt != nil
}

// TimeInStage returns how long the entry has been in its current status.
func (e *Entry) TimeInStage(now time.Time) time.Duration {
	return now.Sub(e.StatusEnteredAt)
}

// ListEntriesFilter narrows entry listings.
type ListEntriesFilter struct {
	Status         *Status
	AssignedTo     *uuid.UUID
	IncludeDeleted bool
	Offset         int
	Limit          int
}
