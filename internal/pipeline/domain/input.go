package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreateEntryInput contains the data of a new lead.
type CreateEntryInput struct {
	ContactID           uuid.UUID
	LocationID          *uuid.UUID
	AssignedTo          *uuid.UUID
	EstimatedValueCents *int64
	Qualification       Qualification
}

// UpdateEntryInput contains the mutable entry attributes. Nil fields are left unchanged.
type UpdateEntryInput struct {
	EstimatedValueCents *int64
	Qualification       *Qualification
}

// RuleInput contains the conditions of a transition rule. Active is ignored on
// creation when nil and left unchanged on update when nil.
type RuleInput struct {
	RequiredRoles    Roles
	RequiresApproval bool
	RequiresReason   bool
	MinTimeInStage   time.Duration
	MinValueCents    *int64
	MaxValueCents    *int64
	Active           *bool
}
