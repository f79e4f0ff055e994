// Package dto provides data transfer objects for the pipeline API.
package dto

import (
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/tenant"
	customValidation "github.com/roofline/crmcore/internal/validation"
)

// QualificationRequest carries the qualification details of a lead.
type QualificationRequest struct {
	Source string   `json:"source"`
	Score  *int     `json:"score"`
	Notes  string   `json:"notes"`
	Tags   []string `json:"tags"`
}

// Validate checks the qualification fields.
func (r *QualificationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Source, validation.Length(0, 100), customValidation.Identifier),
		validation.Field(&r.Score, validation.Min(0), validation.Max(100)),
		validation.Field(&r.Notes, validation.Length(0, 4000)),
		validation.Field(&r.Tags, validation.Length(0, 20), validation.Each(customValidation.NotBlank, customValidation.NoWhitespace)),
	)
}

func (r *QualificationRequest) toDomain() pipelineDomain.Qualification {
	if r == nil {
		return pipelineDomain.Qualification{}
	}
	return pipelineDomain.Qualification{Source: r.Source, Score: r.Score, Notes: r.Notes, Tags: r.Tags}
}

// CreateEntryRequest contains the parameters for lead intake.
type CreateEntryRequest struct {
	ContactID           string                `json:"contact_id"`
	LocationID          *string               `json:"location_id"`
	AssignedTo          *string               `json:"assigned_to"`
	EstimatedValueCents *int64                `json:"estimated_value_cents"`
	Qualification       *QualificationRequest `json:"qualification"`
}

// Validate checks if the create entry request is valid.
func (r *CreateEntryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ContactID, validation.Required, customValidation.UUID),
		validation.Field(&r.LocationID, validation.NilOrNotEmpty, customValidation.UUID),
		validation.Field(&r.AssignedTo, validation.NilOrNotEmpty, customValidation.UUID),
		validation.Field(&r.EstimatedValueCents, validation.Min(int64(0))),
		validation.Field(&r.Qualification),
	)
}

// ToInput converts the request to a use case input. The location falls back to
// the request scope when the body omits it. Validate must have succeeded.
func (r *CreateEntryRequest) ToInput(scope *uuid.UUID) pipelineDomain.CreateEntryInput {
	location := parseOptionalUUID(r.LocationID)
	if location == nil {
		location = scope
	}
	return pipelineDomain.CreateEntryInput{
		ContactID:           uuid.MustParse(r.ContactID),
		LocationID:          location,
		AssignedTo:          parseOptionalUUID(r.AssignedTo),
		EstimatedValueCents: r.EstimatedValueCents,
		Qualification:       r.Qualification.toDomain(),
	}
}

// UpdateEntryRequest contains the mutable entry attributes.
type UpdateEntryRequest struct {
	EstimatedValueCents *int64                `json:"estimated_value_cents"`
	Qualification       *QualificationRequest `json:"qualification"`
}

// Validate checks if the update entry request is valid.
func (r *UpdateEntryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EstimatedValueCents, validation.Min(int64(0))),
		validation.Field(&r.Qualification),
	)
}

// ToInput converts the request to a use case input.
func (r *UpdateEntryRequest) ToInput() pipelineDomain.UpdateEntryInput {
	input := pipelineDomain.UpdateEntryInput{EstimatedValueCents: r.EstimatedValueCents}
	if r.Qualification != nil {
		q := r.Qualification.toDomain()
		input.Qualification = &q
	}
	return input
}

// AssignRequest sets or clears the entry owner. A null assigned_to unassigns.
type AssignRequest struct {
	AssignedTo *string `json:"assigned_to"`
}

// Validate checks if the assign request is valid.
func (r *AssignRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AssignedTo, validation.NilOrNotEmpty, customValidation.UUID),
	)
}

// Assignee returns the parsed assignee or nil.
func (r *AssignRequest) Assignee() *uuid.UUID {
	return parseOptionalUUID(r.AssignedTo)
}

// DisqualifyRequest carries the reason an entry is disqualified.
type DisqualifyRequest struct {
	Reason string `json:"reason"`
}

// Validate checks if the disqualify request is valid.
func (r *DisqualifyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Required, customValidation.NotBlank, validation.Length(1, 1000)),
	)
}

// TransitionRequest asks to move an entry to a new status.
type TransitionRequest struct {
	ToStatus string  `json:"to_status"`
	Reason   *string `json:"reason"`
}

// Validate checks if the transition request is valid.
func (r *TransitionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ToStatus, validation.Required, validation.By(validStatus)),
		validation.Field(&r.Reason, validation.Length(0, 1000)),
	)
}

// ToDomain converts the request to a domain transition request for actor.
func (r *TransitionRequest) ToDomain(actor tenant.Actor) pipelineDomain.TransitionRequest {
	return pipelineDomain.TransitionRequest{
		ToStatus: pipelineDomain.Status(r.ToStatus),
		Actor:    actor,
		Reason:   r.Reason,
	}
}

// DecisionRequest carries the optional note of an approval decision.
type DecisionRequest struct {
	Note *string `json:"note"`
}

// Validate checks if the decision request is valid.
func (r *DecisionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Note, validation.Length(0, 1000)),
	)
}

// RuleRequest contains the conditions of a transition rule. FromStatus and
// ToStatus are only read on creation.
type RuleRequest struct {
	FromStatus            string   `json:"from_status"`
	ToStatus              string   `json:"to_status"`
	RequiredRoles         []string `json:"required_roles"`
	RequiresApproval      bool     `json:"requires_approval"`
	RequiresReason        bool     `json:"requires_reason"`
	MinTimeInStageSeconds int64    `json:"min_time_in_stage_seconds"`
	MinValueCents         *int64   `json:"min_value_cents"`
	MaxValueCents         *int64   `json:"max_value_cents"`
	Active                *bool    `json:"active"`
}

// ValidateCreate checks a rule creation request.
func (r *RuleRequest) ValidateCreate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.FromStatus, validation.Required, validation.By(validStatus)),
		validation.Field(&r.ToStatus, validation.Required, validation.By(validStatus)),
		validation.Field(&r.RequiredRoles, validation.Each(validation.By(validRole))),
		validation.Field(&r.MinTimeInStageSeconds, validation.Min(int64(0))),
	)
}

// ValidateUpdate checks a rule update request.
func (r *RuleRequest) ValidateUpdate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RequiredRoles, validation.Each(validation.By(validRole))),
		validation.Field(&r.MinTimeInStageSeconds, validation.Min(int64(0))),
	)
}

// ToInput converts the request to a rule input.
func (r *RuleRequest) ToInput() pipelineDomain.RuleInput {
	roles := make(pipelineDomain.Roles, 0, len(r.RequiredRoles))
	for _, role := range r.RequiredRoles {
		roles = append(roles, tenant.Role(role))
	}
	return pipelineDomain.RuleInput{
		RequiredRoles:    roles,
		RequiresApproval: r.RequiresApproval,
		RequiresReason:   r.RequiresReason,
		MinTimeInStage:   time.Duration(r.MinTimeInStageSeconds) * time.Second,
		MinValueCents:    r.MinValueCents,
		MaxValueCents:    r.MaxValueCents,
		Active:           r.Active,
	}
}

func validStatus(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if !pipelineDomain.Status(s).Valid() {
		return validation.NewError("validation_pipeline_status", "must be a known pipeline status or substate")
	}
	return nil
}

func validRole(value any) error {
	s, _ := value.(string)
	if !tenant.Role(s).Valid() {
		return validation.NewError("validation_role", "must be a lower snake_case role")
	}
	return nil
}

func parseOptionalUUID(raw *string) *uuid.UUID {
	if raw == nil || *raw == "" {
		return nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil
	}
	return &id
}
