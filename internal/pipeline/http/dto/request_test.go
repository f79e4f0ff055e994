package dto

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/tenant"
)

func strPtr(s string) *string { return &s }

func TestCreateEntryRequest_Validate(t *testing.T) {
	contactID := uuid.Must(uuid.NewV7()).String()

	t.Run("Success_Minimal", func(t *testing.T) {
		req := CreateEntryRequest{ContactID: contactID}
		assert.NoError(t, req.Validate())
	})

	t.Run("Success_Full", func(t *testing.T) {
		score := 80
		value := int64(1_250_000)
		req := CreateEntryRequest{
			ContactID:           contactID,
			LocationID:          strPtr(uuid.Must(uuid.NewV7()).String()),
			AssignedTo:          strPtr(uuid.Must(uuid.NewV7()).String()),
			EstimatedValueCents: &value,
			Qualification: &QualificationRequest{
				Source: "storm_canvass",
				Score:  &score,
				Tags:   []string{"hail", "insurance"},
			},
		}
		assert.NoError(t, req.Validate())
	})

	t.Run("Error_MissingContact", func(t *testing.T) {
		req := CreateEntryRequest{}
		err := req.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contact_id")
	})

	t.Run("Error_BadLocation", func(t *testing.T) {
		req := CreateEntryRequest{ContactID: contactID, LocationID: strPtr("north-branch")}
		err := req.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "location_id")
	})

	t.Run("Error_NegativeValue", func(t *testing.T) {
		value := int64(-1)
		req := CreateEntryRequest{ContactID: contactID, EstimatedValueCents: &value}
		assert.Error(t, req.Validate())
	})

	t.Run("Error_ScoreOutOfRange", func(t *testing.T) {
		score := 101
		req := CreateEntryRequest{ContactID: contactID, Qualification: &QualificationRequest{Score: &score}}
		assert.Error(t, req.Validate())
	})
}

func TestCreateEntryRequest_ToInput(t *testing.T) {
	contactID := uuid.Must(uuid.NewV7())
	scope := uuid.Must(uuid.NewV7())

	t.Run("LocationFromScope", func(t *testing.T) {
		req := CreateEntryRequest{ContactID: contactID.String()}

		input := req.ToInput(&scope)

		assert.Equal(t, contactID, input.ContactID)
		assert.Equal(t, scope, *input.LocationID)
		assert.Nil(t, input.AssignedTo)
		assert.Equal(t, pipelineDomain.Qualification{}, input.Qualification)
	})

	t.Run("LocationFromBody", func(t *testing.T) {
		location := uuid.Must(uuid.NewV7())
		req := CreateEntryRequest{ContactID: contactID.String(), LocationID: strPtr(location.String())}

		input := req.ToInput(&scope)

		assert.Equal(t, location, *input.LocationID)
	})
}

func TestTransitionRequest(t *testing.T) {
	t.Run("Success_Substate", func(t *testing.T) {
		req := TransitionRequest{ToStatus: "hold:insurance_adjuster"}
		assert.NoError(t, req.Validate())
	})

	t.Run("Error_UnknownStatus", func(t *testing.T) {
		req := TransitionRequest{ToStatus: "won"}
		err := req.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "to_status")
	})

	t.Run("Error_Missing", func(t *testing.T) {
		req := TransitionRequest{}
		assert.Error(t, req.Validate())
	})

	t.Run("ToDomain", func(t *testing.T) {
		actor := tenant.Actor{UserID: uuid.Must(uuid.NewV7()), Role: tenant.RoleSalesRep}
		req := TransitionRequest{ToStatus: "legal_review", Reason: strPtr("inspection done")}

		got := req.ToDomain(actor)

		assert.Equal(t, pipelineDomain.StatusLegalReview, got.ToStatus)
		assert.Equal(t, actor, got.Actor)
		assert.Equal(t, "inspection done", *got.Reason)
	})
}

func TestDisqualifyRequest_Validate(t *testing.T) {
	assert.NoError(t, (&DisqualifyRequest{Reason: "out of service area"}).Validate())
	assert.Error(t, (&DisqualifyRequest{Reason: "   "}).Validate())
	assert.Error(t, (&DisqualifyRequest{}).Validate())
}

func TestAssignRequest(t *testing.T) {
	assignee := uuid.Must(uuid.NewV7())

	req := AssignRequest{AssignedTo: strPtr(assignee.String())}
	require.NoError(t, req.Validate())
	assert.Equal(t, assignee, *req.Assignee())

	unassign := AssignRequest{}
	require.NoError(t, unassign.Validate())
	assert.Nil(t, unassign.Assignee())

	assert.Error(t, (&AssignRequest{AssignedTo: strPtr("nobody")}).Validate())
}

func TestRuleRequest(t *testing.T) {
	t.Run("ValidateCreate", func(t *testing.T) {
		req := RuleRequest{
			FromStatus:            "contingency_signed",
			ToStatus:              "project",
			RequiredRoles:         []string{"office", "manager"},
			RequiresApproval:      true,
			MinTimeInStageSeconds: 3600,
		}
		assert.NoError(t, req.ValidateCreate())
	})

	t.Run("ValidateCreate_BadRole", func(t *testing.T) {
		req := RuleRequest{FromStatus: "lead", ToStatus: "legal_review", RequiredRoles: []string{"Sales Rep"}}
		err := req.ValidateCreate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required_roles")
	})

	t.Run("ValidateCreate_MissingStatus", func(t *testing.T) {
		req := RuleRequest{ToStatus: "legal_review"}
		assert.Error(t, req.ValidateCreate())
	})

	t.Run("ValidateUpdate_IgnoresStatuses", func(t *testing.T) {
		req := RuleRequest{RequiresReason: true}
		assert.NoError(t, req.ValidateUpdate())
	})

	t.Run("ToInput", func(t *testing.T) {
		active := false
		minValue := int64(100)
		req := RuleRequest{
			RequiredRoles:         []string{"field_tech"},
			RequiresReason:        true,
			MinTimeInStageSeconds: 90,
			MinValueCents:         &minValue,
			Active:                &active,
		}

		input := req.ToInput()

		assert.Equal(t, pipelineDomain.Roles{tenant.RoleFieldTech}, input.RequiredRoles)
		assert.True(t, input.RequiresReason)
		assert.Equal(t, 90*time.Second, input.MinTimeInStage)
		assert.Equal(t, int64(100), *input.MinValueCents)
		assert.False(t, *input.Active)
	})
}

func TestMapTransitionResultToResponse(t *testing.T) {
	t.Run("Rejected", func(t *testing.T) {
		result := pipelineDomain.Rejected(pipelineDomain.RejectReasonRequired, "a reason is required")

		response := MapTransitionResultToResponse(result)

		assert.Equal(t, "rejected", response.Outcome)
		require.NotNil(t, response.Rejection)
		assert.Equal(t, "reason_required", response.Rejection.Code)
		assert.Nil(t, response.Entry)
	})

	t.Run("Applied", func(t *testing.T) {
		now := time.Now().UTC()
		from := pipelineDomain.StatusLead
		entry := &pipelineDomain.Entry{ID: uuid.Must(uuid.NewV7()), Status: pipelineDomain.StatusLegalReview}
		history := &pipelineDomain.TransitionHistory{
			ID: uuid.Must(uuid.NewV7()), FromStatus: &from, ToStatus: pipelineDomain.StatusLegalReview, CreatedAt: now,
		}
		eventID := uuid.Must(uuid.NewV7())

		response := MapTransitionResultToResponse(pipelineDomain.Applied(entry, history, eventID))

		assert.Equal(t, "applied", response.Outcome)
		assert.Equal(t, "legal_review", response.Entry.Status)
		assert.Equal(t, "lead", *response.History.FromStatus)
		assert.Equal(t, eventID.String(), *response.EventID)
		assert.Nil(t, response.Rejection)
	})
}

func TestQualificationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     QualificationRequest
		wantErr string
	}{
		{"empty", QualificationRequest{}, ""},
		{"source code", QualificationRequest{Source: "door_knock"}, ""},
		{"source free text", QualificationRequest{Source: "Door Knock"}, "source"},
		{"padded tag", QualificationRequest{Tags: []string{" hail"}}, "tags"},
		{"blank tag", QualificationRequest{Tags: []string{"  "}}, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
