package dto

import (
	"time"

	"github.com/google/uuid"

	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
)

// QualificationResponse represents lead qualification details.
type QualificationResponse struct {
	Source string   `json:"source,omitempty"`
	Score  *int     `json:"score,omitempty"`
	Notes  string   `json:"notes,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// EntryResponse represents a pipeline entry in API responses.
type EntryResponse struct {
	ID                  string                `json:"id"`
	ContactID           string                `json:"contact_id"`
	LocationID          *string               `json:"location_id,omitempty"`
	Status              string                `json:"status"`
	StatusEnteredAt     time.Time             `json:"status_entered_at"`
	AssignedTo          *string               `json:"assigned_to,omitempty"`
	ApprovalStatus      string                `json:"approval_status"`
	EstimatedValueCents *int64                `json:"estimated_value_cents,omitempty"`
	Qualification       QualificationResponse `json:"qualification"`
	Deleted             bool                  `json:"deleted"`
	DeletedAt           *time.Time            `json:"deleted_at,omitempty"`
	DeletionReason      *string               `json:"deletion_reason,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// ListEntriesResponse represents a page of pipeline entries.
type ListEntriesResponse struct {
	Data []EntryResponse `json:"data"`
}

// HistoryResponse represents one transition history row.
type HistoryResponse struct {
	ID                string    `json:"id"`
	FromStatus        *string   `json:"from_status"`
	ToStatus          string    `json:"to_status"`
	TransitionedBy    string    `json:"transitioned_by"`
	ActorRole         string    `json:"actor_role"`
	Reason            *string   `json:"reason,omitempty"`
	RequiresApproval  bool      `json:"requires_approval"`
	IsBackward        bool      `json:"is_backward"`
	ApprovalRequestID *string   `json:"approval_request_id,omitempty"`
	ApprovedBy        *string   `json:"approved_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ListHistoryResponse represents a page of an entry's history.
type ListHistoryResponse struct {
	Data []HistoryResponse `json:"data"`
}

// ApprovalResponse represents an approval request.
type ApprovalResponse struct {
	ID            string     `json:"id"`
	EntryID       string     `json:"entry_id"`
	FromStatus    string     `json:"from_status"`
	ToStatus      string     `json:"to_status"`
	RequestedBy   string     `json:"requested_by"`
	RequestedRole string     `json:"requested_role"`
	Reason        *string    `json:"reason,omitempty"`
	Status        string     `json:"status"`
	DecidedBy     *string    `json:"decided_by,omitempty"`
	DecisionNote  *string    `json:"decision_note,omitempty"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ListApprovalsResponse represents a page of approval requests.
type ListApprovalsResponse struct {
	Data []ApprovalResponse `json:"data"`
}

// RejectionResponse explains why a transition was rejected.
type RejectionResponse struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// TransitionResponse represents the outcome of a transition attempt.
type TransitionResponse struct {
	Outcome   string             `json:"outcome"`
	Entry     *EntryResponse     `json:"entry,omitempty"`
	History   *HistoryResponse   `json:"history,omitempty"`
	EventID   *string            `json:"event_id,omitempty"`
	Approval  *ApprovalResponse  `json:"approval,omitempty"`
	Rejection *RejectionResponse `json:"rejection,omitempty"`
}

// RuleResponse represents a transition rule.
type RuleResponse struct {
	ID                    string    `json:"id"`
	FromStatus            string    `json:"from_status"`
	ToStatus              string    `json:"to_status"`
	RequiredRoles         []string  `json:"required_roles"`
	RequiresApproval      bool      `json:"requires_approval"`
	RequiresReason        bool      `json:"requires_reason"`
	MinTimeInStageSeconds int64     `json:"min_time_in_stage_seconds"`
	MinValueCents         *int64    `json:"min_value_cents,omitempty"`
	MaxValueCents         *int64    `json:"max_value_cents,omitempty"`
	Active                bool      `json:"active"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ListRulesResponse represents the tenant's rule set.
type ListRulesResponse struct {
	Data []RuleResponse `json:"data"`
}

// MapEntryToResponse converts a domain entry to an API response.
func MapEntryToResponse(entry *pipelineDomain.Entry) EntryResponse {
	return EntryResponse{
		ID:                  entry.ID.String(),
		ContactID:           entry.ContactID.String(),
		LocationID:          uuidString(entry.LocationID),
		Status:              string(entry.Status),
		StatusEnteredAt:     entry.StatusEnteredAt,
		AssignedTo:          uuidString(entry.AssignedTo),
		ApprovalStatus:      string(entry.ApprovalStatus),
		EstimatedValueCents: entry.EstimatedValueCents,
		Qualification: QualificationResponse{
			Source: entry.Qualification.Source,
			Score:  entry.Qualification.Score,
			Notes:  entry.Qualification.Notes,
			Tags:   entry.Qualification.Tags,
		},
		Deleted:        entry.IsDeleted(),
		DeletedAt:      entry.DeletedAt,
		DeletionReason: entry.DeletionReason,
		CreatedAt:      entry.CreatedAt,
		UpdatedAt:      entry.UpdatedAt,
	}
}

// MapEntriesToListResponse converts domain entries to a list response.
func MapEntriesToListResponse(entries []*pipelineDomain.Entry) ListEntriesResponse {
	data := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		data = append(data, MapEntryToResponse(entry))
	}
	return ListEntriesResponse{Data: data}
}

// MapHistoryToResponse converts a history row to an API response.
func MapHistoryToResponse(history *pipelineDomain.TransitionHistory) HistoryResponse {
	response := HistoryResponse{
		ID:                history.ID.String(),
		ToStatus:          string(history.ToStatus),
		TransitionedBy:    history.TransitionedBy.String(),
		ActorRole:         string(history.ActorRole),
		Reason:            history.Reason,
		RequiresApproval:  history.RequiresApproval,
		IsBackward:        history.IsBackward,
		ApprovalRequestID: uuidString(history.ApprovalRequestID),
		ApprovedBy:        uuidString(history.ApprovedBy),
		CreatedAt:         history.CreatedAt,
	}
	if history.FromStatus != nil {
		from := string(*history.FromStatus)
		response.FromStatus = &from
	}
	return response
}

// MapHistoryToListResponse converts history rows to a list response.
func MapHistoryToListResponse(rows []*pipelineDomain.TransitionHistory) ListHistoryResponse {
	data := make([]HistoryResponse, 0, len(rows))
	for _, row := range rows {
		data = append(data, MapHistoryToResponse(row))
	}
	return ListHistoryResponse{Data: data}
}

// MapApprovalToResponse converts an approval request to an API response.
func MapApprovalToResponse(approval *pipelineDomain.ApprovalRequest) ApprovalResponse {
	return ApprovalResponse{
		ID:            approval.ID.String(),
		EntryID:       approval.EntryID.String(),
		FromStatus:    string(approval.FromStatus),
		ToStatus:      string(approval.ToStatus),
		RequestedBy:   approval.RequestedBy.String(),
		RequestedRole: string(approval.RequestedRole),
		Reason:        approval.Reason,
		Status:        string(approval.Status),
		DecidedBy:     uuidString(approval.DecidedBy),
		DecisionNote:  approval.DecisionNote,
		DecidedAt:     approval.DecidedAt,
		CreatedAt:     approval.CreatedAt,
		UpdatedAt:     approval.UpdatedAt,
	}
}

// MapApprovalsToListResponse converts approval requests to a list response.
func MapApprovalsToListResponse(approvals []*pipelineDomain.ApprovalRequest) ListApprovalsResponse {
	data := make([]ApprovalResponse, 0, len(approvals))
	for _, approval := range approvals {
		data = append(data, MapApprovalToResponse(approval))
	}
	return ListApprovalsResponse{Data: data}
}

// MapTransitionResultToResponse converts a transition outcome to an API response.
func MapTransitionResultToResponse(result *pipelineDomain.TransitionResult) TransitionResponse {
	response := TransitionResponse{
		Outcome: string(result.Outcome),
		EventID: uuidString(result.EventID),
	}
	if result.Entry != nil {
		entry := MapEntryToResponse(result.Entry)
		response.Entry = &entry
	}
	if result.History != nil {
		history := MapHistoryToResponse(result.History)
		response.History = &history
	}
	if result.Approval != nil {
		approval := MapApprovalToResponse(result.Approval)
		response.Approval = &approval
	}
	if result.Rejection != nil {
		response.Rejection = &RejectionResponse{
			Code:   string(result.Rejection.Code),
			Reason: result.Rejection.Reason,
		}
	}
	return response
}

// MapRuleToResponse converts a transition rule to an API response.
func MapRuleToResponse(rule *pipelineDomain.TransitionRule) RuleResponse {
	roles := make([]string, 0, len(rule.RequiredRoles))
	for _, role := range rule.RequiredRoles {
		roles = append(roles, string(role))
	}
	return RuleResponse{
		ID:                    rule.ID.String(),
		FromStatus:            string(rule.FromStatus),
		ToStatus:              string(rule.ToStatus),
		RequiredRoles:         roles,
		RequiresApproval:      rule.RequiresApproval,
		RequiresReason:        rule.RequiresReason,
		MinTimeInStageSeconds: int64(rule.MinTimeInStage / time.Second),
		MinValueCents:         rule.MinValueCents,
		MaxValueCents:         rule.MaxValueCents,
		Active:                rule.Active,
		CreatedAt:             rule.CreatedAt,
		UpdatedAt:             rule.UpdatedAt,
	}
}

// MapRulesToListResponse converts rules to a list response.
func MapRulesToListResponse(rules []*pipelineDomain.TransitionRule) ListRulesResponse {
	data := make([]RuleResponse, 0, len(rules))
	for _, rule := range rules {
		data = append(data, MapRuleToResponse(rule))
	}
	return ListRulesResponse{Data: data}
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
