package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roofline/crmcore/internal/httputil"
	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/pipeline/http/dto"
	pipelineUseCase "github.com/roofline/crmcore/internal/pipeline/usecase"
	"github.com/roofline/crmcore/internal/tenant"
)

// ApprovalHandler handles the approval queue.
type ApprovalHandler struct {
	useCase pipelineUseCase.PipelineUseCase
	logger  *slog.Logger
}

// NewApprovalHandler creates a new ApprovalHandler.
func NewApprovalHandler(useCase pipelineUseCase.PipelineUseCase, logger *slog.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		useCase: useCase,
		logger:  logger,
	}
}

// ListHandler lists approval requests.
// GET /v1/pipeline/approvals?status=pending&entry_id=<uuid>&offset=0&limit=50
func (h *ApprovalHandler) ListHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	filter := pipelineDomain.ListApprovalsFilter{Offset: offset, Limit: limit}
	if raw := c.Query("status"); raw != "" {
		status := pipelineDomain.ApprovalStatus(raw)
		if !status.Valid() || status == pipelineDomain.ApprovalNone {
			httputil.HandleValidationErrorGin(c, fmt.Errorf("unknown approval status %q", raw), h.logger)
			return
		}
		filter.Status = &status
	}
	if filter.EntryID, ok = parseUUIDQuery(c, "entry_id", h.logger); !ok {
		return
	}

	approvals, err := h.useCase.ListApprovals(c.Request.Context(), tc.TenantID, filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapApprovalsToListResponse(approvals))
}

// GetHandler returns one approval request.
// GET /v1/pipeline/approvals/:id
func (h *ApprovalHandler) GetHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	approvalID, ok := parseUUIDParam(c, "id", "approval", h.logger)
	if !ok {
		return
	}

	approval, err := h.useCase.GetApproval(c.Request.Context(), tc.TenantID, approvalID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapApprovalToResponse(approval))
}

// ApproveHandler approves a pending request and applies the transition.
// POST /v1/pipeline/approvals/:id/approve
func (h *ApprovalHandler) ApproveHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	approvalID, ok := parseUUIDParam(c, "id", "approval", h.logger)
	if !ok {
		return
	}

	var req dto.DecisionRequest
	if !bindOptionalJSON(c, &req, h.logger) {
		return
	}

	result, err := h.useCase.Approve(c.Request.Context(), tc.TenantID, tc.Actor, approvalID, req.Note)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	writeTransition(c, result)
}

// RejectHandler rejects a pending request.
// POST /v1/pipeline/approvals/:id/reject
func (h *ApprovalHandler) RejectHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	approvalID, ok := parseUUIDParam(c, "id", "approval", h.logger)
	if !ok {
		return
	}

	var req dto.DecisionRequest
	if !bindOptionalJSON(c, &req, h.logger) {
		return
	}

	approval, err := h.useCase.RejectApproval(c.Request.Context(), tc.TenantID, tc.Actor, approvalID, req.Note)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapApprovalToResponse(approval))
}
