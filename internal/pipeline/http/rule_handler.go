package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roofline/crmcore/internal/httputil"
	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/pipeline/http/dto"
	pipelineUseCase "github.com/roofline/crmcore/internal/pipeline/usecase"
	"github.com/roofline/crmcore/internal/tenant"
	customValidation "github.com/roofline/crmcore/internal/validation"
)

// RuleHandler handles tenant transition rule administration.
type RuleHandler struct {
	useCase pipelineUseCase.RuleUseCase
	logger  *slog.Logger
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(useCase pipelineUseCase.RuleUseCase, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{
		useCase: useCase,
		logger:  logger,
	}
}

// ListHandler lists the tenant's rules.
// GET /v1/pipeline/rules?active_only=true
func (h *RuleHandler) ListHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	activeOnly, ok := parseBoolQuery(c, "active_only", h.logger)
	if !ok {
		return
	}

	rules, err := h.useCase.ListRules(c.Request.Context(), tc.TenantID, activeOnly)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRulesToListResponse(rules))
}

// CreateHandler creates a rule for a status pair.
// POST /v1/pipeline/rules
func (h *RuleHandler) CreateHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	var req dto.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.ValidateCreate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	rule, err := h.useCase.CreateRule(
		c.Request.Context(),
		tc.TenantID,
		tc.Actor,
		pipelineDomain.Status(req.FromStatus),
		pipelineDomain.Status(req.ToStatus),
		req.ToInput(),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapRuleToResponse(rule))
}

// UpdateHandler replaces the conditions of a rule.
// PUT /v1/pipeline/rules/:id
func (h *RuleHandler) UpdateHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	ruleID, ok := parseUUIDParam(c, "id", "rule", h.logger)
	if !ok {
		return
	}

	var req dto.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.ValidateUpdate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	rule, err := h.useCase.UpdateRule(c.Request.Context(), tc.TenantID, tc.Actor, ruleID, req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRuleToResponse(rule))
}

// DeactivateHandler deactivates a rule.
// DELETE /v1/pipeline/rules/:id
func (h *RuleHandler) DeactivateHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	ruleID, ok := parseUUIDParam(c, "id", "rule", h.logger)
	if !ok {
		return
	}

	rule, err := h.useCase.DeactivateRule(c.Request.Context(), tc.TenantID, tc.Actor, ruleID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRuleToResponse(rule))
}
