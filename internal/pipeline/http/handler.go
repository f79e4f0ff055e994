// Package http provides the pipeline API: lead intake, status transitions,
// the approval queue and tenant rule administration.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/httputil"
	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/pipeline/http/dto"
	customValidation "github.com/roofline/crmcore/internal/validation"
)

type validatable interface {
	Validate() error
}

// bindJSON decodes and validates the request body, writing a 422 on failure.
func bindJSON(c *gin.Context, req validatable, logger *slog.Logger) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.HandleValidationErrorGin(c, err, logger)
		return false
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), logger)
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be omitted.
func bindOptionalJSON(c *gin.Context, req validatable, logger *slog.Logger) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, req, logger)
}

func parseUUIDParam(c *gin.Context, name, label string, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid %s ID format: must be a valid UUID", label),
			logger,
		)
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDQuery(c *gin.Context, name string, logger *slog.Logger) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("%s must be a valid UUID", name), logger)
		return nil, false
	}
	return &id, true
}

func parseBoolQuery(c *gin.Context, name string, logger *slog.Logger) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("%s must be a boolean", name), logger)
		return false, false
	}
	return value, true
}

// writeTransition renders a transition outcome: 200 when applied, 202 when it
// waits for approval and 422 with the rejection code otherwise.
func writeTransition(c *gin.Context, result *pipelineDomain.TransitionResult) {
	status := http.StatusOK
	switch result.Outcome {
	case pipelineDomain.OutcomePendingApproval:
		status = http.StatusAccepted
	case pipelineDomain.OutcomeRejected:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, dto.MapTransitionResultToResponse(result))
}
