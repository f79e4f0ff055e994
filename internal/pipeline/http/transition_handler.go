package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roofline/crmcore/internal/httputil"
	"github.com/roofline/crmcore/internal/pipeline/http/dto"
	pipelineUseCase "github.com/roofline/crmcore/internal/pipeline/usecase"
	"github.com/roofline/crmcore/internal/tenant"
)

// TransitionHandler handles status transitions and the transition history.
type TransitionHandler struct {
	useCase pipelineUseCase.PipelineUseCase
	logger  *slog.Logger
}

// NewTransitionHandler creates a new TransitionHandler.
func NewTransitionHandler(useCase pipelineUseCase.PipelineUseCase, logger *slog.Logger) *TransitionHandler {
	return &TransitionHandler{
		useCase: useCase,
		logger:  logger,
	}
}

// AttemptHandler attempts to move an entry to another status.
// POST /v1/pipeline/entries/:id/transitions
func (h *TransitionHandler) AttemptHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	entryID, ok := parseUUIDParam(c, "id", "entry", h.logger)
	if !ok {
		return
	}

	var req dto.TransitionRequest
	if !bindJSON(c, &req, h.logger) {
		return
	}

	result, err := h.useCase.AttemptTransition(c.Request.Context(), tc.TenantID, entryID, req.ToDomain(tc.Actor))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	writeTransition(c, result)
}

// HistoryHandler lists the transitions of an entry, oldest first.
// GET /v1/pipeline/entries/:id/history?offset=0&limit=50
func (h *TransitionHandler) HistoryHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	entryID, ok := parseUUIDParam(c, "id", "entry", h.logger)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	history, err := h.useCase.ListHistory(c.Request.Context(), tc.TenantID, entryID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapHistoryToListResponse(history))
}
