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

// EntryHandler handles lead intake and entry maintenance.
type EntryHandler struct {
	useCase pipelineUseCase.PipelineUseCase
	logger  *slog.Logger
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(useCase pipelineUseCase.PipelineUseCase, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{
		useCase: useCase,
		logger:  logger,
	}
}

// CreateHandler creates a lead.
// POST /v1/pipeline/entries
func (h *EntryHandler) CreateHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	var req dto.CreateEntryRequest
	if !bindJSON(c, &req, h.logger) {
		return
	}

	entry, err := h.useCase.CreateEntry(c.Request.Context(), tc.TenantID, tc.Actor, req.ToInput(tc.LocationID))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapEntryToResponse(entry))
}

// GetHandler returns one entry, soft-deleted entries included.
// GET /v1/pipeline/entries/:id
func (h *EntryHandler) GetHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	entryID, ok := parseUUIDParam(c, "id", "entry", h.logger)
	if !ok {
		return
	}

	entry, err := h.useCase.GetEntry(c.Request.Context(), tc.TenantID, entryID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEntryToResponse(entry))
}

// ListHandler lists entries.
// GET /v1/pipeline/entries?status=lead&assigned_to=<uuid>&include_deleted=true&offset=0&limit=50
func (h *EntryHandler) ListHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	filter := pipelineDomain.ListEntriesFilter{Offset: offset, Limit: limit}
	if raw := c.Query("status"); raw != "" {
		status := pipelineDomain.Status(raw)
		if !status.Valid() {
			httputil.HandleValidationErrorGin(c, fmt.Errorf("unknown pipeline status %q", raw), h.logger)
			return
		}
		filter.Status = &status
	}
	if filter.AssignedTo, ok = parseUUIDQuery(c, "assigned_to", h.logger); !ok {
		return
	}
	if filter.IncludeDeleted, ok = parseBoolQuery(c, "include_deleted", h.logger); !ok {
		return
	}

	entries, err := h.useCase.ListEntries(c.Request.Context(), tc.TenantID, filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEntriesToListResponse(entries))
}

// UpdateHandler changes the estimated value or qualification of an entry.
// PATCH /v1/pipeline/entries/:id
func (h *EntryHandler) UpdateHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	entryID, ok := parseUUIDParam(c, "id", "entry", h.logger)
	if !ok {
		return
	}

	var req dto.UpdateEntryRequest
	if !bindJSON(c, &req, h.logger) {
		return
	}

	entry, err := h.useCase.UpdateEntry(c.Request.Context(), tc.TenantID, tc.Actor, entryID, req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEntryToResponse(entry))
}

// AssignHandler sets or clears the entry owner.
// PUT /v1/pipeline/entries/:id/assignee
func (h *EntryHandler) AssignHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	entryID, ok := parseUUIDParam(c, "id", "entry", h.logger)
	if !ok {
		return
	}

	var req dto.AssignRequest
	if !bindJSON(c, &req, h.logger) {
		return
	}

	entry, err := h.useCase.Assign(c.Request.Context(), tc.TenantID, tc.Actor, entryID, req.Assignee())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEntryToResponse(entry))
}

// DisqualifyHandler soft-deletes an entry.
// POST /v1/pipeline/entries/:id/disqualify
func (h *EntryHandler) DisqualifyHandler(c *gin.Context) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return
	}

	entryID, ok := parseUUIDParam(c, "id", "entry", h.logger)
	if !ok {
		return
	}

	var req dto.DisqualifyRequest
	if !bindJSON(c, &req, h.logger) {
		return
	}

	entry, err := h.useCase.Disqualify(c.Request.Context(), tc.TenantID, tc.Actor, entryID, req.Reason)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEntryToResponse(entry))
}
