// Package http provides the operator HTTP API of the outbox ledger.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/httputil"
	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
	"github.com/roofline/crmcore/internal/outbox/http/dto"
	outboxUseCase "github.com/roofline/crmcore/internal/outbox/usecase"
	"github.com/roofline/crmcore/internal/tenant"
)

// OutboxHandler handles operator requests on the tenant's outbox events.
// Every endpoint requires an administering role.
type OutboxHandler struct {
	useCase outboxUseCase.OutboxUseCase
	logger  *slog.Logger
}

// NewOutboxHandler creates a new OutboxHandler.
func NewOutboxHandler(useCase outboxUseCase.OutboxUseCase, logger *slog.Logger) *OutboxHandler {
	return &OutboxHandler{
		useCase: useCase,
		logger:  logger,
	}
}

// ListHandler lists the tenant's events, optionally filtered by status.
// GET /v1/outbox/events?status=failed&offset=0&limit=50
func (h *OutboxHandler) ListHandler(c *gin.Context) {
	tc, ok := h.operator(c)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	filter := outboxDomain.ListFilter{Offset: offset, Limit: limit}
	if raw := c.Query("status"); raw != "" {
		status := outboxDomain.Status(raw)
		if !status.Valid() {
			httputil.HandleValidationErrorGin(c, fmt.Errorf("unknown outbox status %q", raw), h.logger)
			return
		}
		filter.Status = &status
	}

	events, err := h.useCase.List(c.Request.Context(), tc.TenantID, filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEventsToListResponse(events))
}

// GetHandler returns one event.
// GET /v1/outbox/events/:id
func (h *OutboxHandler) GetHandler(c *gin.Context) {
	tc, ok := h.operator(c)
	if !ok {
		return
	}

	eventID, ok := h.parseID(c)
	if !ok {
		return
	}

	event, err := h.useCase.Get(c.Request.Context(), tc.TenantID, eventID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEventToResponse(event))
}

// CancelHandler cancels a pending or failed event.
// POST /v1/outbox/events/:id/cancel
func (h *OutboxHandler) CancelHandler(c *gin.Context) {
	tc, ok := h.operator(c)
	if !ok {
		return
	}

	eventID, ok := h.parseID(c)
	if !ok {
		return
	}

	event, err := h.useCase.Cancel(c.Request.Context(), tc.TenantID, eventID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEventToResponse(event))
}

func (h *OutboxHandler) operator(c *gin.Context) (*tenant.Context, bool) {
	tc, ok := tenant.MustFromGin(c, h.logger)
	if !ok {
		return nil, false
	}
	if !tc.Actor.Role.CanAdminister() {
		httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrForbidden, "outbox operations require an admin role"), h.logger)
		return nil, false
	}
	return tc, true
}

func (h *OutboxHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid event ID format: must be a valid UUID"), h.logger)
		return uuid.Nil, false
	}
	return eventID, true
}
