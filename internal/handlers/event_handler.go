package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-checkin/internal/services"
	"ticket-checkin/models"
)

type EventManager interface {
	Create(ctx context.Context, req services.CreateEventRequest) (*models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context) ([]*models.Event, error)
	Stats(ctx context.Context, id string) (*models.EventStats, error)
	Logs(ctx context.Context, id string, limit int) ([]*models.ScanLog, error)
}

type EventHandler struct {
	events EventManager
}

func NewEventHandler(events EventManager) *EventHandler {
	return &EventHandler{events: events}
}

// CreateEvent - POST /api/v1/events
func (h *EventHandler) CreateEvent(e *core.RequestEvent) error {
	var req services.CreateEventRequest
	if err := bindBody(e, &req); err != nil {
		return err
	}

	event, err := h.events.Create(e.Request.Context(), req)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusCreated, event)
}

func (h *EventHandler) ListEvents(e *core.RequestEvent) error {
	events, err := h.events.List(e.Request.Context())
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"items": events,
		"total": len(events),
	})
}

func (h *EventHandler) GetEvent(e *core.RequestEvent) error {
	event, err := h.events.Get(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, event)
}

// GetStats - GET /api/v1/events/{eventId}/stats
func (h *EventHandler) GetStats(e *core.RequestEvent) error {
	stats, err := h.events.Stats(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, stats)
}

// GetLogs - GET /api/v1/events/{eventId}/logs?limit=
func (h *EventHandler) GetLogs(e *core.RequestEvent) error {
	limit := 0
	if raw := e.Request.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apis.NewBadRequestError("limit must be a non-negative integer", nil)
		}
		limit = n
	}

	logs, err := h.events.Logs(e.Request.Context(), e.Request.PathValue("eventId"), limit)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"items": logs,
		"total": len(logs),
	})
}
