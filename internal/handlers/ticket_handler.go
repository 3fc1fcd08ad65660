package handlers

import (
	"context"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticket-checkin/internal/services"
	"ticket-checkin/models"
)

type TicketIssuer interface {
	Issue(ctx context.Context, req services.IssueRequest) (*models.Ticket, error)
}

type TicketManager interface {
	Get(ctx context.Context, id string) (*models.Ticket, error)
	List(ctx context.Context, eventID string) ([]*models.Ticket, error)
	Apply(ctx context.Context, id, action string) (*models.Ticket, error)
}

type TicketHandler struct {
	issuer  TicketIssuer
	manager TicketManager
}

func NewTicketHandler(issuer TicketIssuer, manager TicketManager) *TicketHandler {
	return &TicketHandler{issuer: issuer, manager: manager}
}

// IssueTicket - POST /api/v1/tickets
func (h *TicketHandler) IssueTicket(e *core.RequestEvent) error {
	var req services.IssueRequest
	if err := bindBody(e, &req); err != nil {
		return err
	}

	ticket, err := h.issuer.Issue(e.Request.Context(), req)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusCreated, ticket)
}

// ListTickets - GET /api/v1/tickets?event_id=
func (h *TicketHandler) ListTickets(e *core.RequestEvent) error {
	tickets, err := h.manager.List(e.Request.Context(), e.Request.URL.Query().Get("event_id"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"items": tickets,
		"total": len(tickets),
	})
}

func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	ticket, err := h.manager.Get(e.Request.Context(), e.Request.PathValue("ticketId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, ticket)
}

type updateTicketRequest struct {
	Action string `json:"action"`
}

// UpdateTicket - PATCH /api/v1/tickets/{ticketId} {"action": "revoke"|"restore"}
func (h *TicketHandler) UpdateTicket(e *core.RequestEvent) error {
	var req updateTicketRequest
	if err := bindBody(e, &req); err != nil {
		return err
	}

	ticket, err := h.manager.Apply(e.Request.Context(), e.Request.PathValue("ticketId"), req.Action)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, ticket)
}
