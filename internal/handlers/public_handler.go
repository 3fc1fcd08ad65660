package handlers

import (
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"ticket-checkin/internal/services"
)

// PublicHandler serves the unauthenticated registration page.
type PublicHandler struct {
	events EventManager
	issuer TicketIssuer
}

func NewPublicHandler(events EventManager, issuer TicketIssuer) *PublicHandler {
	return &PublicHandler{events: events, issuer: issuer}
}

type publicEvent struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Venue       string     `json:"venue,omitempty"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

type registration struct {
	TicketID     string `json:"ticket_id"`
	EventID      string `json:"event_id"`
	AttendeeName string `json:"attendee_name"`
	Secret       string `json:"secret"`
}

// GetEvent - GET /api/v1/public/events/{eventId}
func (h *PublicHandler) GetEvent(e *core.RequestEvent) error {
	event, err := h.events.Get(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, publicEvent{
		ID:          event.ID,
		Name:        event.Name,
		Description: event.Description,
		Venue:       event.Venue,
		StartsAt:    event.StartsAt,
		EndsAt:      event.EndsAt,
	})
}

// Register - POST /api/v1/public/tickets
func (h *PublicHandler) Register(e *core.RequestEvent) error {
	var req services.IssueRequest
	if err := bindBody(e, &req); err != nil {
		return err
	}

	ticket, err := h.issuer.Issue(e.Request.Context(), req)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusCreated, registration{
		TicketID:     ticket.ID,
		EventID:      ticket.EventID,
		AttendeeName: ticket.AttendeeName,
		Secret:       ticket.Secret,
	})
}
