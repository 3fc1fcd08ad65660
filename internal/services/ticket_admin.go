package services

import (
	"context"
	"strings"

	"ticket-checkin/internal/status"
	"ticket-checkin/models"
)

const (
	ActionRevoke  = "revoke"
	ActionRestore = "restore"
)

type AdminStore interface {
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	ListTickets(ctx context.Context, eventID string) ([]*models.Ticket, error)
	OverrideStatus(ctx context.Context, ticketID string, next models.TicketStatus) (*models.Ticket, error)
}

// TicketAdmin applies operator overrides. They are last-writer-wins and
// leave no scan log entry.
type TicketAdmin struct {
	deps
	store AdminStore
}

func NewTicketAdmin(store AdminStore, opts ...Option) *TicketAdmin {
	return &TicketAdmin{deps: newDeps(opts), store: store}
}

func (s *TicketAdmin) Get(ctx context.Context, id string) (*models.Ticket, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, status.Invalid("ticket id is required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, status.Unavailable(err)
	}
	return t, nil
}

func (s *TicketAdmin) List(ctx context.Context, eventID string) ([]*models.Ticket, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tickets, err := s.store.ListTickets(ctx, strings.TrimSpace(eventID))
	if err != nil {
		return nil, status.Unavailable(err)
	}
	return tickets, nil
}

// Revoke blocks a ticket from any state. Revoking a revoked ticket is a no-op.
func (s *TicketAdmin) Revoke(ctx context.Context, id string) (*models.Ticket, error) {
	return s.override(ctx, id, models.TicketRevoked)
}

// Restore returns a revoked or checked-in ticket to issued, clearing its
// check-in time. Restoring an issued ticket is a no-op.
func (s *TicketAdmin) Restore(ctx context.Context, id string) (*models.Ticket, error) {
	return s.override(ctx, id, models.TicketIssued)
}

// Apply dispatches a named administrative action.
func (s *TicketAdmin) Apply(ctx context.Context, id, action string) (*models.Ticket, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionRevoke:
		return s.Revoke(ctx, id)
	case ActionRestore:
		return s.Restore(ctx, id)
	}
	return nil, status.Invalid("unknown action %q", action)
}

func (s *TicketAdmin) override(ctx context.Context, id string, next models.TicketStatus) (*models.Ticket, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == next {
		return current, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	updated, err := s.store.OverrideStatus(ctx, current.ID, next)
	if err != nil {
		s.logger.Error("Failed to override ticket status", "error", err, "ticket_id", current.ID, "status", next)
		return nil, status.Unavailable(err)
	}

	s.logger.Info("Ticket status overridden", "ticket_id", updated.ID, "from", current.Status, "to", updated.Status)
	return updated, nil
}
