// Package store defines the Ticket/Audit Store contract shared by the Issuer
// and the Arbiter.
//
// Implementations must return errors from internal/status for the conditions
// the contract names (ErrEventNotFound, ErrTicketNotFound,
// ErrUniquenessViolation, ErrPreconditionFailed). Any other error is treated
// by callers as a transient infrastructure failure.
package store

import (
	"context"
	"time"

	"ticket-checkin/internal/status"
	"ticket-checkin/models"
)

// DefaultScanLogLimit bounds ListScanLogs when the filter sets no limit.
const DefaultScanLogLimit = 200

// ConditionalUpdate is the single compare-and-set primitive on a ticket's
// status. The write applies only if the stored status still equals Expected
// at the moment of the write. Log, when set, is appended in the same atomic
// unit: either both the transition and the entry are durable, or neither is.
type ConditionalUpdate struct {
	TicketID    string
	EventID     string
	Expected    models.TicketStatus
	Next        models.TicketStatus
	CheckedInAt *time.Time
	Log         *models.ScanLog
}

type ScanLogFilter struct {
	EventID  string
	TicketID string
	Limit    int
}

type EventStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]*models.Event, error)
}

type TicketStore interface {
	// CreateTicket returns status.ErrUniquenessViolation when the id or the
	// secret is already taken. Nothing is written in that case.
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketBySecret(ctx context.Context, secret string) (*models.Ticket, error)
	ListTickets(ctx context.Context, eventID string) ([]*models.Ticket, error)
	CountTickets(ctx context.Context, eventID string) (*models.EventStats, error)

	// ConditionalUpdateStatus returns the updated ticket, or
	// status.ErrPreconditionFailed when the stored status differs from
	// Expected (no write happened).
	ConditionalUpdateStatus(ctx context.Context, update ConditionalUpdate) (*models.Ticket, error)

	// OverrideStatus is an unconditional last-writer-wins transition used
	// by administrative actions. Only issued and revoked are accepted as
	// next; CheckedInAt is always cleared.
	OverrideStatus(ctx context.Context, ticketID string, next models.TicketStatus) (*models.Ticket, error)
}

type AuditStore interface {
	AppendScanLog(ctx context.Context, entry *models.ScanLog) error
	ListScanLogs(ctx context.Context, filter ScanLogFilter) ([]*models.ScanLog, error)
}

// Store is constructed once at process start and shared by reference.
type Store interface {
	EventStore
	TicketStore
	AuditStore
	Close() error
}

// CheckOverride rejects administrative transitions into checked_in, which
// only the Arbiter's conditional update may perform.
func CheckOverride(next models.TicketStatus) error {
	if next != models.TicketIssued && next != models.TicketRevoked {
		return status.Invalid("cannot override status to %q", next)
	}
	return nil
}
