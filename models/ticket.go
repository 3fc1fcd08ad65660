package models

import (
	"time"
)

type TicketStatus string

const (
	TicketIssued    TicketStatus = "issued"
	TicketCheckedIn TicketStatus = "checked_in"
	TicketRevoked   TicketStatus = "revoked"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketIssued, TicketCheckedIn, TicketRevoked:
		return true
	}
	return false
}

// Ticket is a single-use admission bound to one event. Secret is the bearer
// token encoded in the QR code; CheckedInAt is set iff Status is checked_in.
type Ticket struct {
	ID            string       `json:"id"`
	EventID       string       `json:"event_id"`
	AttendeeName  string       `json:"attendee_name"`
	AttendeeEmail string       `json:"attendee_email,omitempty"`
	Secret        string       `json:"secret"`
	Status        TicketStatus `json:"status"`
	CheckedInAt   *time.Time   `json:"checked_in_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Consistent reports whether the checked_in_at / status pairing holds.
func (t *Ticket) Consistent() bool {
	if !t.Status.Valid() {
		return false
	}
	return (t.Status == TicketCheckedIn) == (t.CheckedInAt != nil)
}

func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	if t.CheckedInAt != nil {
		at := *t.CheckedInAt
		c.CheckedInAt = &at
	}
	return &c
}
