package models

import (
	"time"
)

type Event struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Venue       string     `json:"venue,omitempty"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EventStats counts an event's tickets by status.
type EventStats struct {
	Total     int `json:"total"`
	Issued    int `json:"issued"`
	CheckedIn int `json:"checked_in"`
	Revoked   int `json:"revoked"`
}

// Add counts n tickets in the given status.
func (s *EventStats) Add(status TicketStatus, n int) {
	switch status {
	case TicketIssued:
		s.Issued += n
	case TicketCheckedIn:
		s.CheckedIn += n
	case TicketRevoked:
		s.Revoked += n
	default:
		return
	}
	s.Total += n
}
