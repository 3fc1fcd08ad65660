package models

import (
	"time"
)

type ScanResult string

const (
	ScanSuccess   ScanResult = "success"
	ScanDuplicate ScanResult = "duplicate"
	ScanRevoked   ScanResult = "revoked"
	ScanInvalid   ScanResult = "invalid"
)

func (r ScanResult) Valid() bool {
	switch r {
	case ScanSuccess, ScanDuplicate, ScanRevoked, ScanInvalid:
		return true
	}
	return false
}

// ScanLog is an append-only record of one verification attempt. TicketID and
// EventID are empty when the scanned secret matched no ticket.
type ScanLog struct {
	ID           string     `json:"id"`
	TicketID     string     `json:"ticket_id,omitempty"`
	EventID      string     `json:"event_id,omitempty"`
	ScannerID    string     `json:"scanner_id,omitempty"`
	Result       ScanResult `json:"result"`
	ScannedAt    time.Time  `json:"scanned_at"`
	AttendeeName string     `json:"attendee_name,omitempty"`
}

// VerificationOutcome is what a scanner sees for one Verify call.
type VerificationOutcome struct {
	Valid  bool       `json:"valid"`
	Reason ScanResult `json:"reason,omitempty"`
	Ticket *Ticket    `json:"ticket,omitempty"`
}

// Result maps the outcome onto the audit log result it was recorded with.
func (o *VerificationOutcome) Result() ScanResult {
	if o.Valid {
		return ScanSuccess
	}
	return o.Reason
}
