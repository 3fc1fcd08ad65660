package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"ticket-checkin/models"
)

// Timestamps are stored as fixed-width UTC text so that lexical order is
// chronological order.
const timeLayout = "2006-01-02 15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlstore: bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type eventRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	Venue       sql.NullString `db:"venue"`
	StartsAt    string         `db:"starts_at"`
	EndsAt      sql.NullString `db:"ends_at"`
	CreatedAt   string         `db:"created_at"`
}

func (r *eventRow) model() (*models.Event, error) {
	startsAt, err := parseTime(r.StartsAt)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}

	e := &models.Event{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description.String,
		Venue:       r.Venue.String,
		StartsAt:    startsAt,
		CreatedAt:   createdAt,
	}
	if r.EndsAt.Valid {
		endsAt, err := parseTime(r.EndsAt.String)
		if err != nil {
			return nil, err
		}
		e.EndsAt = &endsAt
	}
	return e, nil
}

type ticketRow struct {
	ID            string         `db:"id"`
	EventID       string         `db:"event_id"`
	AttendeeName  string         `db:"attendee_name"`
	AttendeeEmail sql.NullString `db:"attendee_email"`
	Secret        string         `db:"secret"`
	Status        string         `db:"status"`
	CheckedInAt   sql.NullString `db:"checked_in_at"`
	CreatedAt     string         `db:"created_at"`
}

func (r *ticketRow) model() (*models.Ticket, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}

	t := &models.Ticket{
		ID:            r.ID,
		EventID:       r.EventID,
		AttendeeName:  r.AttendeeName,
		AttendeeEmail: r.AttendeeEmail.String,
		Secret:        r.Secret,
		Status:        models.TicketStatus(r.Status),
		CreatedAt:     createdAt,
	}
	if r.CheckedInAt.Valid {
		at, err := parseTime(r.CheckedInAt.String)
		if err != nil {
			return nil, err
		}
		t.CheckedInAt = &at
	}
	return t, nil
}

type scanLogRow struct {
	ID           string         `db:"id"`
	TicketID     sql.NullString `db:"ticket_id"`
	EventID      sql.NullString `db:"event_id"`
	ScannerID    sql.NullString `db:"scanner_id"`
	Result       string         `db:"result"`
	ScannedAt    string         `db:"scanned_at"`
	AttendeeName sql.NullString `db:"attendee_name"`
}

func (r *scanLogRow) model() (*models.ScanLog, error) {
	scannedAt, err := parseTime(r.ScannedAt)
	if err != nil {
		return nil, err
	}
	return &models.ScanLog{
		ID:           r.ID,
		TicketID:     r.TicketID.String,
		EventID:      r.EventID.String,
		ScannerID:    r.ScannerID.String,
		Result:       models.ScanResult(r.Result),
		ScannedAt:    scannedAt,
		AttendeeName: r.AttendeeName.String,
	}, nil
}

type statusCount struct {
	Status string `db:"status"`
	N      int    `db:"n"`
}
