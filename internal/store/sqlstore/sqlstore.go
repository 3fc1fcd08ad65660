// Package sqlstore implements the ticket store on SQLite through pocketbase/dbx.
//
// The issued -> checked_in transition is a single
// UPDATE ... WHERE id = ? AND status = ? statement; its affected row count is
// the compare-and-set result. The scan log entry for a successful transition
// is inserted in the same transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"

	"ticket-checkin/internal/status"
	"ticket-checkin/internal/store"
	"ticket-checkin/models"
)

// DB is satisfied by *dbx.DB.
type DB interface {
	dbx.Builder
	TransactionalContext(ctx context.Context, opts *sql.TxOptions, f func(*dbx.Tx) error) error
}

type Store struct {
	db    DB
	owned *dbx.DB
}

var _ store.Store = (*Store)(nil)

// New wraps a database owned by the caller, typically the pocketbase app's
// nonconcurrent data.db handle. The schema is expected to be migrated.
func New(db DB) *Store {
	return &Store{db: db}
}

// Open opens a standalone SQLite database and applies the schema. All
// statements share one connection so SQLite never reports a busy writer.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := dbx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %q: %w", dsn, err)
	}
	db.DB().SetMaxOpenConns(1)
	db.DB().SetMaxIdleConns(1)

	if _, err := db.NewQuery("PRAGMA busy_timeout = 10000").WithContext(ctx).Execute(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: pragma: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, owned: db}, nil
}

func (s *Store) Close() error {
	if s.owned == nil {
		return nil
	}
	return s.owned.Close()
}

func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := s.db.Insert("events", dbx.Params{
		"id":          event.ID,
		"name":        event.Name,
		"description": nullString(event.Description),
		"venue":       nullString(event.Venue),
		"starts_at":   formatTime(event.StartsAt),
		"ends_at":     nullTime(event.EndsAt),
		"created_at":  formatTime(event.CreatedAt),
	}).WithContext(ctx).Execute()
	return translate(err)
}

func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var row eventRow
	err := s.db.Select("*").
		From("events").
		Where(dbx.HashExp{"id": id}).
		Build().
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.model()
}

func (s *Store) ListEvents(ctx context.Context) ([]*models.Event, error) {
	var rows []eventRow
	err := s.db.Select("*").
		From("events").
		OrderBy("starts_at DESC").
		Build().
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, err
	}

	events := make([]*models.Event, 0, len(rows))
	for i := range rows {
		e, err := rows[i].model()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func (s *Store) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	return s.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		var found struct {
			ID string `db:"id"`
		}
		err := tx.Select("id").
			From("events").
			Where(dbx.HashExp{"id": ticket.EventID}).
			Build().
			WithContext(ctx).
			One(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrEventNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.Insert("tickets", dbx.Params{
			"id":             ticket.ID,
			"event_id":       ticket.EventID,
			"attendee_name":  ticket.AttendeeName,
			"attendee_email": nullString(ticket.AttendeeEmail),
			"secret":         ticket.Secret,
			"status":         string(ticket.Status),
			"checked_in_at":  nullTime(ticket.CheckedInAt),
			"created_at":     formatTime(ticket.CreatedAt),
		}).WithContext(ctx).Execute()
		return translate(err)
	})
}

func (s *Store) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	return getTicket(ctx, s.db, dbx.HashExp{"id": id})
}

func (s *Store) GetTicketBySecret(ctx context.Context, secret string) (*models.Ticket, error) {
	return getTicket(ctx, s.db, dbx.HashExp{"secret": secret})
}

func getTicket(ctx context.Context, db dbx.Builder, where dbx.Expression) (*models.Ticket, error) {
	var row ticketRow
	err := db.Select("*").
		From("tickets").
		Where(where).
		Limit(1).
		Build().
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.model()
}

func (s *Store) ListTickets(ctx context.Context, eventID string) ([]*models.Ticket, error) {
	q := s.db.Select("*").From("tickets")
	if eventID != "" {
		q = q.Where(dbx.HashExp{"event_id": eventID})
	}

	var rows []ticketRow
	if err := q.OrderBy("created_at DESC").Build().WithContext(ctx).All(&rows); err != nil {
		return nil, err
	}

	tickets := make([]*models.Ticket, 0, len(rows))
	for i := range rows {
		t, err := rows[i].model()
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func (s *Store) CountTickets(ctx context.Context, eventID string) (*models.EventStats, error) {
	var counts []statusCount
	err := s.db.NewQuery(
		"SELECT status, COUNT(*) AS n FROM tickets WHERE event_id = {:event} GROUP BY status",
	).Bind(dbx.Params{"event": eventID}).WithContext(ctx).All(&counts)
	if err != nil {
		return nil, err
	}

	stats := &models.EventStats{}
	for _, c := range counts {
		stats.Add(models.TicketStatus(c.Status), c.N)
	}
	return stats, nil
}

func (s *Store) ConditionalUpdateStatus(ctx context.Context, update store.ConditionalUpdate) (*models.Ticket, error) {
	var updated *models.Ticket

	err := s.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		checkedInAt := any(nil)
		if update.Next == models.TicketCheckedIn {
			checkedInAt = nullTime(update.CheckedInAt)
		}

		res, err := tx.Update("tickets",
			dbx.Params{"status": string(update.Next), "checked_in_at": checkedInAt},
			dbx.HashExp{"id": update.TicketID, "status": string(update.Expected)},
		).WithContext(ctx).Execute()
		if err != nil {
			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := getTicket(ctx, tx, dbx.HashExp{"id": update.TicketID}); err != nil {
				return err
			}
			return status.ErrPreconditionFailed
		}

		if update.Log != nil {
			if err := insertScanLog(ctx, tx, update.Log); err != nil {
				return err
			}
		}

		updated, err = getTicket(ctx, tx, dbx.HashExp{"id": update.TicketID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) OverrideStatus(ctx context.Context, ticketID string, next models.TicketStatus) (*models.Ticket, error) {
	if err := store.CheckOverride(next); err != nil {
		return nil, err
	}

	var updated *models.Ticket
	err := s.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		_, err := tx.Update("tickets",
			dbx.Params{"status": string(next), "checked_in_at": nil},
			dbx.HashExp{"id": ticketID},
		).WithContext(ctx).Execute()
		if err != nil {
			return err
		}

		updated, err = getTicket(ctx, tx, dbx.HashExp{"id": ticketID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) AppendScanLog(ctx context.Context, entry *models.ScanLog) error {
	return insertScanLog(ctx, s.db, entry)
}

func insertScanLog(ctx context.Context, db dbx.Builder, entry *models.ScanLog) error {
	_, err := db.Insert("scan_logs", dbx.Params{
		"id":         entry.ID,
		"ticket_id":  nullString(entry.TicketID),
		"event_id":   nullString(entry.EventID),
		"scanner_id": nullString(entry.ScannerID),
		"result":     string(entry.Result),
		"scanned_at": formatTime(entry.ScannedAt),
	}).WithContext(ctx).Execute()
	return translate(err)
}

func (s *Store) ListScanLogs(ctx context.Context, filter store.ScanLogFilter) ([]*models.ScanLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultScanLogLimit
	}

	var (
		where  []string
		params = dbx.Params{"limit": limit}
	)
	if filter.EventID != "" {
		where = append(where, "l.event_id = {:event}")
		params["event"] = filter.EventID
	}
	if filter.TicketID != "" {
		where = append(where, "l.ticket_id = {:ticket}")
		params["ticket"] = filter.TicketID
	}

	query := "SELECT l.id, l.ticket_id, l.event_id, l.scanner_id, l.result, l.scanned_at, t.attendee_name" +
		" FROM scan_logs l LEFT JOIN tickets t ON t.id = l.ticket_id"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY l.scanned_at DESC, l.rowid DESC LIMIT {:limit}"

	var rows []scanLogRow
	if err := s.db.NewQuery(query).Bind(params).WithContext(ctx).All(&rows); err != nil {
		return nil, err
	}

	logs := make([]*models.ScanLog, 0, len(rows))
	for i := range rows {
		l, err := rows[i].model()
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// translate maps SQLite constraint failures onto the store contract.
func translate(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", status.ErrUniquenessViolation, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", status.ErrEventNotFound, err)
	}
	return err
}
