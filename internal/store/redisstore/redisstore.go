// Package redisstore implements the ticket store on Redis.
//
// Every multi-key write runs as a Lua script so Redis applies it atomically:
// the issued -> checked_in compare-and-set, its counter update and its scan
// log entry either all land or none do.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-checkin/internal/status"
	"ticket-checkin/internal/store"
	"ticket-checkin/models"
)

type Store struct {
	rdb *redis.Client
}

var _ store.Store = (*Store)(nil)

// New uses a client owned by the caller.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	res, err := s.rdb.Eval(ctx, createEventScript,
		[]string{eventKey(event.ID), eventsKey},
		string(payload), event.StartsAt.UnixMicro(), event.ID,
	).Int64()
	if err != nil {
		return fmt.Errorf("redisstore: create event: %w", err)
	}
	if res == 0 {
		return status.ErrUniquenessViolation
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	payload, err := s.rdb.Get(ctx, eventKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, status.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get event: %w", err)
	}

	var event models.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("redisstore: decode event %s: %w", id, err)
	}
	return &event, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]*models.Event, error) {
	ids, err := s.rdb.ZRevRange(ctx, eventsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list events: %w", err)
	}
	events := make([]*models.Event, 0, len(ids))
	if len(ids) == 0 {
		return events, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = eventKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list events: %w", err)
	}

	for _, v := range values {
		payload, ok := v.(string)
		if !ok {
			continue
		}
		var event models.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return nil, fmt.Errorf("redisstore: decode event: %w", err)
		}
		events = append(events, &event)
	}
	return events, nil
}

func (s *Store) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	args := []interface{}{ticket.ID, ticket.CreatedAt.UnixMicro(), string(ticket.Status)}
	args = append(args, ticketFields(ticket)...)

	res, err := s.rdb.Eval(ctx, createTicketScript,
		[]string{
			eventKey(ticket.EventID),
			ticketKey(ticket.ID),
			secretKey(ticket.Secret),
			eventTicketsKey(ticket.EventID),
			ticketsKey,
			eventCountsKey(ticket.EventID),
		},
		args...,
	).Int64()
	if err != nil {
		return fmt.Errorf("redisstore: create ticket: %w", err)
	}

	switch res {
	case -1:
		return status.ErrEventNotFound
	case 0:
		return status.ErrUniquenessViolation
	}
	return nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	fields, err := s.rdb.HGetAll(ctx, ticketKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: get ticket: %w", err)
	}
	if len(fields) == 0 {
		return nil, status.ErrTicketNotFound
	}
	return decodeTicket(fields)
}

func (s *Store) GetTicketBySecret(ctx context.Context, secret string) (*models.Ticket, error) {
	id, err := s.rdb.Get(ctx, secretKey(secret)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: lookup secret: %w", err)
	}
	return s.GetTicket(ctx, id)
}

func (s *Store) ListTickets(ctx context.Context, eventID string) ([]*models.Ticket, error) {
	index := ticketsKey
	if eventID != "" {
		index = eventTicketsKey(eventID)
	}

	ids, err := s.rdb.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list tickets: %w", err)
	}
	tickets := make([]*models.Ticket, 0, len(ids))
	if len(ids) == 0 {
		return tickets, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, ticketKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redisstore: list tickets: %w", err)
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		t, err := decodeTicket(fields)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func (s *Store) CountTickets(ctx context.Context, eventID string) (*models.EventStats, error) {
	counts, err := s.rdb.HGetAll(ctx, eventCountsKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: count tickets: %w", err)
	}

	stats := &models.EventStats{}
	for st, raw := range counts {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("redisstore: bad count %q for %s: %w", raw, st, err)
		}
		stats.Add(models.TicketStatus(st), n)
	}
	return stats, nil
}

func (s *Store) ConditionalUpdateStatus(ctx context.Context, update store.ConditionalUpdate) (*models.Ticket, error) {
	eventID, err := s.eventOf(ctx, update.TicketID, update.EventID)
	if err != nil {
		return nil, err
	}

	checkedInAt := ""
	if update.Next == models.TicketCheckedIn && update.CheckedInAt != nil {
		checkedInAt = formatTime(*update.CheckedInAt)
	}

	payload := ""
	if update.Log != nil {
		entry := *update.Log
		if entry.TicketID == "" {
			entry.TicketID = update.TicketID
		}
		if entry.EventID == "" {
			entry.EventID = eventID
		}
		b, err := encodeScanLog(&entry)
		if err != nil {
			return nil, err
		}
		payload = b
	}

	res, err := s.rdb.Eval(ctx, conditionalUpdateScript,
		[]string{
			ticketKey(update.TicketID),
			eventCountsKey(eventID),
			scanLogsKey,
			eventScanLogsKey(eventID),
			ticketScanLogsKey(update.TicketID),
		},
		string(update.Expected), string(update.Next), checkedInAt, payload,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: conditional update: %w", err)
	}
	return scriptTicket(res, status.ErrPreconditionFailed)
}

func (s *Store) OverrideStatus(ctx context.Context, ticketID string, next models.TicketStatus) (*models.Ticket, error) {
	if err := store.CheckOverride(next); err != nil {
		return nil, err
	}
	eventID, err := s.eventOf(ctx, ticketID, "")
	if err != nil {
		return nil, err
	}

	res, err := s.rdb.Eval(ctx, overrideStatusScript,
		[]string{ticketKey(ticketID), eventCountsKey(eventID)},
		string(next),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: override status: %w", err)
	}
	return scriptTicket(res, status.ErrPreconditionFailed)
}

// eventOf resolves the event a ticket belongs to, preferring the caller's hint.
func (s *Store) eventOf(ctx context.Context, ticketID, hint string) (string, error) {
	if hint != "" {
		return hint, nil
	}
	eventID, err := s.rdb.HGet(ctx, ticketKey(ticketID), "event_id").Result()
	if errors.Is(err, redis.Nil) {
		return "", status.ErrTicketNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redisstore: resolve event: %w", err)
	}
	return eventID, nil
}

func (s *Store) AppendScanLog(ctx context.Context, entry *models.ScanLog) error {
	payload, err := encodeScanLog(entry)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, scanLogsKey, payload)
		if entry.EventID != "" {
			pipe.LPush(ctx, eventScanLogsKey(entry.EventID), payload)
		}
		if entry.TicketID != "" {
			pipe.LPush(ctx, ticketScanLogsKey(entry.TicketID), payload)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: append scan log: %w", err)
	}
	return nil
}

func (s *Store) ListScanLogs(ctx context.Context, filter store.ScanLogFilter) ([]*models.ScanLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultScanLogLimit
	}

	key, stop := scanLogsKey, int64(limit-1)
	switch {
	case filter.TicketID != "" && filter.EventID != "":
		key, stop = ticketScanLogsKey(filter.TicketID), -1
	case filter.TicketID != "":
		key = ticketScanLogsKey(filter.TicketID)
	case filter.EventID != "":
		key = eventScanLogsKey(filter.EventID)
	}

	raw, err := s.rdb.LRange(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list scan logs: %w", err)
	}

	names := make(map[string]string)
	logs := make([]*models.ScanLog, 0, len(raw))
	for _, payload := range raw {
		if len(logs) == limit {
			break
		}
		var entry models.ScanLog
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("redisstore: decode scan log: %w", err)
		}
		if filter.EventID != "" && entry.EventID != filter.EventID {
			continue
		}

		if entry.TicketID != "" {
			name, ok := names[entry.TicketID]
			if !ok {
				name, err = s.rdb.HGet(ctx, ticketKey(entry.TicketID), "attendee_name").Result()
				if err != nil && !errors.Is(err, redis.Nil) {
					return nil, fmt.Errorf("redisstore: attendee lookup: %w", err)
				}
				names[entry.TicketID] = name
			}
			entry.AttendeeName = name
		}
		logs = append(logs, &entry)
	}
	return logs, nil
}

func encodeScanLog(entry *models.ScanLog) (string, error) {
	e := *entry
	e.AttendeeName = ""
	b, err := json.Marshal(&e)
	if err != nil {
		return "", fmt.Errorf("redisstore: encode scan log: %w", err)
	}
	return string(b), nil
}

// scriptTicket interprets a script reply that is either a status code or
// the ticket's HGETALL array.
func scriptTicket(res interface{}, conflict error) (*models.Ticket, error) {
	switch v := res.(type) {
	case int64:
		if v < 0 {
			return nil, status.ErrTicketNotFound
		}
		return nil, conflict
	case []interface{}:
		fields := make(map[string]string, len(v)/2)
		for i := 0; i+1 < len(v); i += 2 {
			k, _ := v[i].(string)
			val, _ := v[i+1].(string)
			fields[k] = val
		}
		return decodeTicket(fields)
	}
	return nil, fmt.Errorf("redisstore: unexpected script reply %T", res)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ticketFields is the ticket hash as ordered field/value pairs.
func ticketFields(t *models.Ticket) []interface{} {
	checkedInAt := ""
	if t.CheckedInAt != nil {
		checkedInAt = formatTime(*t.CheckedInAt)
	}
	return []interface{}{
		"id", t.ID,
		"event_id", t.EventID,
		"attendee_name", t.AttendeeName,
		"attendee_email", t.AttendeeEmail,
		"secret", t.Secret,
		"status", string(t.Status),
		"checked_in_at", checkedInAt,
		"created_at", formatTime(t.CreatedAt),
	}
}

func decodeTicket(fields map[string]string) (*models.Ticket, error) {
	t := &models.Ticket{
		ID:            fields["id"],
		EventID:       fields["event_id"],
		AttendeeName:  fields["attendee_name"],
		AttendeeEmail: fields["attendee_email"],
		Secret:        fields["secret"],
		Status:        models.TicketStatus(fields["status"]),
	}

	created, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("redisstore: ticket %s created_at: %w", t.ID, err)
	}
	t.CreatedAt = created

	if raw := fields["checked_in_at"]; raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("redisstore: ticket %s checked_in_at: %w", t.ID, err)
		}
		t.CheckedInAt = &at
	}
	return t, nil
}
