// Package memstore keeps events, tickets and scan logs in process memory.
// A single mutex is the synchronization point, which gives the same
// linearizable compare-and-set the durable stores provide. Data does not
// survive a restart.
package memstore

import (
	"context"
	"sort"
	"sync"

	"ticket-checkin/internal/status"
	"ticket-checkin/internal/store"
	"ticket-checkin/models"
)

type MemStore struct {
	mu       sync.RWMutex
	events   map[string]*models.Event
	tickets  map[string]*models.Ticket
	bySecret map[string]string
	logs     []*models.ScanLog
}

var _ store.Store = (*MemStore)(nil)

func New() *MemStore {
	return &MemStore{
		events:   make(map[string]*models.Event),
		tickets:  make(map[string]*models.Ticket),
		bySecret: make(map[string]string),
	}
}

func (m *MemStore) Close() error { return nil }

func (m *MemStore) CreateEvent(ctx context.Context, event *models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[event.ID]; ok {
		return status.ErrUniquenessViolation
	}
	e := *event
	m.events[event.ID] = &e
	return nil
}

func (m *MemStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.events[id]
	if !ok {
		return nil, status.ErrEventNotFound
	}
	c := *e
	return &c, nil
}

func (m *MemStore) ListEvents(ctx context.Context) ([]*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	events := make([]*models.Event, 0, len(m.events))
	for _, e := range m.events {
		c := *e
		events = append(events, &c)
	}
	m.mu.RUnlock()

	sort.Slice(events, func(i, j int) bool {
		return events[i].StartsAt.After(events[j].StartsAt)
	})
	return events, nil
}

func (m *MemStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[ticket.EventID]; !ok {
		return status.ErrEventNotFound
	}
	if _, ok := m.tickets[ticket.ID]; ok {
		return status.ErrUniquenessViolation
	}
	if _, ok := m.bySecret[ticket.Secret]; ok {
		return status.ErrUniquenessViolation
	}

	m.tickets[ticket.ID] = ticket.Clone()
	m.bySecret[ticket.Secret] = ticket.ID
	return nil
}

func (m *MemStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tickets[id]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	return t.Clone(), nil
}

func (m *MemStore) GetTicketBySecret(ctx context.Context, secret string) (*models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySecret[secret]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	return m.tickets[id].Clone(), nil
}

func (m *MemStore) ListTickets(ctx context.Context, eventID string) ([]*models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	tickets := make([]*models.Ticket, 0)
	for _, t := range m.tickets {
		if eventID == "" || t.EventID == eventID {
			tickets = append(tickets, t.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	return tickets, nil
}

func (m *MemStore) CountTickets(ctx context.Context, eventID string) (*models.EventStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.EventStats{}
	for _, t := range m.tickets {
		if t.EventID == eventID {
			stats.Add(t.Status, 1)
		}
	}
	return stats, nil
}

func (m *MemStore) ConditionalUpdateStatus(ctx context.Context, update store.ConditionalUpdate) (*models.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[update.TicketID]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	if t.Status != update.Expected {
		return nil, status.ErrPreconditionFailed
	}

	t.Status = update.Next
	t.CheckedInAt = nil
	if update.Next == models.TicketCheckedIn && update.CheckedInAt != nil {
		at := *update.CheckedInAt
		t.CheckedInAt = &at
	}
	if update.Log != nil {
		m.appendLocked(update.Log)
	}
	return t.Clone(), nil
}

func (m *MemStore) OverrideStatus(ctx context.Context, ticketID string, next models.TicketStatus) (*models.Ticket, error) {
	if err := store.CheckOverride(next); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticketID]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	t.Status = next
	t.CheckedInAt = nil
	return t.Clone(), nil
}

func (m *MemStore) AppendScanLog(ctx context.Context, entry *models.ScanLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendLocked(entry)
	return nil
}

func (m *MemStore) appendLocked(entry *models.ScanLog) {
	e := *entry
	e.AttendeeName = ""
	m.logs = append(m.logs, &e)
}

func (m *MemStore) ListScanLogs(ctx context.Context, filter store.ScanLogFilter) ([]*models.ScanLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultScanLogLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := make([]*models.ScanLog, 0)
	for i := len(m.logs) - 1; i >= 0 && len(logs) < limit; i-- {
		l := m.logs[i]
		if filter.EventID != "" && l.EventID != filter.EventID {
			continue
		}
		if filter.TicketID != "" && l.TicketID != filter.TicketID {
			continue
		}
		c := *l
		if t, ok := m.tickets[l.TicketID]; ok {
			c.AttendeeName = t.AttendeeName
		}
		logs = append(logs, &c)
	}
	return logs, nil
}
