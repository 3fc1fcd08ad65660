// Package storetest is a conformance suite run against every store.Store
// implementation that can be exercised without external services.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-checkin/internal/status"
	"ticket-checkin/internal/store"
	"ticket-checkin/models"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

var base = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"EventRoundTrip", testEventRoundTrip},
		{"TicketRoundTrip", testTicketRoundTrip},
		{"TicketUniqueness", testTicketUniqueness},
		{"TicketUnknownEvent", testTicketUnknownEvent},
		{"ConditionalUpdate", testConditionalUpdate},
		{"ConditionalUpdatePreconditionFailed", testConditionalUpdatePreconditionFailed},
		{"ConditionalUpdateMissingTicket", testConditionalUpdateMissingTicket},
		{"ConcurrentConditionalUpdates", testConcurrentConditionalUpdates},
		{"OverrideStatus", testOverrideStatus},
		{"ScanLogs", testScanLogs},
		{"CountTickets", testCountTickets},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func seedEvent(t *testing.T, s store.Store, id string) *models.Event {
	t.Helper()
	ends := base.Add(4 * time.Hour)
	e := &models.Event{
		ID:          id,
		Name:        "Launch party " + id,
		Description: "rooftop",
		Venue:       "Pier 9",
		StartsAt:    base,
		EndsAt:      &ends,
		CreatedAt:   base.Add(-24 * time.Hour),
	}
	require.NoError(t, s.CreateEvent(context.Background(), e))
	return e
}

func seedTicket(t *testing.T, s store.Store, eventID, id string, offset time.Duration) *models.Ticket {
	t.Helper()
	tk := &models.Ticket{
		ID:            id,
		EventID:       eventID,
		AttendeeName:  "Attendee " + id,
		AttendeeEmail: id + "@example.com",
		Secret:        "secret-" + id,
		Status:        models.TicketIssued,
		CreatedAt:     base.Add(offset),
	}
	require.NoError(t, s.CreateTicket(context.Background(), tk))
	return tk
}

func testEventRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	e := seedEvent(t, s, "ev-1")

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.Venue, got.Venue)
	assert.True(t, e.StartsAt.Equal(got.StartsAt))
	require.NotNil(t, got.EndsAt)
	assert.True(t, e.EndsAt.Equal(*got.EndsAt))

	_, err = s.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, status.ErrEventNotFound)

	later := &models.Event{ID: "ev-2", Name: "Later", StartsAt: base.Add(48 * time.Hour), CreatedAt: base}
	require.NoError(t, s.CreateEvent(ctx, later))

	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-2", events[0].ID)
	assert.Nil(t, events[0].EndsAt)
}

func testTicketRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedEvent(t, s, "ev-1")
	tk := seedTicket(t, s, "ev-1", "tk-1", 0)

	byID, err := s.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.Secret, byID.Secret)
	assert.Equal(t, models.TicketIssued, byID.Status)
	assert.Nil(t, byID.CheckedInAt)
	assert.True(t, tk.CreatedAt.Equal(byID.CreatedAt))

	bySecret, err := s.GetTicketBySecret(ctx, tk.Secret)
	require.NoError(t, err)
	assert.Equal(t, tk.ID, bySecret.ID)
	assert.Equal(t, tk.AttendeeEmail, bySecret.AttendeeEmail)

	_, err = s.GetTicketBySecret(ctx, "never-issued")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
	_, err = s.GetTicket(ctx, "missing")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)

	seedTicket(t, s, "ev-1", "tk-2", time.Minute)
	seedEvent(t, s, "ev-2")
	seedTicket(t, s, "ev-2", "tk-3", 2*time.Minute)

	tickets, err := s.ListTickets(ctx, "ev-1")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "tk-2", tickets[0].ID)

	all, err := s.ListTickets(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testTicketUniqueness(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedEvent(t, s, "ev-1")
	tk := seedTicket(t, s, "ev-1", "tk-1", 0)

	clash := &models.Ticket{
		ID:           "tk-2",
		EventID:      "ev-1",
		AttendeeName: "Other",
		Secret:       tk.Secret,
		Status:       models.TicketIssued,
		CreatedAt:    base,
	}
	err := s.CreateTicket(ctx, clash)
	assert.ErrorIs(t, err, status.ErrUniquenessViolation)

	_, err = s.GetTicket(ctx, "tk-2")
	assert.ErrorIs(t, err, status.ErrTicketNotFound, "failed insert must not be visible")
}

func testTicketUnknownEvent(t *testing.T, s store.Store) {
	err := s.CreateTicket(context.Background(), &models.Ticket{
		ID:           "tk-1",
		EventID:      "nope",
		AttendeeName: "Ada",
		Secret:       "s",
		Status:       models.TicketIssued,
		CreatedAt:    base,
	})
	assert.ErrorIs(t, err, status.ErrEventNotFound)
}

func testConditionalUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedEvent(t, s, "ev-1")
	tk := seedTicket(t, s, "ev-1", "tk-1", 0)

	at := base.Add(30 * time.Minute)
	entry := &models.ScanLog{ID: "log-1", TicketID: tk.ID, EventID: tk.EventID, Result: models.ScanSuccess, ScannedAt: at}

	updated, err := s.ConditionalUpdateStatus(ctx, store.ConditionalUpdate{
		TicketID:    tk.ID,
		EventID:     tk.EventID,
		Expected:    models.TicketIssued,
		Next:        models.TicketCheckedIn,
		CheckedInAt: &at,
		Log:         entry,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketCheckedIn, updated.Status)
	require.NotNil(t, updated.CheckedInAt)
	assert.True(t, at.Equal(*updated.CheckedInAt))

	logs, err := s.ListScanLogs(ctx, store.ScanLogFilter{TicketID: tk.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ScanSuccess, logs[0].Result)
	assert.Equal(t, tk.AttendeeName, logs[0].AttendeeName)
}

func testConditionalUpdatePreconditionFailed(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedEvent(t, s, "ev-1")
	tk := seedTicket(t, s, "ev-1", "tk-1", 0)

	_, err := s.OverrideStatus(ctx, tk.ID, models.TicketRevoked)
	require.NoError(t, err)

	at := base
	_, err = s.ConditionalUpdateStatus(ctx, store.ConditionalUpdate{
		TicketID:    tk.ID,
		EventID:     tk.EventID,
		Expected:    models.TicketIssued,
		Next:        models.TicketCheckedIn,
		CheckedInAt: &at,
		Log:         &models.ScanLog{ID: "log-1", TicketID: tk.ID, Result: models.ScanSuccess, ScannedAt: at},
	})
	assert.ErrorIs(t, err, status.ErrPreconditionFailed)

	got, err := s.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketRevoked, got.Status)
	assert.Nil(t, got.CheckedInAt)

	logs, err := s.ListScanLogs(ctx, store.ScanLogFilter{TicketID: tk.ID})
	require.NoError(t, err)
	assert.Empty(t, logs, "a lost compare-and-set must not leave an audit entry")
}

func testConditionalUpdateMissingTicket(t *testing.T, s store.Store) {
	at := base
	_, err := s.ConditionalUpdateStatus(context.Background(), store.ConditionalUpdate{
		TicketID:    "missing",
		Expected:    models.TicketIssued,
		Next:        models.TicketCheckedIn,
		CheckedInAt: &at,
	})
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
}

func testConcurrentConditionalUpdates(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedEvent(t, s, "ev-1")
	tk := seedTicket(t, s, "ev-1", "tk-1", 0)

	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		lost    int
		unknown []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at := base.Add(time.Duration(i) * time.Millisecond)
			_, err := s.ConditionalUpdateStatus(ctx, store.ConditionalUpdate{
				TicketID:    tk.ID,
				EventID:     tk.EventID,
				Expected:    models.TicketIssued,
				Next:        models.TicketCheckedIn,
				CheckedInAt: &at,
				Log:         &models.ScanLog{ID: fmt.Sprintf("log-%d", i), TicketID: tk.ID, Result: models.ScanSuccess, ScannedAt: at},
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case status.Classified(err):
				lost++
			default:
				unknown = append(unknown, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, unknown)
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, lost)

	logs, err := s.ListScanLogs(ctx, store.ScanLogFilter{TicketID: tk.ID})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func testOverrideStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedEvent(t, s, "ev-1")
	tk := seedTicket(t, s, "ev-1", "tk-1", 0)

	at := base
	_, err := s.ConditionalUpdateStatus(ctx, store.ConditionalUpdate{
		TicketID: tk.ID, EventID: tk.EventID,
		Expected: models.TicketIssued, Next: models.TicketCheckedIn, CheckedInAt: &at,
	})
	require.NoError(t, err)

	revoked, err := s.OverrideStatus(ctx, tk.ID, models.TicketRevoked)
	require.NoError(t, err)
	assert.Equal(t, models.TicketRevoked, revoked.Status)
	assert.Nil(t, revoked.CheckedInAt)

	restored, err := s.OverrideStatus(ctx, tk.ID, models.TicketIssued)
	require.NoError(t, err)
	assert.Equal(t, models.TicketIssued, restored.Status)
	assert.True(t, restored.Consistent())

	_, err = s.OverrideStatus(ctx, tk.ID, models.TicketCheckedIn)
	assert.ErrorIs(t, err, status.ErrInvalidInput)

	_, err = s.OverrideStatus(ctx, "missing", models.TicketRevoked)
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
}

func testScanLogs(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedEvent(t, s, "ev-1")
	seedEvent(t, s, "ev-2")
	a := seedTicket(t, s, "ev-1", "tk-a", 0)
	b := seedTicket(t, s, "ev-2", "tk-b", 0)

	entries := []*models.ScanLog{
		{ID: "l1", TicketID: a.ID, EventID: a.EventID, ScannerID: "gate-1", Result: models.ScanDuplicate, ScannedAt: base.Add(1 * time.Second)},
		{ID: "l2", Result: models.ScanInvalid, ScannerID: "gate-1", ScannedAt: base.Add(2 * time.Second)},
		{ID: "l3", TicketID: b.ID, EventID: b.EventID, Result: models.ScanRevoked, ScannedAt: base.Add(3 * time.Second)},
		{ID: "l4", TicketID: a.ID, EventID: a.EventID, Result: models.ScanDuplicate, ScannedAt: base.Add(4 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, s.AppendScanLog(ctx, e))
	}

	byEvent, err := s.ListScanLogs(ctx, store.ScanLogFilter{EventID: "ev-1"})
	require.NoError(t, err)
	require.Len(t, byEvent, 2)
	assert.Equal(t, "l4", byEvent[0].ID, "newest first")
	assert.Equal(t, "l1", byEvent[1].ID)
	assert.Equal(t, "gate-1", byEvent[1].ScannerID)
	assert.Equal(t, a.AttendeeName, byEvent[1].AttendeeName)

	limited, err := s.ListScanLogs(ctx, store.ScanLogFilter{EventID: "ev-1", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	all, err := s.ListScanLogs(ctx, store.ScanLogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "l2", all[2].ID)
	assert.Empty(t, all[2].TicketID)
	assert.Empty(t, all[2].AttendeeName)
}

func testCountTickets(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedEvent(t, s, "ev-1")
	seedTicket(t, s, "ev-1", "tk-1", 0)
	seedTicket(t, s, "ev-1", "tk-2", time.Second)
	tk3 := seedTicket(t, s, "ev-1", "tk-3", 2*time.Second)
	tk4 := seedTicket(t, s, "ev-1", "tk-4", 3*time.Second)

	at := base
	_, err := s.ConditionalUpdateStatus(ctx, store.ConditionalUpdate{
		TicketID: tk3.ID, EventID: tk3.EventID,
		Expected: models.TicketIssued, Next: models.TicketCheckedIn, CheckedInAt: &at,
	})
	require.NoError(t, err)
	_, err = s.OverrideStatus(ctx, tk4.ID, models.TicketRevoked)
	require.NoError(t, err)

	stats, err := s.CountTickets(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, models.EventStats{Total: 4, Issued: 2, CheckedIn: 1, Revoked: 1}, *stats)

	empty, err := s.CountTickets(ctx, "ev-none")
	require.NoError(t, err)
	assert.Equal(t, models.EventStats{}, *empty)
}
