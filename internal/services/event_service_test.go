package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-checkin/internal/status"
	"ticket-checkin/models"
)

func newEventService(f *fixture) *EventService {
	return NewEventService(f.store, 2, f.options()...)
}

func TestEventService_Create(t *testing.T) {
	f := newFixture(t)
	svc := newEventService(f)

	starts := time.Date(2026, 9, 1, 18, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	ends := starts.Add(5 * time.Hour)

	event, err := svc.Create(context.Background(), CreateEventRequest{
		Name:     " Autumn Meetup ",
		Venue:    "Hall B",
		StartsAt: starts,
		EndsAt:   &ends,
	})
	require.NoError(t, err)
	assert.Equal(t, "Autumn Meetup", event.Name)
	assert.Equal(t, time.UTC, event.StartsAt.Location())
	assert.True(t, starts.Equal(event.StartsAt))

	got, err := svc.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.Venue, got.Venue)
}

func TestEventService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	svc := newEventService(f)
	starts := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	before := starts.Add(-time.Hour)

	tests := []struct {
		name string
		req  CreateEventRequest
	}{
		{"missing name", CreateEventRequest{StartsAt: starts}},
		{"missing start", CreateEventRequest{Name: "Gig"}},
		{"ends before start", CreateEventRequest{Name: "Gig", StartsAt: starts, EndsAt: &before}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, status.ErrInvalidInput)
		})
	}
}

func TestEventService_StatsAndLogs(t *testing.T) {
	f := newFixture(t)
	svc := newEventService(f)
	ctx := context.Background()

	a := f.issue(t, "Ada")
	b := f.issue(t, "Bob")
	f.issue(t, "Cy")

	_, err := f.arbiter.Verify(ctx, VerifyRequest{Secret: a.Secret, ScannerID: "gate-1"})
	require.NoError(t, err)
	_, err = f.arbiter.Verify(ctx, VerifyRequest{Secret: a.Secret, ScannerID: "gate-2"})
	require.NoError(t, err)
	_, err = f.admin.Revoke(ctx, b.ID)
	require.NoError(t, err)
	_, err = f.arbiter.Verify(ctx, VerifyRequest{Secret: b.Secret})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStats{Total: 3, Issued: 1, CheckedIn: 1, Revoked: 1}, *stats)

	logs, err := svc.Logs(ctx, f.event.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2, "default limit applies")
	assert.Equal(t, models.ScanRevoked, logs[0].Result)
	assert.Equal(t, "Bob", logs[0].AttendeeName)

	all, err := svc.Logs(ctx, f.event.ID, 50)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEventService_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	svc := newEventService(f)

	_, err := svc.Stats(context.Background(), "ev-404")
	assert.ErrorIs(t, err, status.ErrEventNotFound)

	_, err = svc.Logs(context.Background(), "ev-404", 10)
	assert.ErrorIs(t, err, status.ErrEventNotFound)

	_, err = svc.Get(context.Background(), " ")
	assert.ErrorIs(t, err, status.ErrInvalidInput)
}

func TestEventService_List(t *testing.T) {
	f := newFixture(t)
	svc := newEventService(f)

	_, err := svc.Create(context.Background(), CreateEventRequest{Name: "Later", StartsAt: testNow.Add(24 * time.Hour)})
	require.NoError(t, err)

	events, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Later", events[0].Name)
}
