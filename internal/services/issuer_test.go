package services

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticket-checkin/internal/status"
	"ticket-checkin/models"
)

type MockIssuerStore struct {
	mock.Mock
}

func (m *MockIssuerStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockIssuerStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func TestIssuer_Issue(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.issuer.Issue(context.Background(), IssueRequest{
		EventID:       f.event.ID,
		AttendeeName:  "  Ada Lovelace ",
		AttendeeEmail: "ada@example.com",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, "Ada Lovelace", ticket.AttendeeName)
	assert.Equal(t, models.TicketIssued, ticket.Status)
	assert.Nil(t, ticket.CheckedInAt)
	assert.Equal(t, testNow.Truncate(time.Microsecond), ticket.CreatedAt)

	raw, err := base64.RawURLEncoding.DecodeString(ticket.Secret)
	require.NoError(t, err)
	assert.Len(t, raw, DefaultSecretBytes)

	stored, err := f.store.GetTicketBySecret(context.Background(), ticket.Secret)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, stored.ID)
	assert.Equal(t, 1, f.recorder.issued)
}

func TestIssuer_SecretsAreDistinct(t *testing.T) {
	f := newFixture(t)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		ticket := f.issue(t, "Guest")
		require.False(t, seen[ticket.Secret])
		seen[ticket.Secret] = true
	}
}

func TestIssuer_InvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  IssueRequest
	}{
		{"missing name", IssueRequest{EventID: "ev-1"}},
		{"blank name", IssueRequest{EventID: "ev-1", AttendeeName: "   "}},
		{"missing event", IssueRequest{AttendeeName: "Ada"}},
		{"bad email", IssueRequest{EventID: "ev-1", AttendeeName: "Ada", AttendeeEmail: "not-an-email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.issuer.Issue(context.Background(), tt.req)
			assert.ErrorIs(t, err, status.ErrInvalidInput)
		})
	}

	tickets, err := f.store.ListTickets(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestIssuer_UnknownEvent(t *testing.T) {
	f := newFixture(t)

	_, err := f.issuer.Issue(context.Background(), IssueRequest{EventID: "ev-404", AttendeeName: "Ada"})
	assert.ErrorIs(t, err, status.ErrEventNotFound)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestIssuer_RetriesSecretCollision(t *testing.T) {
	f := newFixture(t)
	taken := f.issue(t, "First Guest")

	secrets := []string{taken.Secret, taken.Secret, "fresh-secret"}
	f.issuer.secrets = func(int) (string, error) {
		s := secrets[0]
		secrets = secrets[1:]
		return s, nil
	}

	ticket, err := f.issuer.Issue(context.Background(), IssueRequest{EventID: f.event.ID, AttendeeName: "Second Guest"})
	require.NoError(t, err)
	assert.Equal(t, "fresh-secret", ticket.Secret)
	assert.Equal(t, 2, f.recorder.collisions)

	owner, err := f.store.GetTicketBySecret(context.Background(), taken.Secret)
	require.NoError(t, err)
	assert.Equal(t, taken.ID, owner.ID, "a collision must not rebind the existing secret")
}

func TestIssuer_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	taken := f.issue(t, "First Guest")

	calls := 0
	f.issuer.secrets = func(int) (string, error) {
		calls++
		return taken.Secret, nil
	}

	_, err := f.issuer.Issue(context.Background(), IssueRequest{EventID: f.event.ID, AttendeeName: "Unlucky"})
	assert.ErrorIs(t, err, status.ErrIssuanceFailed)
	assert.Equal(t, DefaultMaxSecretAttempts, calls)
	assert.Equal(t, DefaultMaxSecretAttempts, f.recorder.collisions)

	tickets, err := f.store.ListTickets(context.Background(), f.event.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestIssuer_StoreUnavailable(t *testing.T) {
	ms := new(MockIssuerStore)
	ms.On("GetEvent", mock.Anything, "ev-1").Return(&models.Event{ID: "ev-1"}, nil)
	ms.On("CreateTicket", mock.Anything, mock.AnythingOfType("*models.Ticket")).Return(errStoreDown).Once()

	issuer := NewIssuer(ms, 0, 0)

	_, err := issuer.Issue(context.Background(), IssueRequest{EventID: "ev-1", AttendeeName: "Ada"})
	assert.ErrorIs(t, err, status.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errStoreDown)
	ms.AssertExpectations(t)
	ms.AssertNumberOfCalls(t, "CreateTicket", 1)
}

func TestIssuer_EventLookupUnavailable(t *testing.T) {
	ms := new(MockIssuerStore)
	ms.On("GetEvent", mock.Anything, "ev-1").Return(nil, errStoreDown)

	issuer := NewIssuer(ms, DefaultSecretBytes, 1)

	_, err := issuer.Issue(context.Background(), IssueRequest{EventID: "ev-1", AttendeeName: "Ada"})
	assert.True(t, status.IsRetryable(err))
	ms.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything)
}
