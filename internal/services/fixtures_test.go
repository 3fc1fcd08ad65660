package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ticket-checkin/internal/status"
	"ticket-checkin/internal/store"
	"ticket-checkin/internal/store/memstore"
	"ticket-checkin/models"
)

var (
	testNow      = time.Date(2026, 6, 12, 19, 30, 0, 123456789, time.UTC)
	errStoreDown = errors.New("dial tcp 10.0.0.5:6379: connection refused")
)

type fakeRecorder struct {
	mu          sync.Mutex
	results     map[models.ScanResult]int
	errors      int
	raceRetries int
	issued      int
	collisions  int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{results: make(map[models.ScanResult]int)}
}

func (r *fakeRecorder) TrackVerification(result models.ScanResult, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result]++
}

func (r *fakeRecorder) TrackVerifyError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func (r *fakeRecorder) TrackRaceRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raceRetries++
}

func (r *fakeRecorder) TrackTicketIssued() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued++
}

func (r *fakeRecorder) TrackSecretCollision() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collisions++
}

type fakePublisher struct {
	mu      sync.Mutex
	entries []*models.ScanLog
}

func (p *fakePublisher) PublishScan(_ context.Context, entry *models.ScanLog) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

type fixture struct {
	store     *memstore.MemStore
	event     *models.Event
	recorder  *fakeRecorder
	publisher *fakePublisher
	issuer    *Issuer
	arbiter   *Arbiter
	admin     *TicketAdmin
	ids       func() string
}

func (f *fixture) options() []Option {
	return []Option{
		WithRecorder(f.recorder),
		WithPublisher(f.publisher),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(f.ids),
		WithStoreTimeout(time.Second),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     memstore.New(),
		recorder:  newFakeRecorder(),
		publisher: &fakePublisher{},
		ids:       sequentialIDs("id"),
	}
	f.event = &models.Event{ID: "ev-1", Name: "Summer Gala", StartsAt: testNow, CreatedAt: testNow}
	require.NoError(t, f.store.CreateEvent(context.Background(), f.event))

	f.issuer = NewIssuer(f.store, DefaultSecretBytes, DefaultMaxSecretAttempts, f.options()...)
	f.arbiter = NewArbiter(f.store, DefaultMaxVerifyRounds, f.options()...)
	f.admin = NewTicketAdmin(f.store, f.options()...)
	return f
}

func (f *fixture) issue(t *testing.T, name string) *models.Ticket {
	t.Helper()
	ticket, err := f.issuer.Issue(context.Background(), IssueRequest{EventID: f.event.ID, AttendeeName: name})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) logsFor(t *testing.T, ticketID string) []*models.ScanLog {
	t.Helper()
	logs, err := f.store.ListScanLogs(context.Background(), store.ScanLogFilter{TicketID: ticketID, Limit: 1000})
	require.NoError(t, err)
	return logs
}

func (f *fixture) allLogs(t *testing.T) []*models.ScanLog {
	t.Helper()
	logs, err := f.store.ListScanLogs(context.Background(), store.ScanLogFilter{Limit: 1000})
	require.NoError(t, err)
	return logs
}

// faultyStore wraps a real store and injects failures per operation.
type faultyStore struct {
	*memstore.MemStore

	lookupErr error
	appendErr error
	casErr    error

	// beforeCAS runs ahead of each conditional update; returning an error
	// replaces the update.
	beforeCAS func(update store.ConditionalUpdate) error
	casCalls  int
}

func (s *faultyStore) GetTicketBySecret(ctx context.Context, secret string) (*models.Ticket, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.MemStore.GetTicketBySecret(ctx, secret)
}

func (s *faultyStore) AppendScanLog(ctx context.Context, entry *models.ScanLog) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.MemStore.AppendScanLog(ctx, entry)
}

func (s *faultyStore) ConditionalUpdateStatus(ctx context.Context, update store.ConditionalUpdate) (*models.Ticket, error) {
	s.casCalls++
	if s.casErr != nil {
		return nil, s.casErr
	}
	if s.beforeCAS != nil {
		if err := s.beforeCAS(update); err != nil {
			return nil, err
		}
	}
	return s.MemStore.ConditionalUpdateStatus(ctx, update)
}

var _ ArbiterStore = (*faultyStore)(nil)

func alwaysContended(store.ConditionalUpdate) error { return status.ErrPreconditionFailed }
