// Package services holds the check-in core: the Issuer creates tickets, the
// Arbiter decides admissions, TicketAdmin applies operator overrides and
// EventService manages the events tickets belong to.
//
// None of the services keep ticket state between calls. The store's
// conditional update is the only synchronization point, so any number of
// service instances can share one store.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ticket-checkin/models"
)

// Recorder receives metrics. *monitoring.Monitor implements it.
type Recorder interface {
	TrackVerification(result models.ScanResult, d time.Duration)
	TrackVerifyError()
	TrackRaceRetry()
	TrackTicketIssued()
	TrackSecretCollision()
}

// Publisher fans out committed scan results. Implementations must not block
// the caller on network I/O.
type Publisher interface {
	PublishScan(ctx context.Context, entry *models.ScanLog)
}

type noopRecorder struct{}

func (noopRecorder) TrackVerification(models.ScanResult, time.Duration) {}
func (noopRecorder) TrackVerifyError()                                  {}
func (noopRecorder) TrackRaceRetry()                                    {}
func (noopRecorder) TrackTicketIssued()                                 {}
func (noopRecorder) TrackSecretCollision()                              {}

type noopPublisher struct{}

func (noopPublisher) PublishScan(context.Context, *models.ScanLog) {}

// deps are the collaborators shared by every service.
type deps struct {
	logger    *slog.Logger
	recorder  Recorder
	publisher Publisher
	now       func() time.Time
	newID     func() string
	timeout   time.Duration
}

type Option func(*deps)

func WithLogger(l *slog.Logger) Option {
	return func(d *deps) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(d *deps) {
		if r != nil {
			d.recorder = r
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(d *deps) {
		if p != nil {
			d.publisher = p
		}
	}
}

// WithClock replaces time.Now. Timestamps are truncated to microseconds,
// the precision every store keeps.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(d *deps) { d.newID = newID }
}

// WithStoreTimeout bounds each call into the store. Zero means the caller's
// context alone decides.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(d *deps) { d.timeout = timeout }
}

func newDeps(opts []Option) deps {
	d := deps{
		logger:    slog.Default(),
		recorder:  noopRecorder{},
		publisher: noopPublisher{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func (d *deps) clock() time.Time {
	return d.now().UTC().Truncate(time.Microsecond)
}

func (d *deps) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.timeout)
}
