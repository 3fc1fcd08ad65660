package services

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"ticket-checkin/internal/status"
	"ticket-checkin/internal/store"
	"ticket-checkin/models"
)

const MaxScanLogLimit = 1000

type EventStore interface {
	store.EventStore
	CountTickets(ctx context.Context, eventID string) (*models.EventStats, error)
	ListScanLogs(ctx context.Context, filter store.ScanLogFilter) ([]*models.ScanLog, error)
}

type CreateEventRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Venue       string     `json:"venue"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

func (r CreateEventRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
		validation.Field(&r.Venue, validation.Length(0, 200)),
		validation.Field(&r.StartsAt, validation.Required),
		validation.Field(&r.EndsAt, validation.By(func(value interface{}) error {
			var ends time.Time
			switch v := value.(type) {
			case *time.Time:
				if v == nil {
					return nil
				}
				ends = *v
			case time.Time:
				ends = v
			}
			if !ends.IsZero() && ends.Before(r.StartsAt) {
				return errors.New("must not be before starts_at")
			}
			return nil
		})),
	)
}

type EventService struct {
	deps
	store    EventStore
	logLimit int
}

func NewEventService(events EventStore, logLimit int, opts ...Option) *EventService {
	if logLimit <= 0 {
		logLimit = store.DefaultScanLogLimit
	}
	return &EventService{deps: newDeps(opts), store: events, logLimit: logLimit}
}

func (s *EventService) Create(ctx context.Context, req CreateEventRequest) (*models.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Venue = strings.TrimSpace(req.Venue)

	if err := req.Validate(); err != nil {
		return nil, status.Invalid("%v", err)
	}

	event := &models.Event{
		ID:          s.newID(),
		Name:        req.Name,
		Description: req.Description,
		Venue:       req.Venue,
		StartsAt:    req.StartsAt.UTC().Truncate(time.Microsecond),
		CreatedAt:   s.clock(),
	}
	if req.EndsAt != nil {
		ends := req.EndsAt.UTC().Truncate(time.Microsecond)
		event.EndsAt = &ends
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.CreateEvent(ctx, event); err != nil {
		s.logger.Error("Failed to create event", "error", err, "name", event.Name)
		return nil, status.Unavailable(err)
	}

	s.logger.Info("Event created", "event_id", event.ID, "name", event.Name)
	return event, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, status.Invalid("event id is required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, status.Unavailable(err)
	}
	return event, nil
}

func (s *EventService) List(ctx context.Context) ([]*models.Event, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, status.Unavailable(err)
	}
	return events, nil
}

func (s *EventService) Stats(ctx context.Context, id string) (*models.EventStats, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stats, err := s.store.CountTickets(ctx, event.ID)
	if err != nil {
		return nil, status.Unavailable(err)
	}
	return stats, nil
}

// Logs returns the event's scan log, newest first.
func (s *EventService) Logs(ctx context.Context, id string, limit int) ([]*models.ScanLog, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = s.logLimit
	case limit > MaxScanLogLimit:
		limit = MaxScanLogLimit
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	logs, err := s.store.ListScanLogs(ctx, store.ScanLogFilter{EventID: event.ID, Limit: limit})
	if err != nil {
		return nil, status.Unavailable(err)
	}
	return logs, nil
}
