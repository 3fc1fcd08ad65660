package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"ticket-checkin/internal/status"
	"ticket-checkin/models"
	"ticket-checkin/utils"
)

const (
	DefaultSecretBytes       = 24
	DefaultMaxSecretAttempts = 5
)

type IssuerStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
}

type IssueRequest struct {
	EventID       string `json:"event_id"`
	AttendeeName  string `json:"attendee_name"`
	AttendeeEmail string `json:"attendee_email"`
}

func (r IssueRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EventID, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.AttendeeName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.AttendeeEmail, validation.Length(0, 254), is.EmailFormat),
	)
}

// Issuer creates tickets with fresh secrets. A secret collision is detected
// by the store's uniqueness constraint and retried with a new secret a
// bounded number of times.
type Issuer struct {
	deps
	store       IssuerStore
	secretBytes int
	maxAttempts int
	secrets     func(n int) (string, error)
}

func NewIssuer(store IssuerStore, secretBytes, maxAttempts int, opts ...Option) *Issuer {
	if secretBytes < utils.MinSecretBytes {
		secretBytes = DefaultSecretBytes
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxSecretAttempts
	}
	return &Issuer{
		deps:        newDeps(opts),
		store:       store,
		secretBytes: secretBytes,
		maxAttempts: maxAttempts,
		secrets:     utils.GenerateSecret,
	}
}

func (s *Issuer) Issue(ctx context.Context, req IssueRequest) (*models.Ticket, error) {
	req.EventID = strings.TrimSpace(req.EventID)
	req.AttendeeName = strings.TrimSpace(req.AttendeeName)
	req.AttendeeEmail = strings.TrimSpace(req.AttendeeEmail)

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrInvalidInput, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.store.GetEvent(ctx, req.EventID); err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return nil, status.ErrEventNotFound
		}
		s.logger.Error("Failed to load event for issuance", "error", err, "event_id", req.EventID)
		return nil, status.Unavailable(err)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		secret, err := s.secrets(s.secretBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", status.ErrIssuanceFailed, err)
		}

		ticket := &models.Ticket{
			ID:            s.newID(),
			EventID:       req.EventID,
			AttendeeName:  req.AttendeeName,
			AttendeeEmail: req.AttendeeEmail,
			Secret:        secret,
			Status:        models.TicketIssued,
			CreatedAt:     s.clock(),
		}

		err = s.store.CreateTicket(ctx, ticket)
		switch {
		case err == nil:
			s.recorder.TrackTicketIssued()
			s.logger.Info("Ticket issued", "ticket_id", ticket.ID, "event_id", ticket.EventID, "attempt", attempt)
			return ticket, nil
		case errors.Is(err, status.ErrUniquenessViolation):
			s.recorder.TrackSecretCollision()
			s.logger.Warn("Ticket secret collision, regenerating",
				"event_id", req.EventID, "attempt", attempt, "max_attempts", s.maxAttempts)
		case errors.Is(err, status.ErrNotFound):
			return nil, status.ErrEventNotFound
		default:
			s.logger.Error("Failed to create ticket", "error", err, "event_id", req.EventID)
			return nil, status.Unavailable(err)
		}
	}

	s.logger.Error("Ticket issuance exhausted secret attempts", "event_id", req.EventID, "attempts", s.maxAttempts)
	return nil, fmt.Errorf("%w: secret collided %d times", status.ErrIssuanceFailed, s.maxAttempts)
}
