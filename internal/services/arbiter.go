package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-checkin/internal/status"
	"ticket-checkin/internal/store"
	"ticket-checkin/models"
)

const (
	MaxSecretLength        = 512
	MaxScannerIDLength     = 128
	DefaultMaxVerifyRounds = 3

	// MinVerifyRounds leaves room for the re-read after a lost conditional
	// update, so the loser reports the winner instead of an error.
	MinVerifyRounds = 2
)

type ArbiterStore interface {
	GetTicketBySecret(ctx context.Context, secret string) (*models.Ticket, error)
	ConditionalUpdateStatus(ctx context.Context, update store.ConditionalUpdate) (*models.Ticket, error)
	AppendScanLog(ctx context.Context, entry *models.ScanLog) error
}

type VerifyRequest struct {
	Secret    string `json:"secret"`
	ScannerID string `json:"scanner_id"`
}

// Arbiter decides whether a scanned secret admits its holder. Every outcome
// it returns has exactly one scan log entry behind it; when it returns an
// error, nothing was written.
type Arbiter struct {
	deps
	store     ArbiterStore
	maxRounds int
}

func NewArbiter(store ArbiterStore, maxRounds int, opts ...Option) *Arbiter {
	switch {
	case maxRounds < 1:
		maxRounds = DefaultMaxVerifyRounds
	case maxRounds < MinVerifyRounds:
		maxRounds = MinVerifyRounds
	}
	return &Arbiter{
		deps:      newDeps(opts),
		store:     store,
		maxRounds: maxRounds,
	}
}

func (a *Arbiter) Verify(ctx context.Context, req VerifyRequest) (*models.VerificationOutcome, error) {
	secret := strings.TrimSpace(req.Secret)
	scannerID := strings.TrimSpace(req.ScannerID)

	switch {
	case secret == "":
		return nil, status.Invalid("secret is required")
	case len(secret) > MaxSecretLength:
		return nil, status.Invalid("secret exceeds %d bytes", MaxSecretLength)
	case len(scannerID) > MaxScannerIDLength:
		return nil, status.Invalid("scanner_id exceeds %d bytes", MaxScannerIDLength)
	}

	start := time.Now()
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	for round := 1; ; round++ {
		ticket, err := a.store.GetTicketBySecret(ctx, secret)
		if errors.Is(err, status.ErrNotFound) {
			return a.record(ctx, start, &models.VerificationOutcome{Reason: models.ScanInvalid}, a.entry(nil, models.ScanInvalid, scannerID))
		}
		if err != nil {
			return nil, a.fail(err, "lookup", "")
		}

		switch ticket.Status {
		case models.TicketRevoked:
			return a.record(ctx, start, &models.VerificationOutcome{Reason: models.ScanRevoked}, a.entry(ticket, models.ScanRevoked, scannerID))

		case models.TicketCheckedIn:
			return a.record(ctx, start, &models.VerificationOutcome{Reason: models.ScanDuplicate, Ticket: ticket}, a.entry(ticket, models.ScanDuplicate, scannerID))

		case models.TicketIssued:
			entry := a.entry(ticket, models.ScanSuccess, scannerID)
			updated, err := a.store.ConditionalUpdateStatus(ctx, store.ConditionalUpdate{
				TicketID:    ticket.ID,
				EventID:     ticket.EventID,
				Expected:    models.TicketIssued,
				Next:        models.TicketCheckedIn,
				CheckedInAt: &entry.ScannedAt,
				Log:         entry,
			})
			if err == nil {
				return a.committed(ctx, start, &models.VerificationOutcome{Valid: true, Ticket: updated}, entry), nil
			}
			if !errors.Is(err, status.ErrPreconditionFailed) && !errors.Is(err, status.ErrNotFound) {
				return nil, a.fail(err, "check-in", ticket.ID)
			}

			// Lost the race; the next round reports whatever state won.
			a.recorder.TrackRaceRetry()
			if round >= a.maxRounds {
				return nil, a.fail(
					fmt.Errorf("%w: ticket %s still contended after %d rounds", status.ErrStoreUnavailable, ticket.ID, round),
					"check-in", ticket.ID)
			}

		default:
			return nil, a.fail(fmt.Errorf("ticket %s has unknown status %q", ticket.ID, ticket.Status), "lookup", ticket.ID)
		}
	}
}

func (a *Arbiter) entry(ticket *models.Ticket, result models.ScanResult, scannerID string) *models.ScanLog {
	entry := &models.ScanLog{
		ID:        a.newID(),
		ScannerID: scannerID,
		Result:    result,
		ScannedAt: a.clock(),
	}
	if ticket != nil {
		entry.TicketID = ticket.ID
		entry.EventID = ticket.EventID
	}
	return entry
}

// record appends the audit entry of an outcome that changes no ticket.
func (a *Arbiter) record(ctx context.Context, start time.Time, outcome *models.VerificationOutcome, entry *models.ScanLog) (*models.VerificationOutcome, error) {
	if err := a.store.AppendScanLog(ctx, entry); err != nil {
		return nil, a.fail(err, "audit", entry.TicketID)
	}
	return a.committed(ctx, start, outcome, entry), nil
}

func (a *Arbiter) committed(ctx context.Context, start time.Time, outcome *models.VerificationOutcome, entry *models.ScanLog) *models.VerificationOutcome {
	a.recorder.TrackVerification(entry.Result, time.Since(start))
	a.logger.Info("Ticket verified",
		"ticket_id", entry.TicketID,
		"result", entry.Result,
		"scanner_id", entry.ScannerID,
	)
	a.publisher.PublishScan(ctx, entry)
	return outcome
}

func (a *Arbiter) fail(err error, stage, ticketID string) error {
	a.recorder.TrackVerifyError()
	a.logger.Error("Verification failed", "error", err, "stage", stage, "ticket_id", ticketID)
	return status.Unavailable(err)
}
