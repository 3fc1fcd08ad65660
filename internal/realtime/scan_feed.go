// Package realtime publishes committed scan results to PubNub so door
// dashboards can follow check-ins live.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pubnub "github.com/pubnub/go/v7"

	"ticket-checkin/config"
	"ticket-checkin/models"
	"ticket-checkin/utils"
)

const maxInFlight = 64

type publishFunc func(channel string, message map[string]any) error

// ScanFeed is fire-and-forget: a publish never delays or changes a
// verification outcome. Failures trip a circuit breaker; when too many
// publishes are in flight new ones are dropped.
type ScanFeed struct {
	prefix   string
	publish  publishFunc
	breaker  *utils.CircuitBreaker
	logger   *slog.Logger
	inFlight chan struct{}
	wg       sync.WaitGroup
}

func NewScanFeed(cfg *config.Config, logger *slog.Logger) (*ScanFeed, error) {
	if !cfg.PubNubEnabled() {
		return nil, errors.New("pubnub publish and subscribe keys are required")
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUserID))
	pnCfg.PublishKey = cfg.PubNubPublishKey
	pnCfg.SubscribeKey = cfg.PubNubSubscribeKey
	pnCfg.SecretKey = cfg.PubNubSecretKey
	pn := pubnub.NewPubNub(pnCfg)

	publish := func(channel string, message map[string]any) error {
		_, st, err := pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		if err != nil {
			return err
		}
		if st.Error != nil {
			return st.Error
		}
		if st.StatusCode >= 400 {
			return fmt.Errorf("pubnub publish: status %d", st.StatusCode)
		}
		return nil
	}

	return newScanFeed(cfg.PubNubChannelPrefix, publish, utils.NewCircuitBreaker("pubnub"), logger), nil
}

func newScanFeed(prefix string, publish publishFunc, breaker *utils.CircuitBreaker, logger *slog.Logger) *ScanFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanFeed{
		prefix:   prefix,
		publish:  publish,
		breaker:  breaker,
		logger:   logger,
		inFlight: make(chan struct{}, maxInFlight),
	}
}

// Channel is the per-event channel dashboards subscribe to.
func Channel(prefix, eventID string) string {
	return prefix + "-" + eventID
}

// scanMessage carries no attendee identity.
func scanMessage(entry *models.ScanLog) map[string]any {
	return map[string]any{
		"type":       "scan",
		"id":         entry.ID,
		"result":     string(entry.Result),
		"ticket_id":  entry.TicketID,
		"event_id":   entry.EventID,
		"scanner_id": entry.ScannerID,
		"scanned_at": entry.ScannedAt.UTC().Format(time.RFC3339Nano),
	}
}

// PublishScan implements services.Publisher. Scans that matched no ticket
// have no event channel and are not published.
func (f *ScanFeed) PublishScan(_ context.Context, entry *models.ScanLog) {
	if entry == nil || entry.EventID == "" {
		return
	}

	select {
	case f.inFlight <- struct{}{}:
	default:
		f.logger.Warn("Scan feed saturated, dropping message", "event_id", entry.EventID, "result", entry.Result)
		return
	}

	channel := Channel(f.prefix, entry.EventID)
	message := scanMessage(entry)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() { <-f.inFlight }()

		err := f.breaker.Execute(func() error {
			return f.publish(channel, message)
		})
		switch {
		case errors.Is(err, utils.ErrCircuitOpen), errors.Is(err, utils.ErrTooManyRequests):
			f.logger.Debug("Scan feed circuit open, message skipped", "channel", channel)
		case err != nil:
			f.logger.Warn("Failed to publish scan", "error", err, "channel", channel)
		}
	}()
}

// Close waits for in-flight publishes or until ctx is done.
func (f *ScanFeed) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
