package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"ticket-checkin/models"
	"ticket-checkin/utils"
)

var (
	verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_verifications_total",
			Help: "Verification outcomes by result",
		},
		[]string{"result"},
	)

	verifyErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_verify_errors_total",
			Help: "Verifications that failed with a store error",
		},
	)

	verifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkin_verify_duration_seconds",
			Help:    "Time to reach a verification outcome",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_tickets_issued_total",
			Help: "Tickets issued",
		},
	)

	secretCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_secret_collisions_total",
			Help: "Secret uniqueness violations during issuance",
		},
	)

	raceRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_verify_race_retries_total",
			Help: "Conditional check-in updates lost to a concurrent writer",
		},
	)

	redisUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkin_redis_up",
			Help: "1 when the last Redis ping succeeded",
		},
	)
)

// Monitor records check-in metrics. The zero value is usable; a Redis
// client enables the periodic health gauge.
type Monitor struct {
	redis    *redis.Client
	interval time.Duration
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	return &Monitor{redis: redisClient, interval: 30 * time.Second}
}

// Start collects the Redis health gauge until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	if m.redis == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			m.collectRedisHealth(ctx)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (m *Monitor) collectRedisHealth(ctx context.Context) {
	if err := utils.RedisHealthCheck(ctx, m.redis); err != nil {
		redisUp.Set(0)
		return
	}
	redisUp.Set(1)
}

func (m *Monitor) TrackVerification(result models.ScanResult, d time.Duration) {
	verifications.WithLabelValues(string(result)).Inc()
	verifyDuration.Observe(d.Seconds())
}

func (m *Monitor) TrackVerifyError() { verifyErrors.Inc() }

func (m *Monitor) TrackRaceRetry() { raceRetries.Inc() }

func (m *Monitor) TrackTicketIssued() { ticketsIssued.Inc() }

func (m *Monitor) TrackSecretCollision() { secretCollisions.Inc() }
