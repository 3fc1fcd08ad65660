package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"ticket-checkin/config"
	"ticket-checkin/internal/realtime"
	"ticket-checkin/internal/services"
	"ticket-checkin/internal/store"
	"ticket-checkin/internal/store/memstore"
	"ticket-checkin/internal/store/redisstore"
	"ticket-checkin/internal/store/sqlstore"
	"ticket-checkin/monitoring"
	"ticket-checkin/security"
	"ticket-checkin/utils"
)

// environment holds the process-wide dependencies. It is wired once, after
// pocketbase has bootstrapped its database.
type environment struct {
	cfg *config.Config

	redis   *redis.Client
	store   store.Store
	monitor *monitoring.Monitor
	feed    *realtime.ScanFeed
	limiter *security.RateLimiter

	issuer  *services.Issuer
	arbiter *services.Arbiter
	admin   *services.TicketAdmin
	events  *services.EventService
}

func newEnvironment(cfg *config.Config) *environment {
	return &environment{cfg: cfg}
}

func (env *environment) wire(ctx context.Context, app core.App) error {
	if env.store != nil {
		return nil
	}
	cfg := env.cfg
	logger := slog.Default()

	rdb, err := connectRedis(ctx, cfg, utils.NewRedisClient, logger)
	if err != nil {
		return err
	}
	env.redis = rdb

	st, err := openStore(cfg.StoreDriver, app, env.redis)
	if err != nil {
		return err
	}
	env.store = st

	env.monitor = monitoring.NewMonitor(env.redis)
	env.monitor.Start(ctx)

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithRecorder(env.monitor),
		services.WithStoreTimeout(cfg.StoreTimeout),
	}

	if cfg.PubNubEnabled() {
		feed, err := realtime.NewScanFeed(cfg, logger)
		if err != nil {
			return fmt.Errorf("pubnub: %w", err)
		}
		env.feed = feed
		opts = append(opts, services.WithPublisher(feed))
	}

	if cfg.PublicRegistration && env.redis != nil {
		env.limiter = security.NewRateLimiter(env.redis, "register", cfg.RegistrationRateLimit, cfg.RegistrationRateWindow)
	}

	env.issuer = services.NewIssuer(st, cfg.SecretBytes, cfg.MaxSecretAttempts, opts...)
	env.arbiter = services.NewArbiter(st, cfg.MaxVerifyRounds, opts...)
	env.admin = services.NewTicketAdmin(st, opts...)
	env.events = services.NewEventService(st, cfg.ScanLogLimit, opts...)

	logger.Info("Check-in services wired", "store", cfg.StoreDriver, "realtime", env.feed != nil)
	return nil
}

type redisDialer func(ctx context.Context, url string, poolSize int) (*redis.Client, error)

// connectRedis dials Redis when a component can use it. Only the redis store
// requires it; otherwise an unreachable server leaves registration
// unthrottled and is logged.
func connectRedis(ctx context.Context, cfg *config.Config, dial redisDialer, logger *slog.Logger) (*redis.Client, error) {
	if !cfg.WantsRedis() {
		return nil, nil
	}

	rdb, err := dial(ctx, cfg.RedisURL, cfg.RedisPoolSize)
	if err == nil {
		return rdb, nil
	}
	if cfg.NeedsRedis() {
		return nil, fmt.Errorf("redis: %w", err)
	}

	logger.Warn("Redis unreachable, public registration runs without a rate limit", "error", err)
	return nil, nil
}

func openStore(driver string, app core.App, rdb *redis.Client) (store.Store, error) {
	switch driver {
	case config.DriverSQLite:
		db, ok := app.NonconcurrentDB().(*dbx.DB)
		if !ok {
			return nil, fmt.Errorf("sqlite: unexpected database handle %T", app.NonconcurrentDB())
		}
		return sqlstore.New(db), nil
	case config.DriverRedis:
		return redisstore.New(rdb), nil
	case config.DriverMemory:
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

func (env *environment) close(ctx context.Context) {
	if env.feed != nil {
		if err := env.feed.Close(ctx); err != nil {
			slog.Error("Scan feed close", "error", err)
		}
	}
	if env.store != nil {
		if err := env.store.Close(); err != nil {
			slog.Error("Store close", "error", err)
		}
	}
	if env.redis != nil {
		if err := env.redis.Close(); err != nil {
			slog.Error("Redis close", "error", err)
		}
	}
}
