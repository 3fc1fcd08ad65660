package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Config struct {
	// Server configuration
	Environment string

	// Store configuration
	StoreDriver  string
	StoreTimeout time.Duration

	// Redis configuration
	RedisURL      string
	RedisPoolSize int

	// PubNub configuration
	PubNubPublishKey    string
	PubNubSubscribeKey  string
	PubNubSecretKey     string
	PubNubUserID        string
	PubNubChannelPrefix string

	// Ticket configuration
	SecretBytes       int
	MaxSecretAttempts int
	MaxVerifyRounds   int
	ScanLogLimit      int

	// Public registration. Rate limiting uses Redis when it is reachable;
	// without it registration stays open and unthrottled.
	PublicRegistration     bool
	RegistrationRateLimit  int
	RegistrationRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Store
		StoreDriver:  getEnv("STORE_DRIVER", DriverSQLite),
		StoreTimeout: getEnvAsDuration("STORE_TIMEOUT", "5s"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPoolSize: getEnvAsInt("REDIS_POOL_SIZE", 50),

		// PubNub
		PubNubPublishKey:    getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey:  getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:     getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:        getEnv("PUBNUB_USER_ID", "checkin-server"),
		PubNubChannelPrefix: getEnv("PUBNUB_CHANNEL_PREFIX", "checkin"),

		// Tickets
		SecretBytes:       getEnvAsInt("SECRET_BYTES", 24),
		MaxSecretAttempts: getEnvAsInt("MAX_SECRET_ATTEMPTS", 5),
		MaxVerifyRounds:   getEnvAsInt("MAX_VERIFY_ROUNDS", 3),
		ScanLogLimit:      getEnvAsInt("SCAN_LOG_LIMIT", 200),

		// Registration
		PublicRegistration:     getEnvAsBool("PUBLIC_REGISTRATION", true),
		RegistrationRateLimit:  getEnvAsInt("REGISTRATION_RATE_LIMIT", 10),
		RegistrationRateWindow: getEnvAsDuration("REGISTRATION_RATE_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

// Validate reports every setting that would make the process misbehave.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverSQLite, DriverRedis, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", c.StoreDriver))
	}
	if c.SecretBytes < 16 {
		errs = append(errs, fmt.Errorf("SECRET_BYTES: need at least 16 bytes (128 bits), got %d", c.SecretBytes))
	}
	if c.MaxSecretAttempts < 1 {
		errs = append(errs, errors.New("MAX_SECRET_ATTEMPTS: must be positive"))
	}
	if c.MaxVerifyRounds < 2 {
		errs = append(errs, fmt.Errorf("MAX_VERIFY_ROUNDS: need at least 2 (a write and a re-read), got %d", c.MaxVerifyRounds))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT: must be positive"))
	}
	if c.PublicRegistration && c.RegistrationRateLimit < 1 {
		errs = append(errs, errors.New("REGISTRATION_RATE_LIMIT: must be positive when public registration is on"))
	}

	return errors.Join(errs...)
}

// PubNubEnabled reports whether the live scan feed can be published.
func (c *Config) PubNubEnabled() bool {
	return c.PubNubPublishKey != "" && c.PubNubSubscribeKey != ""
}

// NeedsRedis reports whether startup must fail without Redis.
func (c *Config) NeedsRedis() bool {
	return c.StoreDriver == DriverRedis
}

// WantsRedis reports whether any configured component can use Redis.
func (c *Config) WantsRedis() bool {
	return c.NeedsRedis() || c.PublicRegistration
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
