package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/hook"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter per client kept in Redis, so every
// server instance shares the same budget.
type RateLimiter struct {
	redis  *redis.Client
	scope  string
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, scope string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		scope:  scope,
		limit:  int64(limit),
		window: window,
	}
}

func (r *RateLimiter) key(client string) string {
	return fmt.Sprintf("ratelimit:%s:%s", r.scope, client)
}

// Allow counts one request for client. When the budget is spent it returns
// false and how long until the window resets.
func (r *RateLimiter) Allow(ctx context.Context, client string) (bool, time.Duration, error) {
	key := r.key(client)

	// The window's expiry is set in the same MULTI as the first increment.
	var incr *redis.IntCmd
	if _, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, r.window)
		incr = pipe.Incr(ctx, key)
		return nil
	}); err != nil {
		return false, 0, err
	}
	count := incr.Val()
	if count <= r.limit {
		return true, 0, nil
	}

	ttl, err := r.redis.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// The expiry was lost; start a fresh window.
		if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
			slog.Error("Rate limit window repair failed", "error", err, "key", key)
		}
		ttl = r.window
	}
	return false, ttl, nil
}

// Middleware rejects clients over budget with 429. Clients are keyed by
// e.RealIP, which only honours forwarded headers listed in the app's trusted
// proxy settings. A Redis failure lets the request through.
func (r *RateLimiter) Middleware() *hook.Handler[*core.RequestEvent] {
	return &hook.Handler[*core.RequestEvent]{
		Id: "checkinRateLimit_" + r.scope,
		Func: func(e *core.RequestEvent) error {
			client := e.RealIP()

			ok, retryAfter, err := r.Allow(e.Request.Context(), client)
			if err != nil {
				slog.Error("Rate limiter unavailable", "error", err, "scope", r.scope)
				return e.Next()
			}
			if !ok {
				seconds := int(retryAfter.Round(time.Second) / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				e.Response.Header().Set("Retry-After", strconv.Itoa(seconds))
				slog.Warn("Rate limit exceeded", "scope", r.scope, "client", client)
				return router.NewApiError(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
			}
			return e.Next()
		},
	}
}
