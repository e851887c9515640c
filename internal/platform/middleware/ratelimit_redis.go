package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RedisRateLimiter is a sliding-window limiter shared by every replica
// through Redis. It guards the routes that spend model-gateway credits.
type RedisRateLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisRateLimiter allows limit requests per window for each key.
func NewRedisRateLimiter(client redis.Cmdable, limit int, window time.Duration, logger zerolog.Logger) *RedisRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "sivia:ratelimit:",
		logger: logger,
		now:    time.Now,
	}
}

// Allow records one request for key and reports whether it fits the window,
// along with the number of requests already in the window. Redis errors
// fail open.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int64) {
	now := l.now()
	redisKey := l.prefix + key

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(now.Add(-l.window).UnixNano(), 10))
	card := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, redisKey, 2*l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("redis rate limit check failed, allowing request")
		return true, 0
	}

	count := card.Val()
	return count < int64(l.limit), count
}

// Middleware applies the limiter per authenticated user.
func (l *RedisRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l.limit <= 0 {
				return next(c)
			}
			allowed, count := l.Allow(c.Request().Context(), rateLimitKey(c))

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
			remaining := int64(l.limit) - count - 1
			if remaining < 0 {
				remaining = 0
			}
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				h.Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
				rateLimitedTotal.WithLabelValues("redis").Inc()
				return echo.NewHTTPError(http.StatusTooManyRequests, MsgRateLimited)
			}
			return next(c)
		}
	}
}
