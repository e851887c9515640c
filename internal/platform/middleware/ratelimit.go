package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// MsgRateLimited is the body of every 429 answered by this service, local or
// relayed from the model gateway.
const MsgRateLimited = "Limite de requisições excedido. Aguarde um momento e tente novamente."

// RateLimitConfig sizes the per-caller token bucket. Buckets unused for
// IdleTTL are dropped.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	IdleTTL           time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
		IdleTTL:           10 * time.Minute,
	}
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// localLimiter keeps one bucket per caller in process memory.
type localLimiter struct {
	cfg       RateLimitConfig
	now       func() time.Time
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLocalLimiter(cfg RateLimitConfig) *localLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	return &localLimiter{cfg: cfg, now: time.Now, buckets: make(map[string]*bucket)}
}

// take spends one token for key. It reports whether the call is allowed, the
// whole tokens left and, when refused, the seconds until the next token.
func (l *localLimiter) take(key string) (ok bool, remaining int, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	burst := float64(l.cfg.BurstSize)
	b, found := l.buckets[key]
	if !found {
		b = &bucket{tokens: burst, lastSeen: now}
		l.buckets[key] = b
	}
	b.tokens = math.Min(burst, b.tokens+now.Sub(b.lastSeen).Seconds()*l.cfg.RequestsPerSecond)
	b.lastSeen = now

	if b.tokens < 1 {
		wait := 1
		if l.cfg.RequestsPerSecond > 0 {
			wait = int(math.Ceil((1 - b.tokens) / l.cfg.RequestsPerSecond))
		}
		return false, 0, wait
	}
	b.tokens--
	return true, int(b.tokens), 0
}

func (l *localLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.IdleTTL {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.cfg.IdleTTL {
			delete(l.buckets, k)
		}
	}
}

func (l *localLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// rateLimitKey identifies the caller: the authenticated user when the auth
// middleware ran first, the client IP otherwise.
func rateLimitKey(c echo.Context) string {
	if uid, ok := c.Get("user_id").(string); ok && uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.RealIP()
}

// RateLimit returns an in-process token bucket limiter.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(newLocalLimiter(cfg))
}

func rateLimit(l *localLimiter) echo.MiddlewareFunc {
	limit := strconv.Itoa(l.cfg.BurstSize)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, remaining, retry := l.take(rateLimitKey(c))
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				h.Set("Retry-After", strconv.Itoa(retry))
				rateLimitedTotal.WithLabelValues("local").Inc()
				return echo.NewHTTPError(http.StatusTooManyRequests, MsgRateLimited)
			}
			return next(c)
		}
	}
}
