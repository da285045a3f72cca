package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RejectRecorder counts rejected requests per limiter name.
type RejectRecorder interface {
	RecordRateLimited(limiter string)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per client key kept in process memory.
// Buckets idle for longer than ttl are dropped when new keys arrive.
type RateLimiter struct {
	Name    string
	Metrics RejectRecorder
	// KeyFunc picks the bucket for a request; the client IP by default.
	KeyFunc func(c echo.Context) string

	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	ttl      time.Duration
}

func NewRateLimiter(name string, r rate.Limit, burst int, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		Name:     name,
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    burst,
		ttl:      ttl,
	}
}

func (l *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.allow(l.key(c), time.Now()) {
				if l.Metrics != nil {
					l.Metrics.RecordRateLimited(l.Name)
				}
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}

func (l *RateLimiter) key(c echo.Context) string {
	if l.KeyFunc != nil {
		return l.KeyFunc(c)
	}
	return c.RealIP()
}

func (l *RateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		l.evictIdle(now)
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *RateLimiter) evictIdle(now time.Time) {
	if l.ttl <= 0 {
		return
	}
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
}
