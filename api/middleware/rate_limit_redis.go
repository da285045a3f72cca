package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisRateLimiter is a fixed-window counter shared by every instance
// behind the same Redis. It fails open when Redis is unreachable.
type RedisRateLimiter struct {
	Name    string
	Metrics RejectRecorder
	Logger  logrus.FieldLogger

	client redis.UniversalClient
	prefix string
	limit  int64
	window time.Duration
}

func NewRedisRateLimiter(client redis.UniversalClient, name string, limit int64, window time.Duration) *RedisRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{
		Name:   name,
		client: client,
		prefix: "rl:" + name,
		limit:  limit,
		window: window,
	}
}

// Allow counts one hit for key and reports whether it fits in the current
// window, plus how long until the window resets.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l.client == nil {
		return false, 0, errors.New("redis client is nil")
	}
	if key == "" {
		key = "unknown"
	}
	storeKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, storeKey).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, storeKey, l.window).Err(); err != nil {
			return false, 0, err
		}
	}
	retryAfter, err := l.client.PTTL(ctx, storeKey).Result()
	if err != nil {
		return false, 0, err
	}
	if retryAfter <= 0 {
		retryAfter = l.window
	}
	return count <= l.limit, retryAfter, nil
}

func (l *RedisRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, retryAfter, err := l.Allow(c.Request().Context(), c.RealIP())
			if err != nil {
				if l.Logger != nil {
					l.Logger.WithError(err).WithField("limiter", l.Name).Warn("rate limiter unavailable")
				}
				return next(c)
			}
			if !allowed {
				if l.Metrics != nil {
					l.Metrics.RecordRateLimited(l.Name)
				}
				seconds := int(retryAfter.Round(time.Second) / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}
