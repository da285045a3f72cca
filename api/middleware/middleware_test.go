package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"describly/internal/entity"
	"describly/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type stubAuthenticator struct {
	fn func(ctx context.Context, token string) (*entity.User, service.AccessIdentity, error)
}

func (s stubAuthenticator) Authenticate(ctx context.Context, token string) (*entity.User, service.AccessIdentity, error) {
	return s.fn(ctx, token)
}

type rejectCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *rejectCounter) RecordRateLimited(limiter string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[limiter]++
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	auth := stubAuthenticator{fn: func(_ context.Context, token string) (*entity.User, service.AccessIdentity, error) {
		switch token {
		case "good":
			return &entity.User{ID: 7}, service.AccessIdentity{UserID: 7, TokenID: 42}, nil
		case "inactive":
			return nil, service.AccessIdentity{}, service.ErrDeactivated
		}
		return nil, service.AccessIdentity{}, service.ErrInvalidRequest
	}}
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		userID, ok := UserIDFromContext(c)
		if !ok || userID != 7 {
			return errors.New("missing user id")
		}
		tokenID, ok := TokenIDFromContext(c)
		if !ok || tokenID != 42 {
			return errors.New("missing token id")
		}
		return c.NoContent(http.StatusNoContent)
	}, AuthMiddleware{Auth: auth}.RequireAuth)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer good", http.StatusNoContent},
		{"lowercase scheme", "bearer good", http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"rejected token", "Bearer bad", http.StatusUnauthorized},
		{"deactivated", "Bearer inactive", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			if rec := serve(e, req); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	counter := &rejectCounter{}
	limiter := NewRateLimiter("login", rate.Limit(0.001), 2, time.Minute)
	limiter.Metrics = counter

	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, limiter.Middleware())

	request := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		return serve(e, req).Code
	}
	for i := 0; i < 2; i++ {
		if code := request("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := request("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected burst to be exhausted, got %d", code)
	}
	if code := request("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("expected other ip to pass, got %d", code)
	}
	if counter.counts["login"] != 1 {
		t.Fatalf("expected one recorded rejection, got %v", counter.counts)
	}
}

func newRedisLimiter(t *testing.T, limit int64, window time.Duration) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRateLimiter(client, "login", limit, window), server
}

func TestRedisRateLimiterWindow(t *testing.T) {
	limiter, server := newRedisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil || !allowed {
			t.Fatalf("hit %d: allowed=%v err=%v", i, allowed, err)
		}
	}
	allowed, retryAfter, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil || allowed {
		t.Fatalf("expected third hit to be limited, allowed=%v err=%v", allowed, err)
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("unexpected retry after %v", retryAfter)
	}
	if allowed, _, _ := limiter.Allow(ctx, "10.0.0.2"); !allowed {
		t.Fatal("expected separate key to be allowed")
	}

	server.FastForward(time.Minute + time.Second)
	if allowed, _, _ := limiter.Allow(ctx, "10.0.0.1"); !allowed {
		t.Fatal("expected a new window after expiry")
	}
}

func TestRedisRateLimiterMiddleware(t *testing.T) {
	limiter, server := newRedisLimiter(t, 1, time.Minute)
	counter := &rejectCounter{}
	limiter.Metrics = counter

	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, limiter.Middleware())
	request := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.9:4000"
		return serve(e, req)
	}

	if rec := request(); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	rec := request()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if counter.counts["login"] != 1 {
		t.Fatalf("expected one recorded rejection, got %v", counter.counts)
	}

	// Redis outages fail open.
	server.Close()
	if rec := request(); rec.Code != http.StatusOK {
		t.Fatalf("expected fail open when redis is down, got %d", rec.Code)
	}
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	limiter := NewRateLimiter("auth", rate.Limit(0.001), 1, time.Minute)
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	if !limiter.allow("a", start) {
		t.Fatal("expected first hit to pass")
	}
	if limiter.allow("a", start.Add(time.Second)) {
		t.Fatal("expected bucket to be empty")
	}
	// a new key after the ttl sweeps the idle bucket, so "a" starts fresh
	limiter.allow("b", start.Add(2*time.Minute))
	if _, ok := limiter.visitors["a"]; ok {
		t.Fatal("expected idle bucket to be evicted")
	}
	if !limiter.allow("a", start.Add(2*time.Minute)) {
		t.Fatal("expected evicted key to get a fresh bucket")
	}
}
