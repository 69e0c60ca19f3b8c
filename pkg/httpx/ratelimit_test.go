package httpx_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/doorman/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("ignores forwarding headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1")
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("falls back to raw RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "unix-socket"
		require.Equal(t, "unix-socket", httpx.IPKeyExtractor(req))
	})
}

func TestClientIP(t *testing.T) {
	c, err := httpx.NewClientIP([]string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{name: "untrusted peer ignores xff", remote: "198.51.100.7:1", xff: "203.0.113.1", want: "198.51.100.7"},
		{name: "untrusted peer ignores x-real-ip", remote: "198.51.100.7:1", xri: "203.0.113.1", want: "198.51.100.7"},
		{name: "trusted peer uses xff", remote: "10.1.2.3:1", xff: "203.0.113.1", want: "203.0.113.1"},
		{name: "spoofed leftmost hop is skipped", remote: "10.1.2.3:1", xff: "1.1.1.1, 203.0.113.1, 10.9.9.9", want: "203.0.113.1"},
		{name: "all hops trusted uses leftmost", remote: "192.0.2.10:1", xff: "10.0.0.1, 10.0.0.2", want: "10.0.0.1"},
		{name: "trusted peer uses x-real-ip", remote: "192.0.2.10:1", xri: "203.0.113.9", want: "203.0.113.9"},
		{name: "trusted peer without headers", remote: "10.1.2.3:1", want: "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			require.Equal(t, tt.want, c.Key(req))
		})
	}

	t.Run("no trusted proxies", func(t *testing.T) {
		none, err := httpx.NewClientIP(nil)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:1"
		req.Header.Set("X-Forwarded-For", "203.0.113.1")
		require.Equal(t, "10.1.2.3", none.Key(req))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := httpx.NewClientIP([]string{"not-an-ip"})
		require.Error(t, err)
		_, err = httpx.NewClientIP([]string{"10.0.0.0/99"})
		require.Error(t, err)
	})
}

func TestMemoryLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := httpx.NewMemoryLimiter(httpx.RateLimitConfig{RequestsPerWindow: 5, Window: 15 * time.Minute})
	l.Now = func() time.Time { return now }
	ctx := context.Background()

	for i := range 5 {
		d, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, d.Allowed, "attempt %d", i+1)
		require.Equal(t, 4-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 15*time.Minute, d.RetryAfter)

	// Other keys are independent.
	d, err = l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	// Still blocked just before the oldest hit leaves the window.
	now = now.Add(15*time.Minute - time.Second)
	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, time.Second, d.RetryAfter)

	now = now.Add(time.Second)
	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	const limit = 5
	window := 15 * time.Minute
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start

	l := httpx.NewMemoryLimiter(httpx.RateLimitConfig{RequestsPerWindow: limit, Window: window})
	l.Now = func() time.Time { return now }

	// Five attempts every minute for 45 minutes.
	var allowed []time.Time
	for minute := range 45 {
		now = start.Add(time.Duration(minute) * time.Minute)
		for range 5 {
			d, err := l.Allow(context.Background(), "1.2.3.4")
			require.NoError(t, err)
			if d.Allowed {
				allowed = append(allowed, now)
			}
		}
	}

	// No window-long interval contains more than limit accepted attempts.
	for i, from := range allowed {
		n := 0
		for _, at := range allowed[i:] {
			if at.Before(from.Add(window)) {
				n++
			}
		}
		require.LessOrEqual(t, n, limit, "window starting %s", from.Sub(start))
	}
	require.Len(t, allowed, 3*limit)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute}
	h := httpx.RateLimitMiddleware(httpx.NewMemoryLimiter(cfg), cfg, httpx.IPKeyExtractor)(okHandler())

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do("192.0.2.1").Code)
	rec := do("192.0.2.1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do("192.0.2.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "rate_limit_exceeded")

	require.Equal(t, http.StatusOK, do("192.0.2.2").Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (httpx.Decision, error) {
	return httpx.Decision{}, errors.New("down")
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	h := httpx.RateLimitMiddleware(brokenLimiter{}, httpx.LoginLimit, httpx.IPKeyExtractor)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddlewareIgnoresSpoofedForwardedFor(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 5, Window: 15 * time.Minute}
	h := httpx.RateLimitMiddleware(httpx.NewMemoryLimiter(cfg), cfg, httpx.IPKeyExtractor)(okHandler())

	throttled := 0
	for i := range 20 {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			throttled++
		}
	}
	require.Equal(t, 15, throttled)
}
