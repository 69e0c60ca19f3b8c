package httpx

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/doorman/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
}

// Common profiles.
var (
	// LoginLimit guards credential checks against brute force.
	LoginLimit = RateLimitConfig{RequestsPerWindow: 5, Window: 15 * time.Minute}

	// APILimit applies to every route.
	APILimit = RateLimitConfig{RequestsPerWindow: 100, Window: 15 * time.Minute}
)

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts hits per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address)
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the address of the direct peer. Forwarding headers
// are ignored; use ClientIP behind a reverse proxy.
func IPKeyExtractor(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ClientIP resolves the caller's address. X-Forwarded-For and X-Real-IP are
// honoured only when the direct peer is one of the trusted proxies.
type ClientIP struct {
	trusted []netip.Prefix
}

// NewClientIP parses proxies, each a bare IP or a CIDR. An empty list trusts
// nobody, so every request is keyed on its socket address.
func NewClientIP(proxies []string) (*ClientIP, error) {
	c := &ClientIP{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("httpx: trusted proxy %q: %w", p, err)
			}
			c.trusted = append(c.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("httpx: trusted proxy %q: %w", p, err)
		}
		addr = addr.Unmap()
		c.trusted = append(c.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return c, nil
}

func (c *ClientIP) isTrusted(s string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Key is a KeyExtractor. X-Forwarded-For is walked right to left and the
// first hop that is not a trusted proxy is the client.
func (c *ClientIP) Key(r *http.Request) string {
	peer := IPKeyExtractor(r)
	if c == nil || !c.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !c.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

// MemoryLimiter is a per-process sliding-window log: a key may make at most
// RequestsPerWindow accepted hits in any Window-long interval. Rejected hits
// are not recorded.
type MemoryLimiter struct {
	cfg RateLimitConfig

	// Now overrides the clock, used by tests.
	Now func() time.Time

	mu          sync.Mutex
	hits        map[string][]time.Time
	lastCleanup time.Time
}

func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:         cfg,
		hits:        make(map[string][]time.Time),
		lastCleanup: time.Now(),
	}
}

func (l *MemoryLimiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeCleanup(now, cutoff)

	hits := prune(l.hits[key], cutoff)
	if len(hits) < l.cfg.RequestsPerWindow {
		hits = append(hits, now)
		l.hits[key] = hits
		return Decision{Allowed: true, Remaining: l.cfg.RequestsPerWindow - len(hits)}, nil
	}
	l.hits[key] = hits

	retry := l.cfg.Window
	if len(hits) > 0 {
		retry = hits[0].Add(l.cfg.Window).Sub(now)
	}
	return Decision{Allowed: false, RetryAfter: retry}, nil
}

// prune drops hits at or before cutoff. hits is ordered oldest first.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// maybeCleanup forgets keys with no hit inside the window. Caller holds mu.
func (l *MemoryLimiter) maybeCleanup(now, cutoff time.Time) {
	if now.Sub(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = now

	for key, hits := range l.hits {
		if len(prune(hits, cutoff)) == 0 {
			delete(l.hits, key)
		}
	}
}

// RateLimitMiddleware rejects requests once the key's budget is spent. A
// limiter error lets the request through: an unavailable counter store must
// not take logins down with it.
func RateLimitMiddleware(l Limiter, cfg RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	// A flood of rejected requests logs its first few and then one per second.
	warn := &rate.Sometimes{First: 5, Interval: time.Second}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			d, err := l.Allow(ctx, key)
			if err != nil {
				log.Error("rate limit: limiter unavailable, allowing request", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			if d.Allowed {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int(d.RetryAfter.Seconds()), 1)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())

			warn.Do(func() {
				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)
			})

			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limit_exceeded",
				"error_description": "Too many requests. Please try again later.",
			})
		})
	}
}
