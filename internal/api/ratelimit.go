package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/neuassist/neuassist/internal/log"
)

// staleBucket is how long an idle IP keeps its token bucket. sweepEvery
// bounds how often the map is scanned for stale entries.
const (
	staleBucket = 10 * time.Minute
	sweepEvery  = 256
)

// rateLimitConfig is derived from ServerConfig when the middleware stack is
// assembled.
type rateLimitConfig struct {
	perSecond  rate.Limit
	burst      int
	trustProxy bool
}

// ipLimiter hands out one token bucket per client IP. Stale buckets are
// swept opportunistically inside allow, every sweepEvery calls, so no
// background goroutine is needed.
type ipLimiter struct {
	cfg rateLimitConfig

	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
}

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(cfg rateLimitConfig) *ipLimiter {
	return &ipLimiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	l.calls++
	if l.calls%sweepEvery == 0 {
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) > staleBucket {
				delete(l.buckets, key)
			}
		}
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(l.cfg.perSecond, l.cfg.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.tokens.Allow()
}

// middleware rejects requests from IPs that exhausted their bucket with a
// 429 and a Retry-After hint.
func (l *ipLimiter) middleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := l.clientIP(r)
			if !l.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the bucket key for a request. Behind a trusted proxy the
// X-Real-IP and X-Forwarded-For headers are consulted, but only values that
// parse as IPs are accepted so clients cannot forge arbitrary bucket keys.
// Otherwise the key comes from RemoteAddr alone.
func (l *ipLimiter) clientIP(r *http.Request) string {
	if l.cfg.trustProxy {
		for _, raw := range []string{
			r.Header.Get("X-Real-IP"),
			firstForwarded(r.Header.Get("X-Forwarded-For")),
		} {
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// firstForwarded returns the first (client-most) entry of an
// X-Forwarded-For list.
func firstForwarded(xff string) string {
	if first, _, ok := strings.Cut(xff, ","); ok {
		return first
	}
	return xff
}
