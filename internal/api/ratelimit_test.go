package api

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		realIP     string
		forwarded  string
		want       string
	}{
		{name: "remote addr only", remoteAddr: "192.0.2.1:54321", want: "192.0.2.1"},
		{
			name:       "headers ignored without proxy trust",
			remoteAddr: "192.0.2.1:54321",
			realIP:     "203.0.113.9",
			want:       "192.0.2.1",
		},
		{
			name:       "x-real-ip wins",
			trustProxy: true,
			remoteAddr: "192.0.2.1:54321",
			realIP:     "203.0.113.9",
			forwarded:  "198.51.100.7",
			want:       "203.0.113.9",
		},
		{
			name:       "x-forwarded-for first entry",
			trustProxy: true,
			remoteAddr: "192.0.2.1:54321",
			forwarded:  "198.51.100.7, 10.0.0.1",
			want:       "198.51.100.7",
		},
		{
			name:       "forged non-ip header falls back",
			trustProxy: true,
			remoteAddr: "192.0.2.1:54321",
			realIP:     "not-an-ip",
			forwarded:  "also {junk}",
			want:       "192.0.2.1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newIPLimiter(rateLimitConfig{perSecond: 1, burst: 1, trustProxy: tt.trustProxy})
			r := httptest.NewRequest("GET", "/api/models", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := l.clientIP(r); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIPLimiter_BurstExhausts(t *testing.T) {
	l := newIPLimiter(rateLimitConfig{perSecond: 1, burst: 2})

	if !l.allow("192.0.2.1") || !l.allow("192.0.2.1") {
		t.Fatal("first two calls should be allowed")
	}
	if l.allow("192.0.2.1") {
		t.Error("third call within the burst window should be rejected")
	}
	if !l.allow("192.0.2.2") {
		t.Error("a different IP has its own bucket")
	}
}

func TestIPLimiter_SweepsStaleBuckets(t *testing.T) {
	l := newIPLimiter(rateLimitConfig{perSecond: 1, burst: 1})

	l.allow("192.0.2.1")
	l.mu.Lock()
	l.buckets["192.0.2.1"].lastSeen = time.Now().Add(-2 * staleBucket)
	l.mu.Unlock()

	for range sweepEvery {
		l.allow("192.0.2.2")
	}

	l.mu.Lock()
	_, ok := l.buckets["192.0.2.1"]
	l.mu.Unlock()
	if ok {
		t.Error("stale bucket survived the sweep")
	}
}
