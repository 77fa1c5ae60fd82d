package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerIPBuckets(t *testing.T) {
	h := NewRateLimiter(1, 2, newTestLogger()).Handler()(okHandler)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews/1/report", nil)
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.5"))
	assert.Equal(t, http.StatusOK, send("203.0.113.5"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.5"))
	assert.Equal(t, http.StatusOK, send("203.0.113.6"))
}

func TestRateLimiter_SeparateRouteGroups(t *testing.T) {
	l := NewRateLimiter(1, 1, newTestLogger())
	helpful := l.Handler()(okHandler)
	report := l.Handler()(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "198.51.100.1:1"

	rec := httptest.NewRecorder()
	helpful.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	report.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	helpful.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))
}

func TestVisitorStore_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newVisitorStore(1, 1, time.Minute)
	s.now = func() time.Time { return now }

	s.allow("a")
	now = now.Add(2 * time.Minute)
	s.allow("b")
	s.sweep()

	assert.NotContains(t, s.visitors, "a")
	assert.Contains(t, s.visitors, "b")
}

func TestClientIP_UntrustedPeerIgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Real-IP", "192.0.2.2")
	req.Header.Set("X-Forwarded-For", "192.0.2.3")

	assert.Equal(t, "192.0.2.1", clientIP(req, nil))
}

func TestClientIP_TrustedProxy(t *testing.T) {
	proxies := parsePrefixes([]string{"10.0.0.0/8"}, newTestLogger())

	tests := []struct {
		name     string
		xff      string
		realIP   string
		expected string
	}{
		{"single hop", "192.0.2.3", "", "192.0.2.3"},
		{"chained proxies", "192.0.2.3, 10.0.0.7", "", "192.0.2.3"},
		{"spoofed left hop", "203.0.113.99, 192.0.2.3", "", "192.0.2.3"},
		{"real ip header", "", "192.0.2.2", "192.0.2.2"},
		{"garbage hop", "192.0.2.3, nonsense", "", "10.0.0.1"},
		{"no headers", "", "", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.expected, clientIP(req, proxies))
		})
	}
}

func TestRateLimiter_ForwardedForCannotEvadeLimit(t *testing.T) {
	h := NewRateLimiter(1, 1, newTestLogger()).Handler()(okHandler)

	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", nil)
		req.RemoteAddr = "203.0.113.5:4000"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.3"))
}

func TestRateLimiter_TrustedProxyBucketsPerClient(t *testing.T) {
	h := NewRateLimiter(1, 1, newTestLogger()).TrustProxies([]string{"10.0.0.0/8"}).Handler()(okHandler)

	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
	assert.Equal(t, http.StatusOK, send("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.77, 198.51.100.2"))
}
