package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore holds one token bucket per client IP and forgets IPs idle
// for longer than ttl.
type visitorStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

func newVisitorStore(limit rate.Limit, burst int, ttl time.Duration) *visitorStore {
	return &visitorStore{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *visitorStore) allow(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	v, ok := s.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (s *visitorStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for ip, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.ttl {
			delete(s.visitors, ip)
		}
	}
}

// RateLimiter enforces a per-IP token bucket. One limiter can guard several
// routes; each route group gets its own buckets via Handler.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	ttl    time.Duration
	logger *slog.Logger
	stores []*visitorStore
	mu     sync.Mutex

	// proxies are the peers whose forwarding headers are believed.
	proxies []netip.Prefix
}

// NewRateLimiter allows rps requests per second per IP with the given burst.
// Buckets are keyed on the connection's remote address until TrustProxies
// names the proxies allowed to report the client address.
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{limit: rate.Limit(rps), burst: burst, ttl: 3 * time.Minute, logger: logger}
}

// TrustProxies makes the limiter read X-Forwarded-For and X-Real-IP, but only
// on requests whose remote address is inside one of cidrs. Call it before
// Handler.
func (l *RateLimiter) TrustProxies(cidrs []string) *RateLimiter {
	l.proxies = parsePrefixes(cidrs, l.logger)
	return l
}

// Handler returns middleware backed by a fresh set of buckets. Over-limit
// requests get 429 RATE_LIMITED.
func (l *RateLimiter) Handler() func(http.Handler) http.Handler {
	store := newVisitorStore(l.limit, l.burst, l.ttl)
	l.mu.Lock()
	l.stores = append(l.stores, store)
	l.mu.Unlock()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, l.proxies)
			if !store.allow(ip) {
				l.logger.WarnContext(r.Context(), "rate limit exceeded", slog.String("ip", ip), slog.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Sweep evicts idle visitors every ttl until done is closed.
func (l *RateLimiter) Sweep(done <-chan struct{}) {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			l.mu.Lock()
			stores := append([]*visitorStore(nil), l.stores...)
			l.mu.Unlock()
			for _, s := range stores {
				s.sweep()
			}
		}
	}
}

// clientIP returns the remote address, or the forwarded client address when
// the remote address is a trusted proxy. Forwarded hops are walked from the
// right, skipping trusted proxies, so a client cannot pick its own bucket by
// prepending addresses.
func clientIP(r *http.Request, proxies []netip.Prefix) string {
	remote := remoteHost(r)
	if !containsAddr(proxies, remote) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			ip := net.ParseIP(hop)
			if ip == nil {
				return remote
			}
			if i == 0 || !containsAddr(proxies, hop) {
				return ip.String()
			}
		}
	}
	if ip := net.ParseIP(r.Header.Get("X-Real-IP")); ip != nil {
		return ip.String()
	}
	return remote
}
