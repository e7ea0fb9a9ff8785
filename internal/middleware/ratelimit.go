package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

const (
	bucketPages       = "pages"
	bucketCredentials = "credentials"

	limiterIdleTTL   = 10 * time.Minute
	limiterSweepSize = 1000
)

var rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "portal_rate_limited_total",
	Help: "Requests refused by the per-client rate limiter.",
}, []string{"bucket"})

// visitor holds one client's budgets. pages is nil when ordinary pages are
// unlimited.
type visitor struct {
	pages       *rate.Limiter
	credentials *rate.Limiter
	lastSeen    time.Time
}

// RateLimitMiddleware limits requests per client IP. Login and register
// submissions draw from their own, tighter budget so a password-guessing
// loop cannot hide behind ordinary page traffic.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int

	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

// NewRateLimitMiddleware builds the limiter. A generalRPM of zero or less
// leaves ordinary pages unlimited; authRPM falls back to 10.
func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if authRPM <= 0 {
		authRPM = 10
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		visitors:   map[string]*visitor{},
		now:        time.Now,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := m.visitor(extractClientIP(r))

		limiter, bucket := v.pages, bucketPages
		if isCredentialSubmission(r) {
			limiter, bucket = v.credentials, bucketCredentials
		}

		if limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		reservation := limiter.ReserveN(m.now(), 1)
		if delay := reservation.DelayFrom(m.now()); delay > 0 {
			reservation.Cancel()
			rateLimited.WithLabelValues(bucket).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isCredentialSubmission(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}

	switch strings.TrimRight(strings.ToLower(r.URL.Path), "/") {
	case "/auth/login", "/auth/register":
		return true
	default:
		return false
	}
}

func perMinute(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

func (m *RateLimitMiddleware) visitor(clientIP string) *visitor {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v, ok := m.visitors[clientIP]
	if !ok {
		if len(m.visitors) >= limiterSweepSize {
			m.sweepLocked(now)
		}

		v = &visitor{credentials: perMinute(m.authRPM)}
		if m.generalRPM > 0 {
			v.pages = perMinute(m.generalRPM)
		}
		m.visitors[clientIP] = v
	}
	v.lastSeen = now

	return v
}

func (m *RateLimitMiddleware) sweepLocked(now time.Time) {
	cutoff := now.Add(-limiterIdleTTL)
	for ip, v := range m.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(m.visitors, ip)
		}
	}
}

// extractClientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection address.
func extractClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr == "" {
		return "unknown"
	}
	return addr
}
