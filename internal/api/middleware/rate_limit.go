package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type rateLimitTier int

const (
	tierGet rateLimitTier = iota
	tierWrite
)

// RateLimiter holds per-IP token buckets for read and write requests.
type RateLimiter struct {
	getPerMin   int
	writePerMin int

	mu    sync.Mutex
	get   map[string]*rate.Limiter
	write map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter. A non-positive rate disables that tier.
func NewRateLimiter(getPerMin, writePerMin int) *RateLimiter {
	return &RateLimiter{
		getPerMin:   getPerMin,
		writePerMin: writePerMin,
		get:         make(map[string]*rate.Limiter),
		write:       make(map[string]*rate.Limiter),
	}
}

func (l *RateLimiter) perMin(t rateLimitTier) int {
	if t == tierGet {
		return l.getPerMin
	}
	return l.writePerMin
}

func (l *RateLimiter) limiter(ip string, t rateLimitTier) *rate.Limiter {
	m := l.write
	if t == tierGet {
		m = l.get
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := m[ip]; ok {
		return lim
	}
	perMin := l.perMin(t)
	lim := rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin)
	m[ip] = lim
	return lim
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		addr = addr[:idx]
	}
	return addr
}

func tierForRequest(r *http.Request) rateLimitTier {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return tierGet
	}
	return tierWrite
}

// isLoopback returns true for localhost/loopback IPs (127.x.x.x and ::1).
// The local UI polls from loopback and is never limited.
func isLoopback(ip string) bool {
	ip = strings.Trim(ip, "[]")
	if ip == "::1" || ip == "localhost" {
		return true
	}
	return strings.HasPrefix(ip, "127.")
}

// Middleware limits requests per IP. /health, /metrics, websocket upgrades and
// loopback are exempt. Rejections get 429 with Retry-After and X-RateLimit-* headers.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" || strings.HasPrefix(path, "/ws/") {
			next.ServeHTTP(w, r)
			return
		}
		ip := getClientIP(r)
		if isLoopback(ip) {
			next.ServeHTTP(w, r)
			return
		}
		tier := tierForRequest(r)
		perMin := l.perMin(tier)
		if perMin <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		limiter := l.limiter(ip, tier)
		reservation := limiter.Reserve()
		if delay := reservation.Delay(); !reservation.OK() || delay > 0 {
			reservation.Cancel()
			retryAfter := int(delay.Seconds()) + 1
			if !reservation.OK() || retryAfter > 60 {
				retryAfter = 60
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(perMin))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Duration(retryAfter)*time.Second).Unix(), 10))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many requests","code":"RATE_LIMIT_EXCEEDED","message":"Too many requests. Please retry later."}`))
			return
		}
		tokens := int(limiter.Tokens())
		if tokens < 0 {
			tokens = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(perMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(tokens))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
		next.ServeHTTP(w, r)
	})
}
