package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_HealthBypass(t *testing.T) {
	h := NewRateLimiter(1, 1).Middleware(okHandler())
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_GetExceedsLimit(t *testing.T) {
	const perMin = 5
	h := NewRateLimiter(perMin, 1).Middleware(okHandler())

	for i := 0; i < perMin+1; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/views/x", nil)
		req.RemoteAddr = "192.168.1.2:12345"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if i < perMin {
			assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
			assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_TiersAreIndependent(t *testing.T) {
	h := NewRateLimiter(1, 1).Middleware(okHandler())
	do := func(method string) int {
		req := httptest.NewRequest(method, "/api/v1/views/x/select", nil)
		req.RemoteAddr = "192.168.1.3:12345"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, do(http.MethodPost))
	assert.Equal(t, http.StatusOK, do(http.MethodGet))
	assert.Equal(t, http.StatusTooManyRequests, do(http.MethodPost))
}

func TestRateLimit_LoopbackAndDisabled(t *testing.T) {
	h := NewRateLimiter(1, 0).Middleware(okHandler())
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/layouts", nil)
		req.RemoteAddr = "127.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		req = httptest.NewRequest(http.MethodPost, "/api/v1/views", nil)
		req.RemoteAddr = "10.1.1.1:5555"
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "write tier disabled")
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	assert.True(t, isLoopback(getClientIP(req)))
}
