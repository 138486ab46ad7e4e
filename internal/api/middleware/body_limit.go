package middleware

import "net/http"

// DefaultMaxBodyBytes bounds event payloads. Scope and filter bodies are tiny.
const DefaultMaxBodyBytes = 64 * 1024

// MaxBodySize limits request bodies to max bytes.
func MaxBodySize(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}
