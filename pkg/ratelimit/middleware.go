package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

type limitError struct {
	ErrorID   string `json:"errorId"`
	ErrorText string `json:"errorText"`
}

// KeyFunc derives the limiter key from a request.
type KeyFunc func(r *http.Request) string

// Middleware returns a handler wrapper that rejects requests with 429
// once the key's bucket is drained.
func Middleware(limiter *Limiter, keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFn(r)) {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, limitError{
					ErrorID:   "rate_limited",
					ErrorText: "too many attempts, retry later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the originating client address, preferring proxy
// headers over the socket peer.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
