package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ocx/backend/internal/device"
)

// Middleware returns an HTTP middleware enforcing per-device, per-tier rate
// limits. Localhost callers are exempt. On denial it writes a 429 JSON body
// and Retry-After/X-RateLimit-Tier headers; on allow it forwards the call
// and attaches X-RateLimit-Limit-Minute/X-RateLimit-Remaining-Minute/
// X-RateLimit-Tier to the response before calling Record.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := device.IdentifyRequest(r)
		if device.IsLocalhost(r.RemoteAddr) {
			next.ServeHTTP(w, r)
			return
		}

		result := l.Check(deviceID, r.URL.Path)
		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
			w.Header().Set("X-RateLimit-Tier", string(result.Tier))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error":              "rate_limited",
				"message":            "rate limit exceeded for tier " + string(result.Tier),
				"tier":               result.Tier,
				"retry_after_seconds": int(result.RetryAfter.Seconds()),
			})
			l.Record(deviceID, r.URL.Path, false)
			return
		}

		w.Header().Set("X-RateLimit-Limit-Minute", strconv.Itoa(result.LimitMinute))
		w.Header().Set("X-RateLimit-Remaining-Minute", strconv.Itoa(result.RemainingMinute))
		w.Header().Set("X-RateLimit-Tier", string(result.Tier))

		next.ServeHTTP(w, r)
		l.Record(deviceID, r.URL.Path, true)
	})
}
