package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

// defaultCORSOrigins covers local development and the hosted app, including
// per-tenant subdomains.
var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://app.heraerp.com",
	"https://*.heraerp.com",
}

const corsMaxAge = 5 * time.Minute

// CORS applies the browser origin policy. Headers the write path sets
// (request id, rate limit, idempotent replay) are exposed to scripts.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, requestIDHeader},
		ExposedHeaders: []string{
			requestIDHeader,
			replayedHeader,
			"Retry-After",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		AllowCredentials: true,
		MaxAge:           int(corsMaxAge.Seconds()),
	})
}
