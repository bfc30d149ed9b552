package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000", // local dashboards
}

// CORS returns middleware that applies the dashboards' allowed origin policy.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := origins
	if len(allowed) == 0 {
		allowed = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, "X-Request-Id", "X-Requested-With"},
		// dashboards read these to back off and to tell a replayed dispatch from a fresh one
		ExposedHeaders: []string{"X-Request-Id", "Retry-After", ReplayedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
