package middleware

import (
	"net/http"

	"github.com/londonair/londonair/internal/api/models"
)

// Content security policies.
const (
	// APIPolicy forbids everything; JSON responses load nothing.
	APIPolicy = "default-src 'none'; frame-ancestors 'none'"

	// PagePolicy allows the map page its inline data blocks, the Leaflet
	// assets and OpenStreetMap tiles.
	PagePolicy = "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline' https://unpkg.com; " +
		"style-src 'self' 'unsafe-inline' https://unpkg.com; " +
		"img-src 'self' data: https://*.tile.openstreetmap.org; " +
		"frame-ancestors 'none'"
)

// SecurityHeaders sets the standard hardening headers with the given
// Content-Security-Policy.
func SecurityHeaders(policy string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Content-Security-Policy", policy)
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// The page asks for location to centre the map.
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(self)")

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTLS rejects requests a load balancer forwarded over plain HTTP.
// Requests without X-Forwarded-Proto are direct connections and pass.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" && proto != "https" {
				models.NewProblem(models.ProblemTypeTLSRequired, "TLS required", http.StatusForbidden, GetRequestID(r.Context())).
					WithDetail("This endpoint requires HTTPS").
					WithInstance(r.URL.Path).
					Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
