// Package api provides the HTTP surface of the London air quality map.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/londonair/londonair/internal/api/handler"
	"github.com/londonair/londonair/internal/api/middleware"
	"github.com/londonair/londonair/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Service is the read path behind the page and the JSON endpoints.
	Service handler.AirQualityService

	// DB is pinged by the readiness and status checks. May be nil.
	DB handler.Pinger

	// Registry reports upstream circuit state on the status endpoint. May be nil.
	Registry *resilience.Registry

	// RequireTLS rejects plain HTTP requests that did not come through a TLS proxy.
	RequireTLS bool
}

// NewRouter creates a new chi router with the map page and the /v1 API.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "londonair"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB, cfg.Registry)
	pageHandler := handler.NewPageHandler(cfg.Service, cfg.Logger)
	airQualityHandler := handler.NewAirQualityHandler(cfg.Service, cfg.Logger)

	readRateLimit := middleware.RateLimitByIP(middleware.ReadRateLimit)         // 120 req/min
	upstreamRateLimit := middleware.RateLimitByIP(middleware.UpstreamRateLimit) // 30 req/min

	// The page fetches live readings on every load.
	r.With(middleware.SecurityHeaders(middleware.PagePolicy), upstreamRateLimit).Get("/", pageHandler.Index)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders(middleware.APIPolicy))
		r.Use(middleware.ContentTypeJSON)

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Reference data served from the store.
		r.Group(func(r chi.Router) {
			r.Use(readRateLimit)
			r.Get("/species", airQualityHandler.ListSpecies)
			r.Get("/local-authorities", airQualityHandler.ListLocalAuthorities)
			r.Get("/local-authorities/{code}/sites", airQualityHandler.ListSitesInLocalAuthority)
			r.Get("/sites", airQualityHandler.ListSites)
			r.Get("/health-advice", airQualityHandler.ListHealthAdvice)
		})

		// Live data proxied from the London Air API.
		r.Group(func(r chi.Router) {
			r.Use(upstreamRateLimit)
			r.Get("/readings", airQualityHandler.ListReadings)
			r.Get("/sites/{siteCode}/history", airQualityHandler.SiteHistory)
		})
	})

	return r
}
