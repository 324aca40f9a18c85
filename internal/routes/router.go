package routes

import (
	"net/http"
	"time"

	"hostdesk/syncengine/internal/api"
	"hostdesk/syncengine/internal/config"
	"hostdesk/syncengine/internal/db"
	"hostdesk/syncengine/internal/logging"
	"hostdesk/syncengine/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// RegisterRoutes builds the Chi router and wires every handler. The returned
// Dependencies are shared with the scheduled sync job in main.
func RegisterRoutes(cfg *config.Config, upSince time.Time) (http.Handler, *api.Dependencies) {

	// initialize Chi router
	r := chi.NewRouter()

	// Initialize dependencies using DI pattern
	deps, err := api.InitDependencies(cfg)
	if err != nil {
		panic("Failed to initialize dependencies: " + err.Error())
	}
	metricsReg := deps.Services.Metrics

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.MetricsMiddleware(metricsReg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:8081"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", api.SignatureHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	logging.Info("Router initialized with metrics and logging middleware")

	// health check
	r.Get("/healthCheck", api.HealthCheckHandler(db.DB, cfg.DataDir, upSince))

	// Initialize handlers with dependencies
	webhookHandler := api.NewWebhookHandler(deps.Services.Gate, deps.Services.Dispatcher, metricsReg)
	syncHandler := api.NewSyncHandler(deps.Services.Orchestrator)

	// Marketplace deliveries are rate limited per source IP: a misbehaving
	// sender redelivering in a tight loop must not starve the sync endpoints.
	r.Group(func(webhook chi.Router) {
		webhook.Use(middleware.RateLimitMiddleware)
		webhook.Post("/webhook/marketplace", webhookHandler.MarketplaceWebhook())
	})

	// API v1 routes
	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Post("/sync/{table}", syncHandler.TriggerSync())
	})

	return r, deps
}
