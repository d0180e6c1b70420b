package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/orgsync/directory-sync/internal/api/http/handlers"
	"github.com/orgsync/directory-sync/internal/auth"
	"github.com/orgsync/directory-sync/internal/domain"
	"github.com/orgsync/directory-sync/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Sync           *handlers.SyncHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	directory := app.Group("/api/v1/directory", cfg.AuthMiddleware.Handle)
	directory.Get("/sync/status", auth.RequireRole(), cfg.Sync.Status)
	directory.Post("/sync", auth.RequireRole(domain.RoleAdmin), cfg.Sync.Trigger)
}
