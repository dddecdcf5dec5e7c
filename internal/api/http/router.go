package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/community-service/internal/api/http/handlers"
	"github.com/spec-kit/community-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Events         *handlers.EventsHandler
	Stats          *handlers.StatsHandler
	Tokens         *handlers.TokensHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Health.Home)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	events := app.Group("/events")
	events.Post("/start", cfg.Events.Start)
	events.Post("/text", cfg.Events.Text)
	events.Post("/selection", cfg.Events.Selection)

	app.Post("/auth/token", cfg.Tokens.Issue)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/stats", cfg.Stats.Community)
}
