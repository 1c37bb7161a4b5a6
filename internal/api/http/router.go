package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/app-platform/internal/api/http/handlers"
	"github.com/spec-kit/app-platform/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Apps           *handlers.AppsHandler
	Templates      *handlers.TemplatesHandler
	Hooks          *handlers.HooksHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)

	app.Get("/templates", cfg.Templates.List)

	app.Post("/hooks/billing", cfg.Hooks.Billing)
	app.Post("/hooks/provision", cfg.Hooks.Provision)

	users := app.Group("/users", cfg.AuthMiddleware.Handle, auth.RequireUser())
	users.Put("/", cfg.Users.Update)
	users.Delete("/", cfg.Users.Delete)

	apps := app.Group("/apps", cfg.AuthMiddleware.Handle, auth.RequireUser())
	apps.Get("/", cfg.Apps.List)
	apps.Post("/checkout", cfg.Apps.Checkout)
	apps.Get("/:id", cfg.Apps.Get)
	apps.Put("/:id/settings", cfg.Apps.UpdateSettings)
	apps.Post("/:id/verify-domain", cfg.Apps.VerifyDomain)
	apps.Delete("/:id", cfg.Apps.Uninstall)

	billingGroup := app.Group("/billing", cfg.AuthMiddleware.Handle, auth.RequireUser())
	billingGroup.Get("/portal", cfg.Apps.Portal)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/apps", cfg.Apps.ListByState)
}
