package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/examio/examio-api/internal/config"
	"github.com/examio/examio-api/internal/handler"
	"github.com/examio/examio-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AttemptHandler  *handler.AttemptHandler
	ProgressHandler *handler.ProgressHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AttemptHandler != nil {
		attempts := api.Group("/attempts", jwtMiddleware)
		deps.AttemptHandler.Register(attempts)
	}

	if deps.ProgressHandler != nil {
		// The leaderboard is readable without credentials.
		deps.ProgressHandler.RegisterPublic(api.Group("/progress"))

		progress := api.Group("/progress", jwtMiddleware)
		deps.ProgressHandler.Register(progress)
	}
}
