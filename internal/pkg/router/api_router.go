package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apiv1 "github.com/assistdesk/assistdesk/internal/api/v1"
	"github.com/assistdesk/assistdesk/internal/pkg/env"
	"github.com/assistdesk/assistdesk/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 120),
		Expiration: env.GetEnvDuration("API_RATE_WINDOW", time.Minute),
		Storage:    h.deps.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many requests",
			})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API key first; session lookup skips requests it already authenticated
	var auth []fiber.Handler
	if h.deps.APIKeys != nil {
		auth = append(auth, middleware.APIKeyAuthMiddleware(h.deps.APIKeys))
	}
	auth = append(auth, middleware.UserContextMiddleware)

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(h.deps.Probes)
	apiv1.RegisterHandlers(v1, apiServer, auth, middleware.RequireAdmin)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
