package router

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/assistdesk/assistdesk/internal/pkg/env"
	"github.com/assistdesk/assistdesk/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	if session.GetSessionStore() == nil {
		session.NewSessionStore()
	}

	// the admin console runs on its own origin and sends the session cookie
	origins := strings.TrimSpace(env.GetEnv("ADMIN_ALLOWED_ORIGINS", ""))
	if origins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowCredentials: true,
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-API-Key",
		}))
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name": "assistdesk",
			"api":  "/api/v1",
			"docs": "/docs/api/v1",
		})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
