package router

import (
	"github.com/gofiber/fiber/v2"

	apiv1 "github.com/assistdesk/assistdesk/internal/api/v1"
	"github.com/assistdesk/assistdesk/internal/pkg/middleware"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps are the collaborators the routes need beyond the controller services.
type Deps struct {
	// APIKeys enables X-API-Key / Bearer authentication when set.
	APIKeys middleware.APIKeyLookup
	// LimiterStorage backs the API rate limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
	Probes         map[string]apiv1.Probe
}

func InstallRouter(app *fiber.App, deps Deps) {
	// The HTTP router initializes the session store that the API
	// authentication chain reads from, so it goes first.
	setup(app, NewHttpRouter(), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
