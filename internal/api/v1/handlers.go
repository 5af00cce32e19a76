package apiv1

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// Health is the health response body.
type Health struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Probe checks one backing service.
type Probe func(ctx context.Context) error

// APIServer serves the v1 endpoints that are not plain admin handlers.
type APIServer struct {
	probes map[string]Probe
}

// NewAPIServer creates a new API server instance. probes are reported by /health.
func NewAPIServer(probes map[string]Probe) *APIServer {
	return &APIServer{probes: probes}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetHealth runs every probe with a short timeout.
func (s *APIServer) GetHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	res := Health{Status: "ok", Components: map[string]string{}}
	for name, probe := range s.probes {
		if err := probe(ctx); err != nil {
			log.Warnf("[Health] %s: %v", name, err)
			res.Status = "degraded"
			res.Components[name] = "down"
			continue
		}
		res.Components[name] = "up"
	}

	status := fiber.StatusOK
	if res.Status != "ok" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(res)
}
