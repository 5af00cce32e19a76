package router

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistdesk/assistdesk/app/controllers"
	"github.com/assistdesk/assistdesk/app/models"
	apiv1 "github.com/assistdesk/assistdesk/internal/api/v1"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/env"
	"github.com/assistdesk/assistdesk/internal/pkg/session"
)

type keyLookup map[string]*models.User

func (k keyLookup) LookupAPIKey(ctx context.Context, raw string) (*models.User, *models.APIKey, error) {
	u, ok := k[raw]
	if !ok {
		return nil, nil, apperr.ErrNotAuthenticated
	}
	return u, &models.APIKey{UserID: u.ID}, nil
}

func newTestApp(t *testing.T, probes map[string]apiv1.Probe) *fiber.App {
	t.Helper()
	savedStore := session.GetSessionStore()
	session.SetSessionStore(fsession.New())
	savedEnv := env.Env
	env.Env = map[string]string{"API_RATE_LIMIT": "1000"}
	controllers.InitServices(&controllers.Services{})
	t.Cleanup(func() {
		session.SetSessionStore(savedStore)
		env.Env = savedEnv
		controllers.InitServices(nil)
	})

	app := fiber.New()
	InstallRouter(app, Deps{
		APIKeys: keyLookup{
			"adk_admin": {ID: 1, Email: "admin@example.com", Role: models.ROLE_ADMIN, IsActive: true},
			"adk_user":  {ID: 2, Email: "user@example.com", Role: models.ROLE_STANDARD, IsActive: true},
		},
		Probes: probes,
	})
	return app
}

func status(t *testing.T, app *fiber.App, method, path, key string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestPublicRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/", ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1/ping", ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1/health", ""))
}

func TestHealthReportsFailingProbe(t *testing.T) {
	app := newTestApp(t, map[string]apiv1.Probe{
		"database": func(ctx context.Context) error { return nil },
		"cache":    func(ctx context.Context) error { return errors.New("connection refused") },
	})
	assert.Equal(t, fiber.StatusServiceUnavailable, status(t, app, "GET", "/api/v1/health", ""))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	app := newTestApp(t, nil)

	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "GET", "/api/v1/admin/users", ""))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "GET", "/api/v1/admin/users", "adk_unknown"))
	assert.Equal(t, fiber.StatusForbidden, status(t, app, "GET", "/api/v1/admin/users", "adk_user"))
	// services are not configured in this test
	assert.Equal(t, fiber.StatusServiceUnavailable, status(t, app, "GET", "/api/v1/admin/users", "adk_admin"))
}

func TestAuthMeWithAPIKey(t *testing.T) {
	app := newTestApp(t, nil)
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1/auth/me", "adk_user"))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "GET", "/api/v1/auth/me", ""))
}

func TestRateLimit(t *testing.T) {
	saved := env.Env
	env.Env = map[string]string{"API_RATE_LIMIT": "2"}
	t.Cleanup(func() { env.Env = saved })

	app := fiber.New()
	NewApiRouter(Deps{}).InstallRouter(app)

	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1/ping", ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/v1/ping", ""))
	assert.Equal(t, fiber.StatusTooManyRequests, status(t, app, "GET", "/api/v1/ping", ""))
}
