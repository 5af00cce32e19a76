package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/metrics/counter"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

// APIKeyLookup resolves a raw API key to its active owner.
type APIKeyLookup interface {
	LookupAPIKey(ctx context.Context, raw string) (*models.User, *models.APIKey, error)
}

// APIKeyAuthMiddleware authenticates requests carrying a user API key header.
// Requests without a key pass through to session authentication.
func APIKeyAuthMiddleware(lookup APIKeyLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Next()
		}

		user, key, err := lookup.LookupAPIKey(c.UserContext(), apiKey)
		if err != nil {
			if errors.Is(err, apperr.ErrNotAuthenticated) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Errorf("[Auth] api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if key != nil && key.ID != 0 {
			if err := counter.AddAPIKeyRequest(c.UserContext(), key.ID); err != nil {
				log.Warnf("[Auth] could not count request for api key %d: %v", key.ID, err)
			}
		}

		usercontext.Set(c, usercontext.UserContext{
			UserID:     user.ID,
			Username:   user.DisplayName(),
			IsLoggedIn: true,
			IsAdmin:    user.IsAdmin(),
			AuthMethod: usercontext.AuthAPIKey,
		})
		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
