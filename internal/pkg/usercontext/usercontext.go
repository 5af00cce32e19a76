package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
)

// UserContext is the caller identity passed into every service operation.
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	AuthMethod string `json:"auth_method"`
}

// Require returns apperr.ErrNotAuthenticated unless the context carries a user.
func (u UserContext) Require() error {
	if !u.IsLoggedIn || u.UserID == 0 {
		return apperr.ErrNotAuthenticated
	}
	return nil
}

// System returns the identity used by background jobs acting on behalf of adminID.
func System(adminID uint) UserContext {
	return UserContext{UserID: adminID, Username: "system", IsLoggedIn: true, IsAdmin: true, AuthMethod: AuthSystem}
}

// Set stores the context on the request.
func Set(c *fiber.Ctx, u UserContext) {
	c.Locals(LocalsKey, u)
	c.Locals(KeyFromProtected, u.IsLoggedIn)
	c.Locals(KeyUserID, u.UserID)
	c.Locals(KeyUsername, u.Username)
	c.Locals(KeyIsAdmin, u.IsAdmin)
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(LocalsKey).(UserContext); ok {
		return ctx
	}
	return UserContext{IsLoggedIn: false, IsAdmin: false}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}
