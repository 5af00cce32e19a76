package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/assistdesk/assistdesk/internal/pkg/session"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the session user for every request.
// Requests that already carry a context (API key) are left untouched.
func UserContextMiddleware(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Next()
	}
	anonymous := usercontext.UserContext{IsLoggedIn: false, IsAdmin: false}

	store := session.GetSessionStore()
	if store == nil {
		usercontext.Set(c, anonymous)
		return c.Next()
	}
	sess, err := store.Get(c)
	if err != nil {
		usercontext.Set(c, anonymous)
		return c.Next()
	}

	userID, ok := sess.Get(session.KeyUserID).(uint)
	if !ok || userID == 0 {
		usercontext.Set(c, anonymous)
		return c.Next()
	}
	username, _ := sess.Get(session.KeyUsername).(string)
	isAdmin, _ := sess.Get(session.KeyIsAdmin).(bool)

	usercontext.Set(c, usercontext.UserContext{
		UserID:     userID,
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
		AuthMethod: usercontext.AuthSession,
	})
	return c.Next()
}
