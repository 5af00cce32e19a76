package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/assistdesk/assistdesk/internal/pkg/session"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleAuthLogin checks credentials and opens a session.
func HandleAuthLogin(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}

	// notice: failures never say whether the email exists
	user, err := services.Accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}

	if err := session.Login(c, user.ID, user.DisplayName(), user.IsAdmin()); err != nil {
		log.Errorf("[Auth] session login for user %d failed: %v", user.ID, err)
		return writeError(c, err)
	}

	log.Infof("[Auth] user %d logged in", user.ID)
	return c.JSON(fiber.Map{"user": user})
}

// HandleAuthLogout ends the session.
func HandleAuthLogout(c *fiber.Ctx) error {
	if err := session.Logout(c); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"logged_out": true})
}

// HandleAuthMe returns the caller identity.
func HandleAuthMe(c *fiber.Ctx) error {
	caller := usercontext.GetUserContext(c)
	if err := caller.Require(); err != nil {
		return writeError(c, err)
	}
	return c.JSON(caller)
}
