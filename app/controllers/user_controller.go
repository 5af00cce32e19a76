package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/assistdesk/assistdesk/internal/pkg/accounts"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

type statusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required"`
}

type apiKeyRequest struct {
	Name string `json:"name"`
}

// HandleAdminUsers lists users with balances and subscriptions.
func HandleAdminUsers(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	filter := accounts.Filter{
		Search: c.Query("q"),
		Role:   c.Query("role"),
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
	if raw := c.Query("active"); raw != "" {
		active := c.QueryBool("active")
		filter.Active = &active
	}

	users, total, err := services.Accounts.List(c.UserContext(), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"users": users, "total": total})
}

// HandleAdminUserGet returns one user summary.
func HandleAdminUserGet(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	user, err := services.Accounts.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

// HandleAdminUserCreate creates a user.
func HandleAdminUserCreate(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	var in accounts.CreateInput
	if err := bindJSON(c, &in); err != nil {
		return writeError(c, err)
	}
	res, err := services.Accounts.Create(c.UserContext(), usercontext.GetUserContext(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusCreated, fiber.Map{"user": res.User}, res.Warning)
}

// HandleAdminUserUpdate changes profile fields.
func HandleAdminUserUpdate(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var in accounts.ProfileInput
	if err := bindJSON(c, &in); err != nil {
		return writeError(c, err)
	}
	res, err := services.Accounts.UpdateProfile(c.UserContext(), usercontext.GetUserContext(c), id, in)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"user": res.User}, res.Warning)
}

// HandleAdminUserStatus activates or deactivates a user.
func HandleAdminUserStatus(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req statusRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	res, err := services.Accounts.SetActive(c.UserContext(), usercontext.GetUserContext(c), id, *req.IsActive)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"user": res.User}, res.Warning)
}

// HandleAdminUserRole changes a user's role.
func HandleAdminUserRole(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req roleRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	res, err := services.Accounts.ChangeRole(c.UserContext(), usercontext.GetUserContext(c), id, req.Role)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"user": res.User}, res.Warning)
}

// HandleAdminUserDelete deactivates a user and revokes their keys. Users are never hard deleted.
func HandleAdminUserDelete(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	res, err := services.Accounts.Deactivate(c.UserContext(), usercontext.GetUserContext(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"user": res.User}, res.Warning)
}

// HandleAdminUsersBulk applies one status or role change to many users.
func HandleAdminUsersBulk(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	var in accounts.BulkInput
	if err := bindJSON(c, &in); err != nil {
		return writeError(c, err)
	}
	res, err := services.Accounts.BulkUpdate(c.UserContext(), usercontext.GetUserContext(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"updated": res.Updated, "missing": res.Missing}, res.Warnings...)
}

// HandleAdminUsersSync opens missing credit accounts and subscriptions.
func HandleAdminUsersSync(c *fiber.Ctx) error {
	if services.Credits == nil || services.Subscriptions == nil {
		return unavailable(c, "sync")
	}
	if err := usercontext.GetUserContext(c).Require(); err != nil {
		return writeError(c, err)
	}
	credits, err := services.Credits.SyncMissingAccounts(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	subs, err := services.Subscriptions.SyncMissingSubscriptions(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	log.Infof("[Users] sync created %d credit accounts and %d subscriptions", credits, subs)
	return c.JSON(fiber.Map{"credit_accounts_created": credits, "subscriptions_created": subs})
}

// HandleAdminUserAPIKeys lists a user's API keys.
func HandleAdminUserAPIKeys(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	keys, err := services.Accounts.ListAPIKeys(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"api_keys": keys})
}

// HandleAdminUserAPIKeyCreate issues a key. The secret is only returned here.
func HandleAdminUserAPIKeyCreate(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req apiKeyRequest
	if len(c.Body()) > 0 {
		if err := bindJSON(c, &req); err != nil {
			return writeError(c, err)
		}
	}
	issued, err := services.Accounts.IssueAPIKey(c.UserContext(), usercontext.GetUserContext(c), id, req.Name)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"api_key": issued.Key, "secret": issued.Secret})
}

// HandleAdminUserAPIKeyRevoke revokes one key.
func HandleAdminUserAPIKeyRevoke(c *fiber.Ctx) error {
	if services.Accounts == nil {
		return unavailable(c, "accounts")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	keyID, err := paramID(c, "keyId")
	if err != nil {
		return writeError(c, err)
	}
	if err := services.Accounts.RevokeAPIKey(c.UserContext(), usercontext.GetUserContext(c), id, keyID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
