package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/assistdesk/assistdesk/internal/pkg/ledger"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

type creditRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// HandleAdminCreditBalance returns a user's credit account.
func HandleAdminCreditBalance(c *fiber.Ctx) error {
	if services.Credits == nil {
		return unavailable(c, "credits")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	account, err := services.Credits.Balance(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"credits": account})
}

// HandleAdminCreditAdd grants credits.
func HandleAdminCreditAdd(c *fiber.Ctx) error {
	return adjustCredits(c, services.creditAdd)
}

// HandleAdminCreditDeduct removes credits; overdrafts answer 409.
func HandleAdminCreditDeduct(c *fiber.Ctx) error {
	return adjustCredits(c, services.creditDeduct)
}

type creditOp func(c *fiber.Ctx, caller usercontext.UserContext, userID uint, req creditRequest) (*ledger.Result, error)

func (s *Services) creditAdd(c *fiber.Ctx, caller usercontext.UserContext, userID uint, req creditRequest) (*ledger.Result, error) {
	return s.Credits.AddCredits(c.UserContext(), caller, userID, req.Amount, req.Description)
}

func (s *Services) creditDeduct(c *fiber.Ctx, caller usercontext.UserContext, userID uint, req creditRequest) (*ledger.Result, error) {
	return s.Credits.DeductCredits(c.UserContext(), caller, userID, req.Amount, req.Description)
}

func adjustCredits(c *fiber.Ctx, op creditOp) error {
	if services.Credits == nil {
		return unavailable(c, "credits")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req creditRequest
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	res, err := op(c, usercontext.GetUserContext(c), id, req)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"user_id":     res.UserID,
		"balance":     res.Balance,
		"transaction": res.Transaction,
	}, res.Warning)
}

// HandleAdminCreditTransactions lists recent ledger lines, newest first.
func HandleAdminCreditTransactions(c *fiber.Ctx) error {
	if services.Credits == nil {
		return unavailable(c, "credits")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	txs, err := services.Credits.Transactions(c.UserContext(), id, c.QueryInt("limit", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

// HandleAdminCreditSync opens credit accounts for users without one.
func HandleAdminCreditSync(c *fiber.Ctx) error {
	if services.Credits == nil {
		return unavailable(c, "credits")
	}
	created, err := services.Credits.SyncMissingAccounts(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"created": created})
}
