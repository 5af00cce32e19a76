// Package ledger manages per-user credit balances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/audit"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

const DefaultTransactionLimit = 10

// Auditor records activity entries and resolves admin names.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) (*models.AdminActivityLog, error)
	AdminName(ctx context.Context, adminID uint) string
}

// Result describes a committed balance change. Warning is set when the
// change committed but its audit entry did not.
type Result struct {
	UserID      uint                      `json:"user_id"`
	Balance     int64                     `json:"balance"`
	Transaction *models.CreditTransaction `json:"transaction"`
	Activity    *models.AdminActivityLog  `json:"activity,omitempty"`
	Warning     error                     `json:"-"`
}

// Service applies admin credit adjustments.
type Service struct {
	repo    Repository
	auditor Auditor
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository, auditor Auditor) *Service {
	return &Service{repo: repo, auditor: auditor}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, auditor Auditor) *Service {
	return NewService(NewRepository(db), auditor)
}

// AddCredits increments the user's balance by amount.
func (s *Service) AddCredits(ctx context.Context, caller usercontext.UserContext, userID uint, amount int64, description string) (*Result, error) {
	return s.adjust(ctx, caller, userID, amount, description, true)
}

// DeductCredits decrements the user's balance by amount. It fails with
// apperr.ErrInsufficientBalance instead of going below zero.
func (s *Service) DeductCredits(ctx context.Context, caller usercontext.UserContext, userID uint, amount int64, description string) (*Result, error) {
	return s.adjust(ctx, caller, userID, amount, description, false)
}

func (s *Service) adjust(ctx context.Context, caller usercontext.UserContext, userID uint, amount int64, description string, credit bool) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperr.Validation("amount", "must be greater than zero")
	}
	if userID == 0 {
		return nil, apperr.Validation("user_id", "is required")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = models.DefaultCreditDescription
	}

	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore("lookup user", err)
	}
	if !exists {
		return nil, apperr.NotFound("user")
	}

	op, verb, action, signed := "add credits", "added", "add_credits", amount
	mutate := s.repo.Credit
	if !credit {
		op, verb, action, signed = "deduct credits", "deducted", "deduct_credits", -amount
		mutate = s.repo.Debit
	}

	txn, balance, err := mutate(ctx, userID, amount, description)
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientBalance) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, apperr.FromStore(op, err)
	}
	log.Infof("[Ledger] %d credits %s for user %d by admin %d, balance %d", amount, verb, userID, caller.UserID, balance)

	res := &Result{UserID: userID, Balance: balance, Transaction: txn}
	adminName := s.auditor.AdminName(ctx, caller.UserID)
	subject := userID
	res.Activity, res.Warning = s.auditor.Record(ctx, audit.Entry{
		AdminUserID:  caller.UserID,
		UserID:       &subject,
		EntityType:   models.EntityUser,
		EntityID:     audit.EntityIDFor(userID),
		ActivityType: models.ActivityCreditAdjustment,
		Description:  fmt.Sprintf("%d credits %s by %s: %s", amount, verb, adminName, description),
		Amount:       &signed,
		Metadata: map[string]any{
			"action":      action,
			"amount":      amount,
			"description": description,
			"admin_name":  adminName,
		},
	})
	return res, nil
}

// Balance returns the user's balance row.
func (s *Service) Balance(ctx context.Context, userID uint) (*models.UserCredit, error) {
	uc, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore("credit balance", err)
	}
	return uc, nil
}

// Transactions returns the newest ledger lines for the user.
func (s *Service) Transactions(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	lines, err := s.repo.Transactions(ctx, userID, limit)
	if err != nil {
		return nil, apperr.FromStore("credit transactions", err)
	}
	return lines, nil
}

// EnsureAccount creates a zero balance for the user when missing.
func (s *Service) EnsureAccount(ctx context.Context, userID uint) (*models.UserCredit, error) {
	uc, err := s.repo.EnsureAccount(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore("ensure credit account", err)
	}
	return uc, nil
}

// SyncMissingAccounts creates zero balances for every user without one.
func (s *Service) SyncMissingAccounts(ctx context.Context) (int, error) {
	ids, err := s.repo.UsersWithoutAccount(ctx)
	if err != nil {
		return 0, apperr.FromStore("users without credit account", err)
	}
	created := 0
	for _, id := range ids {
		if _, err := s.repo.EnsureAccount(ctx, id); err != nil {
			return created, apperr.FromStore("ensure credit account", err)
		}
		created++
	}
	if created > 0 {
		log.Infof("[Ledger] created %d missing credit accounts", created)
	}
	return created, nil
}
