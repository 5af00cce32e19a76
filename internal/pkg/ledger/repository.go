package ledger

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
)

// Repository provides the ledger's store operations. Credit and Debit change
// the balance and append the transaction line in one database transaction.
type Repository interface {
	UserExists(ctx context.Context, userID uint) (bool, error)
	Credit(ctx context.Context, userID uint, amount int64, description string) (*models.CreditTransaction, int64, error)
	Debit(ctx context.Context, userID uint, amount int64, description string) (*models.CreditTransaction, int64, error)
	Balance(ctx context.Context, userID uint) (*models.UserCredit, error)
	Transactions(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error)
	EnsureAccount(ctx context.Context, userID uint) (*models.UserCredit, error)
	UsersWithoutAccount(ctx context.Context) ([]uint, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UserExists(ctx context.Context, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error
	return n > 0, err
}

func (r *gormRepository) Credit(ctx context.Context, userID uint, amount int64, description string) (*models.CreditTransaction, int64, error) {
	var txn *models.CreditTransaction
	var balance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.UserCredit{UserID: userID, Balance: amount}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"balance": gorm.Expr("balance + ?", amount), "updated_at": gorm.Expr("NOW()")}),
		}).Create(&row).Error; err != nil {
			return err
		}
		var err error
		txn, balance, err = appendLine(tx, userID, amount, description)
		return err
	})
	return txn, balance, err
}

func (r *gormRepository) Debit(ctx context.Context, userID uint, amount int64, description string) (*models.CreditTransaction, int64, error) {
	var txn *models.CreditTransaction
	var balance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserCredit{}).
			Where("user_id = ? AND balance >= ?", userID, amount).
			UpdateColumns(map[string]interface{}{"balance": gorm.Expr("balance - ?", amount), "updated_at": gorm.Expr("NOW()")})
		if res.Error != nil {
			if apperr.IsCheckViolation(res.Error) {
				return apperr.ErrInsufficientBalance
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrInsufficientBalance
		}
		var err error
		txn, balance, err = appendLine(tx, userID, -amount, description)
		return err
	})
	return txn, balance, err
}

func appendLine(tx *gorm.DB, userID uint, amount int64, description string) (*models.CreditTransaction, int64, error) {
	line := &models.CreditTransaction{UserID: userID, Amount: amount, Description: description}
	if err := tx.Create(line).Error; err != nil {
		return nil, 0, err
	}
	var uc models.UserCredit
	if err := tx.Where("user_id = ?", userID).First(&uc).Error; err != nil {
		return nil, 0, err
	}
	return line, uc.Balance, nil
}

func (r *gormRepository) Balance(ctx context.Context, userID uint) (*models.UserCredit, error) {
	var uc models.UserCredit
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&uc).Error; err != nil {
		return nil, err
	}
	return &uc, nil
}

func (r *gormRepository) Transactions(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error) {
	var lines []models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&lines).Error
	return lines, err
}

func (r *gormRepository) EnsureAccount(ctx context.Context, userID uint) (*models.UserCredit, error) {
	row := models.UserCredit{UserID: userID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, err
	}
	uc, err := r.Balance(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("credit account")
	}
	return uc, err
}

func (r *gormRepository) UsersWithoutAccount(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Joins("LEFT JOIN user_credits uc ON uc.user_id = users.id").
		Where("uc.id IS NULL").
		Order("users.id").
		Pluck("users.id", &ids).Error
	return ids, err
}
