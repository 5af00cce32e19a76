package statistics

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
)

// UserCounts holds aggregate counts over the users table.
type UserCounts struct {
	Total  int64
	Active int64
	Admins int64
}

// TierStatusRow is one (tier, status) group of user_subscriptions.
type TierStatusRow struct {
	Tier    string
	Status  string
	Count   int64
	Revenue decimal.Decimal
}

// Repository runs the aggregate queries behind the analytics.
type Repository interface {
	UserCounts(ctx context.Context) (UserCounts, error)
	TierStatus(ctx context.Context, onlyActiveRows bool) ([]TierStatusRow, error)
	TotalCredits(ctx context.Context) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a statistics repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UserCounts(ctx context.Context) (UserCounts, error) {
	var c UserCounts
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("COUNT(*) AS total, "+
			"COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active, "+
			"COALESCE(SUM(CASE WHEN role = ? THEN 1 ELSE 0 END), 0) AS admins", models.ROLE_ADMIN).
		Scan(&c).Error
	return c, err
}

func (r *gormRepository) TierStatus(ctx context.Context, onlyActiveRows bool) ([]TierStatusRow, error) {
	q := r.db.WithContext(ctx).Model(&models.UserSubscription{}).
		Select("tier, status, COUNT(*) AS count, COALESCE(SUM(price_paid), 0) AS revenue")
	if onlyActiveRows {
		q = q.Where("is_active = ?", true)
	}
	var rows []TierStatusRow
	err := q.Group("tier, status").Order("tier, status").Scan(&rows).Error
	return rows, err
}

func (r *gormRepository) TotalCredits(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.UserCredit{}).
		Select("COALESCE(SUM(balance), 0)").Scan(&total).Error
	return total, err
}
