package subscription

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/assistdesk/assistdesk/app/models"
)

// Repository provides DB operations used by the subscription service.
type Repository interface {
	UserExists(ctx context.Context, userID uint) (bool, error)
	ActivePlans(ctx context.Context) ([]models.SubscriptionPlan, error)
	ActivePlanByTier(ctx context.Context, tier string) (*models.SubscriptionPlan, error)
	ActiveSubscription(ctx context.Context, userID uint) (*models.UserSubscription, error)
	UpsertSubscription(ctx context.Context, sub *models.UserSubscription) error
	CreateSubscriptionIfMissing(ctx context.Context, sub *models.UserSubscription) (bool, error)
	UpdateActiveSubscription(ctx context.Context, userID uint, fromStatuses []string, updates map[string]interface{}) (*models.UserSubscription, error)
	CreateSimulation(ctx context.Context, sim *models.BillingSimulation) error
	CompleteSimulation(ctx context.Context, id uint, processedAt time.Time) error
	FailStaleSimulations(ctx context.Context, createdBefore time.Time, reason string) (int64, error)
	CreatePlanChange(ctx context.Context, change *models.SubscriptionPlanChange) error
	PlanChanges(ctx context.Context, userID uint, limit int) ([]models.SubscriptionPlanChange, error)
	Simulations(ctx context.Context, userID uint, limit int) ([]models.BillingSimulation, error)
	UsersWithoutSubscription(ctx context.Context) ([]uint, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a subscription repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UserExists(ctx context.Context, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error
	return n > 0, err
}

func (r *gormRepository) ActivePlans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("price_usd ASC, id ASC").Find(&plans).Error
	return plans, err
}

func (r *gormRepository) ActivePlanByTier(ctx context.Context, tier string) (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan
	if err := r.db.WithContext(ctx).Where("tier = ? AND is_active = ?", tier, true).Order("id").First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) ActiveSubscription(ctx context.Context, userID uint) (*models.UserSubscription, error) {
	var s models.UserSubscription
	if err := r.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.UserSubscription) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_id",
			"tier",
			"status",
			"is_active",
			"credits_per_month",
			"price_paid",
			"next_billing_date",
			"auto_renewal",
			"cancellation_date",
			"cancellation_reason",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return db.Where("user_id = ?", sub.UserID).First(sub).Error
}

func (r *gormRepository) CreateSubscriptionIfMissing(ctx context.Context, sub *models.UserSubscription) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(sub)
	return tx.RowsAffected > 0, tx.Error
}

func (r *gormRepository) UpdateActiveSubscription(ctx context.Context, userID uint, fromStatuses []string, updates map[string]interface{}) (*models.UserSubscription, error) {
	db := r.db.WithContext(ctx)
	q := db.Model(&models.UserSubscription{}).Where("user_id = ? AND is_active = ?", userID, true)
	if len(fromStatuses) > 0 {
		q = q.Where("status IN ?", fromStatuses)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.ActiveSubscription(ctx, userID)
}

func (r *gormRepository) CreateSimulation(ctx context.Context, sim *models.BillingSimulation) error {
	return r.db.WithContext(ctx).Create(sim).Error
}

func (r *gormRepository) CompleteSimulation(ctx context.Context, id uint, processedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.BillingSimulation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusCompleted,
			"processed_at":   processedAt,
		}).Error
}

func (r *gormRepository) FailStaleSimulations(ctx context.Context, createdBefore time.Time, reason string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.BillingSimulation{}).
		Where("payment_status = ? AND created_at < ?", models.PaymentStatusPending, createdBefore).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusFailed,
			"failure_reason": reason,
			"processed_at":   time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) CreatePlanChange(ctx context.Context, change *models.SubscriptionPlanChange) error {
	return r.db.WithContext(ctx).Create(change).Error
}

func (r *gormRepository) PlanChanges(ctx context.Context, userID uint, limit int) ([]models.SubscriptionPlanChange, error) {
	var changes []models.SubscriptionPlanChange
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Find(&changes).Error
	return changes, err
}

func (r *gormRepository) Simulations(ctx context.Context, userID uint, limit int) ([]models.BillingSimulation, error) {
	var sims []models.BillingSimulation
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Find(&sims).Error
	return sims, err
}

func (r *gormRepository) UsersWithoutSubscription(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Joins("LEFT JOIN user_subscriptions us ON us.user_id = users.id").
		Where("us.id IS NULL").
		Order("users.id").
		Pluck("users.id", &ids).Error
	return ids, err
}
