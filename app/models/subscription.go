package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscription tiers, ordered from lowest to highest.
const (
	TierRegistered = "registered"
	TierSubscriber = "subscriber"
	TierFounder    = "founder"
	TierUnlimited  = "unlimited"
)

const (
	SubscriptionStatusTrial     = "trial"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusPaused    = "paused"
	SubscriptionStatusCancelled = "cancelled"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// BillingCycle is the fixed period between billing dates.
const BillingCycle = 30 * 24 * time.Hour

// SubscriptionPlan is a purchasable plan row; at most one active plan per tier.
type SubscriptionPlan struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Name            string          `gorm:"type:varchar(100);not null" json:"name"`
	Tier            string          `gorm:"type:varchar(20);not null;index:idx_subscription_plans_tier_active,priority:1" json:"tier"`
	PriceUSD        decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price_usd"`
	CreditsPerMonth int64           `gorm:"not null;default:0" json:"credits_per_month"`
	IsActive        bool            `gorm:"not null;default:true;index:idx_subscription_plans_tier_active,priority:2" json:"is_active"`
	// ActiveTier is NULL for retired plans, so only one active plan exists per tier.
	ActiveTier      *string         `gorm:"->;type:varchar(20) GENERATED ALWAYS AS (IF(is_active, tier, NULL)) STORED;uniqueIndex:uq_subscription_plans_active_tier" json:"-"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SubscriptionPlan) TableName() string { return "subscription_plans" }

// UserSubscription is keyed by user: upserts replace the user's single row.
type UserSubscription struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	UserID             uint            `gorm:"not null;uniqueIndex" json:"user_id"`
	PlanID             *uint           `gorm:"index" json:"plan_id"`
	Tier               string          `gorm:"type:varchar(20);not null;default:'registered';index" json:"tier"`
	Status             string          `gorm:"type:varchar(20);not null;default:'trial';index" json:"status"`
	IsActive           bool            `gorm:"not null;default:true" json:"is_active"`
	CreditsPerMonth    int64           `gorm:"not null;default:0" json:"credits_per_month"`
	PricePaid          decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price_paid"`
	NextBillingDate    *time.Time      `gorm:"type:timestamp;default:null" json:"next_billing_date"`
	AutoRenewal        bool            `gorm:"not null;default:true" json:"auto_renewal"`
	CancellationDate   *time.Time      `gorm:"type:timestamp;default:null" json:"cancellation_date,omitempty"`
	CancellationReason string          `gorm:"type:varchar(500);default:''" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserSubscription) TableName() string { return "user_subscriptions" }

// SubscriptionPlanChange is an immutable record of one tier transition.
type SubscriptionPlanChange struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index:idx_plan_changes_user_created,priority:1" json:"user_id"`
	FromPlanID   *uint     `json:"from_plan_id"`
	FromTier     *string   `gorm:"type:varchar(20)" json:"from_tier"`
	ToPlanID     *uint     `json:"to_plan_id"`
	ToTier       string    `gorm:"type:varchar(20);not null" json:"to_tier"`
	ChangeReason string    `gorm:"type:varchar(500);not null;default:''" json:"change_reason"`
	ProcessedBy  uint      `gorm:"not null" json:"processed_by"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_plan_changes_user_created,priority:2" json:"created_at"`
}

func (SubscriptionPlanChange) TableName() string { return "subscription_plan_changes" }

// BillingSimulation records a simulated charge that precedes a plan change.
type BillingSimulation struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"not null;index:idx_billing_simulations_user_created,priority:1" json:"user_id"`
	Tier           string          `gorm:"type:varchar(20);not null" json:"tier"`
	SimulatedPrice decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"simulated_price"`
	PaymentMethod  string          `gorm:"type:varchar(30);not null;default:'card'" json:"payment_method"`
	PaymentStatus  string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	FailureReason  string          `gorm:"type:varchar(500);default:''" json:"failure_reason,omitempty"`
	ProcessedAt    *time.Time      `gorm:"type:timestamp;default:null" json:"processed_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index:idx_billing_simulations_user_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BillingSimulation) TableName() string { return "billing_simulations" }
