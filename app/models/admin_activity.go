package models

import (
	"encoding/json"
	"time"
)

// Entity types referenced by activity entries.
const (
	EntityUser         = "user"
	EntitySubscription = "subscription"
	EntityAssistant    = "assistant"
)

// Activity types written by the admin services.
const (
	ActivityCreditAdjustment    = "credit_adjustment"
	ActivityStatusChange        = "status_change"
	ActivityRoleChange          = "role_change"
	ActivityProfileUpdate       = "profile_update"
	ActivityUserCreated         = "user_created"
	ActivityUserDeactivated     = "user_deactivated"
	ActivitySubscriptionChange  = "subscription_change"
	ActivitySubscriptionCancel  = "subscription_cancel"
	ActivitySubscriptionPause   = "subscription_pause"
	ActivitySubscriptionResume  = "subscription_resume"
	ActivitySubscriptionRenewal = "subscription_renewal"
	ActivityAssistantCreated    = "assistant_created"
	ActivityAssistantUpdated    = "assistant_updated"
	ActivityAssistantState      = "assistant_state_change"
	ActivityAssistantDeleted    = "assistant_deleted"
)

// AdminActivityLog is an immutable audit entry for one privileged mutation.
type AdminActivityLog struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	AdminUserID   uint            `gorm:"not null;index" json:"admin_user_id"`
	UserID        *uint           `gorm:"index" json:"user_id,omitempty"`
	EntityType    string          `gorm:"type:varchar(30);not null;index:idx_admin_activity_entity,priority:1" json:"entity_type"`
	EntityID      string          `gorm:"type:varchar(64);not null;index:idx_admin_activity_entity,priority:2" json:"entity_id"`
	ActivityType  string          `gorm:"type:varchar(50);not null;index" json:"activity_type"`
	Description   string          `gorm:"type:text;not null" json:"description"`
	Amount        *int64          `json:"amount,omitempty"`
	Metadata      json.RawMessage `gorm:"type:json" json:"metadata"`
	CorrelationID string          `gorm:"type:varchar(36);not null;default:'';index" json:"correlation_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AdminActivityLog) TableName() string { return "admin_activity_log" }
