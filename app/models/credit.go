package models

import "time"

// DefaultCreditDescription is used when an admin adjustment has no description.
const DefaultCreditDescription = "Admin credit adjustment"

// UserCredit is a user's credit balance. It is only changed through atomic
// increments/decrements; the CHECK constraint keeps it non-negative.
type UserCredit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0;check:chk_user_credits_balance,balance >= 0" json:"balance"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserCredit) TableName() string { return "user_credits" }

// CreditTransaction is an append-only ledger line with a signed amount.
type CreditTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index:idx_credit_transactions_user_created,priority:1" json:"user_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Description string    `gorm:"type:varchar(500);not null;default:''" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_credit_transactions_user_created,priority:2" json:"created_at"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }
