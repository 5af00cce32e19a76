package models

import "time"

const (
	AssistantStateActive   = "Active"
	AssistantStateInactive = "Inactive"
)

const (
	DefaultCreditsPerMessage = 10
	MinCreditsPerMessage     = 1
	MaxCreditsPerMessage     = 1000
)

// Assistant is a configurable AI assistant offered to users.
// The knowledge_bank foreign key and the checks are created by the SQL migrations.
type Assistant struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description       string    `gorm:"type:text;not null" json:"description"`
	DomainCode        string    `gorm:"type:varchar(10);not null;index" json:"domain_code"`
	KnowledgeBank     string    `gorm:"type:varchar(100);not null;index" json:"knowledge_bank"`
	State             string    `gorm:"type:varchar(10);not null;default:'Active';index;check:chk_assistants_state,state IN ('Active','Inactive')" json:"state"`
	OpenAIAssistantID *string   `gorm:"type:varchar(100);uniqueIndex" json:"openai_assistant_id"`
	CreditsPerMessage int       `gorm:"not null;default:10;check:chk_assistants_credits,credits_per_message BETWEEN 1 AND 1000" json:"credits_per_message"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Assistant) TableName() string { return "assistants" }

// IsValidAssistantState reports whether state is Active or Inactive.
func IsValidAssistantState(state string) bool {
	return state == AssistantStateActive || state == AssistantStateInactive
}

// KnowledgeBank is a named document corpus assistants answer from.
type KnowledgeBank struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (KnowledgeBank) TableName() string { return "knowledge_banks" }
