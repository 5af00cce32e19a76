// Package repository hands out the GORM repositories of every admin service.
package repository

import (
	"sync"

	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/internal/pkg/accounts"
	"github.com/assistdesk/assistdesk/internal/pkg/assistant"
	"github.com/assistdesk/assistdesk/internal/pkg/audit"
	"github.com/assistdesk/assistdesk/internal/pkg/ledger"
	"github.com/assistdesk/assistdesk/internal/pkg/statistics"
	"github.com/assistdesk/assistdesk/internal/pkg/subscription"
)

// Repositories holds one repository per service.
type Repositories struct {
	Users         accounts.Repository
	Credits       ledger.Repository
	Subscriptions subscription.Repository
	Activity      audit.Repository
	Assistants    assistant.Repository
	Statistics    statistics.Repository
}

// NewRepositories builds every repository on db.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:         accounts.NewRepository(db),
		Credits:       ledger.NewRepository(db),
		Subscriptions: subscription.NewRepository(db),
		Activity:      audit.NewRepository(db),
		Assistants:    assistant.NewRepository(db),
		Statistics:    statistics.NewRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() accounts.Repository {
	return f.GetRepositories().Users
}

// GetCreditRepository returns the ledger repository instance
func (f *Factory) GetCreditRepository() ledger.Repository {
	return f.GetRepositories().Credits
}

// GetSubscriptionRepository returns the subscription repository instance
func (f *Factory) GetSubscriptionRepository() subscription.Repository {
	return f.GetRepositories().Subscriptions
}

// GetActivityRepository returns the admin activity repository instance
func (f *Factory) GetActivityRepository() audit.Repository {
	return f.GetRepositories().Activity
}

// GetAssistantRepository returns the assistant repository instance
func (f *Factory) GetAssistantRepository() assistant.Repository {
	return f.GetRepositories().Assistants
}

// GetStatisticsRepository returns the statistics repository instance
func (f *Factory) GetStatisticsRepository() statistics.Repository {
	return f.GetRepositories().Statistics
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
