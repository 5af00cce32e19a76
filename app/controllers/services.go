package controllers

import (
	"context"
	"time"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/accounts"
	"github.com/assistdesk/assistdesk/internal/pkg/assistant"
	"github.com/assistdesk/assistdesk/internal/pkg/audit"
	"github.com/assistdesk/assistdesk/internal/pkg/auditarchive"
	"github.com/assistdesk/assistdesk/internal/pkg/jobqueue"
	"github.com/assistdesk/assistdesk/internal/pkg/ledger"
	"github.com/assistdesk/assistdesk/internal/pkg/statistics"
	"github.com/assistdesk/assistdesk/internal/pkg/subscription"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

// AccountService is the user administration surface used by the handlers.
type AccountService interface {
	List(ctx context.Context, filter accounts.Filter) ([]accounts.Summary, int64, error)
	Get(ctx context.Context, id uint) (*accounts.Summary, error)
	Create(ctx context.Context, caller usercontext.UserContext, in accounts.CreateInput) (*accounts.Result, error)
	UpdateProfile(ctx context.Context, caller usercontext.UserContext, id uint, in accounts.ProfileInput) (*accounts.Result, error)
	SetActive(ctx context.Context, caller usercontext.UserContext, id uint, active bool) (*accounts.Result, error)
	ChangeRole(ctx context.Context, caller usercontext.UserContext, id uint, role string) (*accounts.Result, error)
	Deactivate(ctx context.Context, caller usercontext.UserContext, id uint) (*accounts.Result, error)
	BulkUpdate(ctx context.Context, caller usercontext.UserContext, in accounts.BulkInput) (*accounts.BulkResult, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	IssueAPIKey(ctx context.Context, caller usercontext.UserContext, userID uint, name string) (*accounts.IssuedKey, error)
	ListAPIKeys(ctx context.Context, userID uint) ([]models.APIKey, error)
	RevokeAPIKey(ctx context.Context, caller usercontext.UserContext, userID, keyID uint) error
}

// CreditService is the ledger surface used by the handlers.
type CreditService interface {
	AddCredits(ctx context.Context, caller usercontext.UserContext, userID uint, amount int64, description string) (*ledger.Result, error)
	DeductCredits(ctx context.Context, caller usercontext.UserContext, userID uint, amount int64, description string) (*ledger.Result, error)
	Balance(ctx context.Context, userID uint) (*models.UserCredit, error)
	Transactions(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error)
	SyncMissingAccounts(ctx context.Context) (int, error)
}

// SubscriptionService is the lifecycle surface used by the handlers.
type SubscriptionService interface {
	Plans(ctx context.Context) ([]models.SubscriptionPlan, error)
	Current(ctx context.Context, userID uint) (*models.UserSubscription, error)
	ChangePlan(ctx context.Context, caller usercontext.UserContext, userID uint, newTier, paymentMethod string) (*subscription.Result, error)
	Cancel(ctx context.Context, caller usercontext.UserContext, userID uint, reason string) (*subscription.Result, error)
	Pause(ctx context.Context, caller usercontext.UserContext, userID uint) (*subscription.Result, error)
	Resume(ctx context.Context, caller usercontext.UserContext, userID uint) (*subscription.Result, error)
	UpdateRenewal(ctx context.Context, caller usercontext.UserContext, userID uint, autoRenewal bool) (*subscription.Result, error)
	History(ctx context.Context, userID uint, limit int) ([]models.SubscriptionPlanChange, error)
	Simulations(ctx context.Context, userID uint, limit int) ([]models.BillingSimulation, error)
	SyncMissingSubscriptions(ctx context.Context) (int, error)
}

// AssistantService is the registry surface used by the handlers.
type AssistantService interface {
	List(ctx context.Context, filter assistant.Filter) ([]models.Assistant, int64, error)
	Get(ctx context.Context, id uint) (*models.Assistant, error)
	Create(ctx context.Context, caller usercontext.UserContext, in assistant.Input) (*assistant.Result, error)
	Update(ctx context.Context, caller usercontext.UserContext, id uint, in assistant.Input) (*assistant.Result, error)
	SetState(ctx context.Context, caller usercontext.UserContext, id uint, state, reason string) (*assistant.Result, error)
	BulkSetState(ctx context.Context, caller usercontext.UserContext, ids []uint, state, reason string) (*assistant.BulkResult, error)
	Delete(ctx context.Context, caller usercontext.UserContext, id uint) (*assistant.Result, error)
	KnowledgeBanks(ctx context.Context) ([]models.KnowledgeBank, error)
}

// ActivityService lists admin activity entries.
type ActivityService interface {
	List(ctx context.Context, filter audit.Filter) ([]models.AdminActivityLog, int64, error)
}

// ArchiveService exports activity windows.
type ArchiveService interface {
	Enabled() bool
	Export(ctx context.Context, from, to time.Time) (*auditarchive.Result, error)
}

// AnalyticsService computes dashboard figures.
type AnalyticsService interface {
	UserAnalytics(ctx context.Context) (*statistics.UserAnalytics, error)
	SubscriptionAnalytics(ctx context.Context) (*statistics.SubscriptionAnalytics, error)
}

// JobScheduler enqueues background work.
type JobScheduler interface {
	EnqueueReconcile(ctx context.Context, adminID uint) (*jobqueue.Job, error)
	EnqueueArchive(ctx context.Context, from, to time.Time, adminID uint) (*jobqueue.Job, error)
}

// QueueInspector reports job queue figures.
type QueueInspector interface {
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
}

// Services bundles what the handlers call. Nil members answer 503.
type Services struct {
	Accounts      AccountService
	Credits       CreditService
	Subscriptions SubscriptionService
	Assistants    AssistantService
	Activity      ActivityService
	Archive       ArchiveService
	Analytics     AnalyticsService
	Jobs          JobScheduler
	Queue         QueueInspector
}

var services = &Services{}

// InitServices installs the services used by every handler.
func InitServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	services = s
}

// GetServices returns the installed services.
func GetServices() *Services {
	return services
}
