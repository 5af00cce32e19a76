// Package subscription implements the per-user plan lifecycle:
// trial, active, paused and cancelled, with every plan change recorded.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/audit"
	"github.com/assistdesk/assistdesk/internal/pkg/cache"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

const (
	DefaultHistoryLimit     = 10
	DefaultSimulationsLimit = 5
	DefaultCancelReason     = "User requested cancellation"

	ReasonUserChange  = "User-initiated upgrade"
	ReasonAdminChange = "Admin plan change"

	plansCacheKey = "subscription:plans"
	plansCacheTTL = 10 * time.Minute
)

// Auditor records activity entries.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) (*models.AdminActivityLog, error)
}

// Result is returned by lifecycle mutations. Warning carries an audit
// failure that did not undo the mutation.
type Result struct {
	Subscription *models.UserSubscription       `json:"subscription"`
	Simulation   *models.BillingSimulation      `json:"simulation,omitempty"`
	Change       *models.SubscriptionPlanChange `json:"change,omitempty"`
	Warning      error                          `json:"-"`
}

// Service manages user subscriptions.
type Service struct {
	repo    Repository
	auditor Auditor
	cache   *redis.Client
	now     func() time.Time
}

// NewService creates a subscription service. auditor and rdb may be nil.
func NewService(repo Repository, auditor Auditor, rdb *redis.Client) *Service {
	return &Service{repo: repo, auditor: auditor, cache: rdb, now: time.Now}
}

// NewServiceFromDB creates a subscription service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, auditor Auditor, rdb *redis.Client) *Service {
	return NewService(NewRepository(db), auditor, rdb)
}

// Plans returns the active plans ordered by price.
func (s *Service) Plans(ctx context.Context) ([]models.SubscriptionPlan, error) {
	if s.cache != nil {
		var cached []models.SubscriptionPlan
		if err := cache.GetJSON(ctx, s.cache, plansCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Warnf("[Subscription] plan cache read failed: %v", err)
		}
	}

	plans, err := s.repo.ActivePlans(ctx)
	if err != nil {
		return nil, apperr.FromStore("list plans", err)
	}
	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, plansCacheKey, plans, plansCacheTTL); err != nil {
			log.Warnf("[Subscription] plan cache write failed: %v", err)
		}
	}
	return plans, nil
}

// InvalidatePlans drops the cached plan catalog.
func (s *Service) InvalidatePlans(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, plansCacheKey).Err(); err != nil {
		log.Warnf("[Subscription] plan cache invalidation failed: %v", err)
	}
}

// Current returns the user's active subscription.
func (s *Service) Current(ctx context.Context, userID uint) (*models.UserSubscription, error) {
	sub, err := s.repo.ActiveSubscription(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore("current subscription", err)
	}
	return sub, nil
}

// ChangePlan moves the user to newTier. It records a billing simulation,
// upserts the subscription, completes the simulation and appends a plan
// change event, in that order. A failing step leaves the simulation pending.
func (s *Service) ChangePlan(ctx context.Context, caller usercontext.UserContext, userID uint, newTier, paymentMethod string) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	tier := normalizeTier(newTier)
	if tier == "" {
		return nil, apperr.Validation("tier", "unknown tier %q", newTier)
	}
	method := normalizePaymentMethod(paymentMethod)
	if method == "" {
		return nil, apperr.Validation("payment_method", "unsupported payment method %q", paymentMethod)
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	plan, err := s.repo.ActivePlanByTier(ctx, tier)
	if err != nil {
		return nil, apperr.FromStore("plan for tier "+tier, err)
	}

	previous, err := s.repo.ActiveSubscription(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.FromStore("current subscription", err)
	}

	sim := &models.BillingSimulation{
		UserID:         userID,
		Tier:           tier,
		SimulatedPrice: plan.PriceUSD,
		PaymentMethod:  method,
		PaymentStatus:  models.PaymentStatusPending,
	}
	if err := s.repo.CreateSimulation(ctx, sim); err != nil {
		return nil, apperr.FromStore("create billing simulation", err)
	}

	now := s.now()
	next := now.Add(models.BillingCycle)
	planID := plan.ID
	sub := &models.UserSubscription{
		UserID:          userID,
		PlanID:          &planID,
		Tier:            tier,
		Status:          models.SubscriptionStatusActive,
		IsActive:        true,
		CreditsPerMonth: plan.CreditsPerMonth,
		PricePaid:       plan.PriceUSD,
		NextBillingDate: &next,
		AutoRenewal:     true,
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, apperr.FromStore("upsert subscription", err)
	}

	if err := s.repo.CompleteSimulation(ctx, sim.ID, now); err != nil {
		return nil, apperr.FromStore("complete billing simulation", err)
	}
	sim.PaymentStatus = models.PaymentStatusCompleted
	sim.ProcessedAt = &now

	change := &models.SubscriptionPlanChange{
		UserID:       userID,
		ToPlanID:     &planID,
		ToTier:       tier,
		ChangeReason: ReasonUserChange,
		ProcessedBy:  caller.UserID,
	}
	if caller.UserID != userID {
		change.ChangeReason = ReasonAdminChange
	}
	if previous != nil {
		fromTier := previous.Tier
		change.FromTier = &fromTier
		change.FromPlanID = previous.PlanID
	}
	if err := s.repo.CreatePlanChange(ctx, change); err != nil {
		return nil, apperr.FromStore("record plan change", err)
	}

	log.Infof("[Subscription] user %d moved to %s by %d", userID, tier, caller.UserID)
	res := &Result{Subscription: sub, Simulation: sim, Change: change}

	fromTier := ""
	if change.FromTier != nil {
		fromTier = *change.FromTier
	}
	res.Warning = s.audit(ctx, caller, userID, models.ActivitySubscriptionChange,
		fmt.Sprintf("Plan changed from %s to %s", displayTier(fromTier), tier),
		map[string]any{"from_tier": fromTier, "to_tier": tier, "payment_method": method, "price": plan.PriceUSD.StringFixed(2), "upgrade": IsUpgrade(fromTier, tier)})
	return res, nil
}

// Cancel cancels the user's active subscription and turns off auto renewal.
func (s *Service) Cancel(ctx context.Context, caller usercontext.UserContext, userID uint, reason string) (*Result, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultCancelReason
	}
	now := s.now()
	return s.transition(ctx, caller, userID, models.SubscriptionStatusCancelled, map[string]interface{}{
		"status":              models.SubscriptionStatusCancelled,
		"cancellation_date":   now,
		"cancellation_reason": reason,
		"auto_renewal":        false,
	}, models.ActivitySubscriptionCancel, "Subscription cancelled: "+reason, map[string]any{"reason": reason})
}

// Pause pauses an active subscription. Trials only become active through ChangePlan.
func (s *Service) Pause(ctx context.Context, caller usercontext.UserContext, userID uint) (*Result, error) {
	return s.transition(ctx, caller, userID, models.SubscriptionStatusPaused, map[string]interface{}{
		"status": models.SubscriptionStatusPaused,
	}, models.ActivitySubscriptionPause, "Subscription paused", nil)
}

// Resume reactivates a paused subscription.
func (s *Service) Resume(ctx context.Context, caller usercontext.UserContext, userID uint) (*Result, error) {
	return s.transition(ctx, caller, userID, models.SubscriptionStatusActive, map[string]interface{}{
		"status": models.SubscriptionStatusActive,
	}, models.ActivitySubscriptionResume, "Subscription resumed", nil)
}

// UpdateRenewal sets the auto renewal flag on the active subscription.
func (s *Service) UpdateRenewal(ctx context.Context, caller usercontext.UserContext, userID uint, autoRenewal bool) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	sub, err := s.repo.UpdateActiveSubscription(ctx, userID, nil, map[string]interface{}{"auto_renewal": autoRenewal})
	if err != nil {
		return nil, apperr.FromStore("update renewal", err)
	}
	desc := "Auto renewal disabled"
	if autoRenewal {
		desc = "Auto renewal enabled"
	}
	res := &Result{Subscription: sub}
	res.Warning = s.audit(ctx, caller, userID, models.ActivitySubscriptionRenewal, desc, map[string]any{"auto_renewal": autoRenewal})
	return res, nil
}

func (s *Service) transition(ctx context.Context, caller usercontext.UserContext, userID uint, to string, updates map[string]interface{}, activity, description string, meta map[string]any) (*Result, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	current, err := s.repo.ActiveSubscription(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore("active subscription", err)
	}
	if !canTransition(current.Status, to) {
		return nil, apperr.Validation("status", "cannot move a %s subscription to %s", current.Status, to)
	}

	sub, err := s.repo.UpdateActiveSubscription(ctx, userID, []string{current.Status}, updates)
	if err != nil {
		return nil, apperr.FromStore("update subscription", err)
	}
	log.Infof("[Subscription] user %d %s -> %s by %d", userID, current.Status, to, caller.UserID)

	if meta == nil {
		meta = map[string]any{}
	}
	meta["from_status"] = current.Status
	meta["to_status"] = to
	res := &Result{Subscription: sub}
	res.Warning = s.audit(ctx, caller, userID, activity, description, meta)
	return res, nil
}

// History returns the newest plan change events for the user.
func (s *Service) History(ctx context.Context, userID uint, limit int) ([]models.SubscriptionPlanChange, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	changes, err := s.repo.PlanChanges(ctx, userID, limit)
	if err != nil {
		return nil, apperr.FromStore("plan history", err)
	}
	return changes, nil
}

// Simulations returns the newest billing simulations for the user.
func (s *Service) Simulations(ctx context.Context, userID uint, limit int) ([]models.BillingSimulation, error) {
	if limit <= 0 {
		limit = DefaultSimulationsLimit
	}
	sims, err := s.repo.Simulations(ctx, userID, limit)
	if err != nil {
		return nil, apperr.FromStore("billing simulations", err)
	}
	return sims, nil
}

// ReconcilePendingSimulations marks simulations still pending after olderThan as failed.
func (s *Service) ReconcilePendingSimulations(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, apperr.Validation("older_than", "must be positive")
	}
	n, err := s.repo.FailStaleSimulations(ctx, s.now().Add(-olderThan), fmt.Sprintf("pending for more than %s", olderThan))
	if err != nil {
		return 0, apperr.FromStore("reconcile simulations", err)
	}
	if n > 0 {
		log.Warnf("[Subscription] marked %d stale billing simulations failed", n)
	}
	return n, nil
}

// SyncMissingSubscriptions gives every user without a subscription a
// registered trial row.
func (s *Service) SyncMissingSubscriptions(ctx context.Context) (int, error) {
	ids, err := s.repo.UsersWithoutSubscription(ctx)
	if err != nil {
		return 0, apperr.FromStore("users without subscription", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var planID *uint
	var credits int64
	if plan, err := s.repo.ActivePlanByTier(ctx, models.TierRegistered); err == nil {
		planID = &plan.ID
		credits = plan.CreditsPerMonth
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.FromStore("registered plan", err)
	}

	created := 0
	for _, id := range ids {
		ok, err := s.repo.CreateSubscriptionIfMissing(ctx, &models.UserSubscription{
			UserID:          id,
			PlanID:          planID,
			Tier:            models.TierRegistered,
			Status:          models.SubscriptionStatusTrial,
			IsActive:        true,
			CreditsPerMonth: credits,
			AutoRenewal:     true,
		})
		if err != nil {
			return created, apperr.FromStore("create subscription", err)
		}
		if ok {
			created++
		}
	}
	log.Infof("[Subscription] created %d missing subscriptions", created)
	return created, nil
}

func (s *Service) requireUser(ctx context.Context, userID uint) error {
	if userID == 0 {
		return apperr.Validation("user_id", "is required")
	}
	ok, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return apperr.FromStore("lookup user", err)
	}
	if !ok {
		return apperr.NotFound("user")
	}
	return nil
}

// audit writes an activity entry for admin callers only.
func (s *Service) audit(ctx context.Context, caller usercontext.UserContext, userID uint, activity, description string, meta map[string]any) error {
	if s.auditor == nil || !caller.IsAdmin {
		return nil
	}
	subject := userID
	_, err := s.auditor.Record(ctx, audit.Entry{
		AdminUserID:  caller.UserID,
		UserID:       &subject,
		EntityType:   models.EntitySubscription,
		EntityID:     audit.EntityIDFor(userID),
		ActivityType: activity,
		Description:  description,
		Metadata:     meta,
	})
	return err
}

func displayTier(tier string) string {
	if tier == "" {
		return "none"
	}
	return tier
}
