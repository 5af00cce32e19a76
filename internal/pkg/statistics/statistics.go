// Package statistics computes the user and subscription figures of the admin dashboard.
package statistics

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/cache"
)

const (
	CacheKeyUsers         = "statistics:users"
	CacheKeySubscriptions = "statistics:subscriptions"
	CacheExpiration       = 5 * time.Minute
)

// UserAnalytics summarizes the user base.
type UserAnalytics struct {
	TotalUsers        int64 `json:"total_users"`
	ActiveUsers       int64 `json:"active_users"`
	TrialUsers        int64 `json:"trial_users"`
	PremiumUsers      int64 `json:"premium_users"`
	SubscriberUsers   int64 `json:"subscriber_users"`
	FounderUsers      int64 `json:"founder_users"`
	UnlimitedUsers    int64 `json:"unlimited_users"`
	AdminUsers        int64 `json:"admin_users"`
	TotalCredits      int64 `json:"total_credits"`
	AvgCreditsPerUser int64 `json:"avg_credits_per_user"`
}

// TierFigures is the per-tier part of SubscriptionAnalytics.
type TierFigures struct {
	Count   int64           `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// SubscriptionAnalytics summarizes active subscription rows.
type SubscriptionAnalytics struct {
	TotalSubscriptions     int64                  `json:"total_subscriptions"`
	ActiveSubscriptions    int64                  `json:"active_subscriptions"`
	TrialSubscriptions     int64                  `json:"trial_subscriptions"`
	CancelledSubscriptions int64                  `json:"cancelled_subscriptions"`
	ByTier                 map[string]TierFigures `json:"by_tier"`
	TotalMRR               decimal.Decimal        `json:"total_mrr"`
}

// Service computes analytics, caching results in Redis when a client is set.
type Service struct {
	repo  Repository
	cache *redis.Client
}

// NewService creates a statistics service. rdb may be nil.
func NewService(repo Repository, rdb *redis.Client) *Service {
	return &Service{repo: repo, cache: rdb}
}

// NewServiceFromDB creates a statistics service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, rdb *redis.Client) *Service {
	return NewService(NewRepository(db), rdb)
}

// UserAnalytics returns the user figures.
func (s *Service) UserAnalytics(ctx context.Context) (*UserAnalytics, error) {
	var out UserAnalytics
	if s.cached(ctx, CacheKeyUsers, &out) {
		return &out, nil
	}

	counts, err := s.repo.UserCounts(ctx)
	if err != nil {
		return nil, apperr.FromStore("count users", err)
	}
	rows, err := s.repo.TierStatus(ctx, false)
	if err != nil {
		return nil, apperr.FromStore("count subscriptions", err)
	}
	credits, err := s.repo.TotalCredits(ctx)
	if err != nil {
		return nil, apperr.FromStore("sum credits", err)
	}

	out = UserAnalytics{
		TotalUsers:   counts.Total,
		ActiveUsers:  counts.Active,
		AdminUsers:   counts.Admins,
		TotalCredits: credits,
	}
	for _, r := range rows {
		switch r.Tier {
		case models.TierRegistered:
			if r.Status == models.SubscriptionStatusTrial {
				out.TrialUsers += r.Count
			}
		case models.TierSubscriber:
			out.SubscriberUsers += r.Count
		case models.TierFounder:
			out.FounderUsers += r.Count
		case models.TierUnlimited:
			out.UnlimitedUsers += r.Count
		}
	}
	out.PremiumUsers = out.SubscriberUsers + out.FounderUsers + out.UnlimitedUsers
	out.AvgCreditsPerUser = averageRounded(credits, counts.Total)

	s.store(ctx, CacheKeyUsers, out)
	return &out, nil
}

// SubscriptionAnalytics returns figures over rows flagged is_active. Revenue
// and MRR only count rows in status active.
func (s *Service) SubscriptionAnalytics(ctx context.Context) (*SubscriptionAnalytics, error) {
	var out SubscriptionAnalytics
	if s.cached(ctx, CacheKeySubscriptions, &out) {
		return &out, nil
	}

	rows, err := s.repo.TierStatus(ctx, true)
	if err != nil {
		return nil, apperr.FromStore("aggregate subscriptions", err)
	}

	out = SubscriptionAnalytics{ByTier: map[string]TierFigures{}, TotalMRR: decimal.Zero}
	for _, r := range rows {
		out.TotalSubscriptions += r.Count
		switch r.Status {
		case models.SubscriptionStatusActive:
			out.ActiveSubscriptions += r.Count
		case models.SubscriptionStatusTrial:
			out.TrialSubscriptions += r.Count
		case models.SubscriptionStatusCancelled:
			out.CancelledSubscriptions += r.Count
		}

		fig, ok := out.ByTier[r.Tier]
		if !ok {
			fig.Revenue = decimal.Zero
		}
		fig.Count += r.Count
		if r.Status == models.SubscriptionStatusActive {
			fig.Revenue = fig.Revenue.Add(r.Revenue)
			out.TotalMRR = out.TotalMRR.Add(r.Revenue)
		}
		out.ByTier[r.Tier] = fig
	}

	s.store(ctx, CacheKeySubscriptions, out)
	return &out, nil
}

// Invalidate drops cached figures, e.g. after a bulk change.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, CacheKeyUsers, CacheKeySubscriptions).Err(); err != nil {
		log.Warnf("[Statistics] cache invalidation failed: %v", err)
	}
}

func (s *Service) cached(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	err := cache.GetJSON(ctx, s.cache, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrMiss) {
		log.Warnf("[Statistics] cache read %s failed: %v", key, err)
	}
	return false
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, v, CacheExpiration); err != nil {
		log.Warnf("[Statistics] cache write %s failed: %v", key, err)
	}
}

// averageRounded divides and rounds half away from zero; 0 users yields 0.
func averageRounded(total, n int64) int64 {
	if n <= 0 {
		return 0
	}
	return decimal.NewFromInt(total).Div(decimal.NewFromInt(n)).Round(0).IntPart()
}
