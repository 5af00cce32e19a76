package subscription

import (
	"strings"

	"github.com/assistdesk/assistdesk/app/models"
)

// Tiers lists the subscription tiers in ascending order.
var Tiers = []string{models.TierRegistered, models.TierSubscriber, models.TierFounder, models.TierUnlimited}

// PaymentMethods accepted for simulated billing.
var PaymentMethods = []string{"card", "paypal", "bank_transfer"}

const DefaultPaymentMethod = "card"

// normalizeTier returns the canonical tier name or "" when unknown.
func normalizeTier(tier string) string {
	t := strings.ToLower(strings.TrimSpace(tier))
	for _, known := range Tiers {
		if t == known {
			return known
		}
	}
	return ""
}

// tierRank orders tiers; unknown tiers rank below registered.
func tierRank(tier string) int {
	t := normalizeTier(tier)
	for i, known := range Tiers {
		if t == known {
			return i
		}
	}
	return -1
}

// IsUpgrade reports whether moving from one tier to another goes up the ladder.
// It is used for presentation only and never gates a change.
func IsUpgrade(from, to string) bool {
	return tierRank(to) > tierRank(from)
}

func normalizePaymentMethod(method string) string {
	m := strings.ToLower(strings.TrimSpace(method))
	if m == "" {
		return DefaultPaymentMethod
	}
	for _, known := range PaymentMethods {
		if m == known {
			return known
		}
	}
	return ""
}

// canTransition reports whether a subscription in status from may move to status to.
func canTransition(from, to string) bool {
	switch to {
	case models.SubscriptionStatusPaused:
		return from == models.SubscriptionStatusActive
	case models.SubscriptionStatusActive:
		return from == models.SubscriptionStatusPaused
	case models.SubscriptionStatusCancelled:
		return from != models.SubscriptionStatusCancelled
	default:
		return false
	}
}
