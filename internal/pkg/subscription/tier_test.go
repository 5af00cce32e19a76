package subscription

import (
	"testing"

	"github.com/assistdesk/assistdesk/app/models"
)

func TestNormalizeTier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "registered", want: "registered"},
		{in: " Subscriber ", want: "subscriber"},
		{in: "FOUNDER", want: "founder"},
		{in: "unlimited", want: "unlimited"},
		{in: "premium", want: ""},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		if got := normalizeTier(tt.in); got != tt.want {
			t.Fatalf("normalizeTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTierOrdering(t *testing.T) {
	for i := 1; i < len(Tiers); i++ {
		if !IsUpgrade(Tiers[i-1], Tiers[i]) {
			t.Fatalf("expected %s -> %s to be an upgrade", Tiers[i-1], Tiers[i])
		}
		if IsUpgrade(Tiers[i], Tiers[i-1]) {
			t.Fatalf("expected %s -> %s to be a downgrade", Tiers[i], Tiers[i-1])
		}
	}
	if IsUpgrade("founder", "founder") {
		t.Fatalf("same tier is not an upgrade")
	}
	if !IsUpgrade("bogus", "registered") {
		t.Fatalf("unknown tiers rank below registered")
	}
}

func TestNormalizePaymentMethod(t *testing.T) {
	if got := normalizePaymentMethod(""); got != "card" {
		t.Fatalf("default payment method = %q", got)
	}
	if got := normalizePaymentMethod("PayPal"); got != "paypal" {
		t.Fatalf("normalizePaymentMethod(PayPal) = %q", got)
	}
	if got := normalizePaymentMethod("cash"); got != "" {
		t.Fatalf("expected cash to be rejected, got %q", got)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{models.SubscriptionStatusActive, models.SubscriptionStatusPaused},
		{models.SubscriptionStatusPaused, models.SubscriptionStatusActive},
		{models.SubscriptionStatusTrial, models.SubscriptionStatusCancelled},
		{models.SubscriptionStatusPaused, models.SubscriptionStatusCancelled},
	}
	for _, tr := range allowed {
		if !canTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be allowed", tr[0], tr[1])
		}
	}
	denied := [][2]string{
		{models.SubscriptionStatusTrial, models.SubscriptionStatusPaused},
		{models.SubscriptionStatusTrial, models.SubscriptionStatusActive},
		{models.SubscriptionStatusCancelled, models.SubscriptionStatusPaused},
		{models.SubscriptionStatusActive, models.SubscriptionStatusActive},
		{models.SubscriptionStatusCancelled, models.SubscriptionStatusCancelled},
		{models.SubscriptionStatusCancelled, models.SubscriptionStatusActive},
	}
	for _, tr := range denied {
		if canTransition(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be rejected", tr[0], tr[1])
		}
	}
}
