package enums

import "fmt"

// SubscriptionTier names a plan in the catalog, ordered from cheapest to most capable.
type SubscriptionTier string

const (
	SubscriptionTierFree       SubscriptionTier = "free"
	SubscriptionTierBasic      SubscriptionTier = "basic"
	SubscriptionTierPro        SubscriptionTier = "pro"
	SubscriptionTierEnterprise SubscriptionTier = "enterprise"
)

var validSubscriptionTiers = []SubscriptionTier{
	SubscriptionTierFree,
	SubscriptionTierBasic,
	SubscriptionTierPro,
	SubscriptionTierEnterprise,
}

// String implements fmt.Stringer.
func (t SubscriptionTier) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t SubscriptionTier) IsValid() bool {
	for _, candidate := range validSubscriptionTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSubscriptionTier converts raw input into a SubscriptionTier.
func ParseSubscriptionTier(value string) (SubscriptionTier, error) {
	for _, candidate := range validSubscriptionTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription tier %q", value)
}

// OrderedSubscriptionTiers returns every tier in ascending plan order.
func OrderedSubscriptionTiers() []SubscriptionTier {
	tiers := make([]SubscriptionTier, len(validSubscriptionTiers))
	copy(tiers, validSubscriptionTiers)
	return tiers
}

// IsPaid reports whether the tier is billed through the payment processor.
func (t SubscriptionTier) IsPaid() bool {
	return t.IsValid() && t != SubscriptionTierFree
}
