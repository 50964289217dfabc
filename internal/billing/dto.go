package billing

import (
	"time"

	"github.com/angelmondragon/clausewise-backend/internal/plans"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
)

// SubscribeRequest selects the paid tier to purchase.
type SubscribeRequest struct {
	Tier string `json:"tier" validate:"required,oneof=basic pro enterprise"`
}

// SubscribeResponse carries what the client needs to confirm the first payment.
type SubscribeResponse struct {
	SubscriptionID   string                   `json:"subscriptionId"`
	ClientSecret     string                   `json:"clientSecret,omitempty"`
	Tier             enums.SubscriptionTier   `json:"tier"`
	Status           enums.SubscriptionStatus `json:"status"`
	CurrentPeriodEnd *time.Time               `json:"currentPeriodEnd,omitempty"`
}

// PortalResponse holds the hosted billing portal URL.
type PortalResponse struct {
	URL string `json:"url"`
}

// CancelResponse reports the tier the user fell back to.
type CancelResponse struct {
	Message string                 `json:"message"`
	Tier    enums.SubscriptionTier `json:"tier"`
}

// PlanList is the public plan listing.
type PlanList struct {
	Plans []plans.Plan `json:"plans"`
}
