package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/clausewise-backend/internal/plans"
	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserAccountStore resolves the account being gated. A missing account must
// surface as gorm.ErrRecordNotFound.
type UserAccountStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ContractUploadStore counts uploads for the usage window.
type ContractUploadStore interface {
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
}

// PlanCatalog maps tiers to plans.
type PlanCatalog interface {
	Get(tier enums.SubscriptionTier) (plans.Plan, bool)
	SmallestFitting(size int64) (enums.SubscriptionTier, bool)
}

// Quota is the monthly usage snapshot returned to clients.
type Quota struct {
	Tier      enums.SubscriptionTier `json:"tier"`
	Used      int64                  `json:"used"`
	Limit     int                    `json:"limit"`
	Remaining int64                  `json:"remaining"`
	ResetDate string                 `json:"resetDate"`
}

// FeatureDenial details a FEATURE_UNAVAILABLE denial.
type FeatureDenial struct {
	Feature string                 `json:"feature"`
	Tier    enums.SubscriptionTier `json:"tier"`
}

// FileSizeDenial details a FILE_SIZE_LIMIT denial. SuggestedTier is omitted
// when no plan admits the file.
type FileSizeDenial struct {
	FileSizeBytes    int64                   `json:"fileSizeBytes"`
	MaxFileSizeBytes int64                   `json:"maxFileSizeBytes"`
	Tier             enums.SubscriptionTier  `json:"tier"`
	SuggestedTier    *enums.SubscriptionTier `json:"suggestedTier,omitempty"`
}

// ExpiredDenial details a SUBSCRIPTION_EXPIRED denial.
type ExpiredDenial struct {
	Tier    enums.SubscriptionTier `json:"tier"`
	EndedAt *time.Time             `json:"endedAt,omitempty"`
}

// GateParams wires the gate collaborators.
type GateParams struct {
	Users     UserAccountStore
	Contracts ContractUploadStore
	Catalog   PlanCatalog
	Now       func() time.Time
}

// Gate decides whether a user may perform quota-counted and feature-gated
// actions. It holds no per-call state and is safe for concurrent use.
type Gate struct {
	users     UserAccountStore
	contracts ContractUploadStore
	catalog   PlanCatalog
	now       func() time.Time
}

// NewGate validates params and returns a Gate.
func NewGate(params GateParams) (*Gate, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user store required")
	}
	if params.Contracts == nil {
		return nil, fmt.Errorf("contract store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("plan catalog required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Gate{
		users:     params.Users,
		contracts: params.Contracts,
		catalog:   params.Catalog,
		now:       now,
	}, nil
}

// CheckUploadAllowed applies authentication, subscription validity, monthly
// quota and file size checks in that order and returns the first denial.
func (g *Gate) CheckUploadAllowed(ctx context.Context, userID uuid.UUID, fileSizeBytes int64) error {
	user, plan, err := g.resolve(ctx, userID)
	if err != nil {
		return err
	}
	now := g.now().UTC()
	if !SubscriptionActive(user, now) {
		return expiredError(user)
	}

	quota, err := g.quotaFor(ctx, user, plan, now)
	if err != nil {
		return err
	}
	if quota.Used >= int64(quota.Limit) {
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded, fmt.Sprintf("monthly limit of %d contracts reached", quota.Limit)).
			WithDetails(quota)
	}

	if fileSizeBytes > plan.MaxFileSizeBytes {
		denial := FileSizeDenial{
			FileSizeBytes:    fileSizeBytes,
			MaxFileSizeBytes: plan.MaxFileSizeBytes,
			Tier:             plan.Tier,
		}
		if tier, ok := g.catalog.SmallestFitting(fileSizeBytes); ok {
			denial.SuggestedTier = &tier
		}
		return pkgerrors.New(pkgerrors.CodeFileSizeLimit, fmt.Sprintf("file exceeds the %d byte limit of the %s plan", plan.MaxFileSizeBytes, plan.Tier)).
			WithDetails(denial)
	}
	return nil
}

// CheckFeatureAllowed denies when the user's plan does not enable feature.
func (g *Gate) CheckFeatureAllowed(ctx context.Context, userID uuid.UUID, feature string) error {
	_, plan, err := g.resolve(ctx, userID)
	if err != nil {
		return err
	}
	if !plan.HasFeature(feature) {
		return pkgerrors.New(pkgerrors.CodeFeatureUnavailable, fmt.Sprintf("feature %s is not available on the %s plan", feature, plan.Tier)).
			WithDetails(FeatureDenial{Feature: feature, Tier: plan.Tier})
	}
	return nil
}

// CheckSubscriptionValid denies with SUBSCRIPTION_EXPIRED when a paid
// subscription has lapsed.
func (g *Gate) CheckSubscriptionValid(ctx context.Context, userID uuid.UUID) error {
	user, _, err := g.resolve(ctx, userID)
	if err != nil {
		return err
	}
	if !SubscriptionActive(user, g.now().UTC()) {
		return expiredError(user)
	}
	return nil
}

// GetQuota reports the usage of the current calendar month.
func (g *Gate) GetQuota(ctx context.Context, userID uuid.UUID) (Quota, error) {
	user, plan, err := g.resolve(ctx, userID)
	if err != nil {
		return Quota{}, err
	}
	return g.quotaFor(ctx, user, plan, g.now().UTC())
}

func (g *Gate) resolve(ctx context.Context, userID uuid.UUID) (*models.User, plans.Plan, error) {
	if userID == uuid.Nil {
		return nil, plans.Plan{}, pkgerrors.New(pkgerrors.CodeAuthRequired, "authentication required")
	}
	user, err := g.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, plans.Plan{}, pkgerrors.New(pkgerrors.CodeUserNotFound, "user not found")
		}
		return nil, plans.Plan{}, pkgerrors.Wrap(pkgerrors.CodeSubscriptionError, err, "lookup user")
	}
	if user == nil {
		return nil, plans.Plan{}, pkgerrors.New(pkgerrors.CodeUserNotFound, "user not found")
	}
	plan, ok := g.catalog.Get(user.SubscriptionTier)
	if !ok {
		return nil, plans.Plan{}, pkgerrors.New(pkgerrors.CodeSubscriptionError, fmt.Sprintf("no plan for tier %q", user.SubscriptionTier))
	}
	return user, plan, nil
}

func (g *Gate) quotaFor(ctx context.Context, user *models.User, plan plans.Plan, now time.Time) (Quota, error) {
	start, reset := UsageWindow(now)
	used, err := g.contracts.CountSince(ctx, user.ID, start)
	if err != nil {
		return Quota{}, pkgerrors.Wrap(pkgerrors.CodeSubscriptionError, err, "count monthly uploads")
	}
	remaining := int64(plan.MonthlyContractLimit) - used
	if remaining < 0 {
		remaining = 0
	}
	return Quota{
		Tier:      plan.Tier,
		Used:      used,
		Limit:     plan.MonthlyContractLimit,
		Remaining: remaining,
		ResetDate: reset.Format(time.RFC3339),
	}, nil
}

func expiredError(user *models.User) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeSubscriptionExpired, fmt.Sprintf("%s subscription is not active", user.SubscriptionTier)).
		WithDetails(ExpiredDenial{Tier: user.SubscriptionTier, EndedAt: user.SubscriptionEndsAt})
}

// SubscriptionActive reports whether user's subscription is in force at now.
// Free accounts never expire; a paid tier without an end date is treated as
// lapsed.
func SubscriptionActive(user *models.User, now time.Time) bool {
	if user == nil {
		return false
	}
	if user.SubscriptionTier == enums.SubscriptionTierFree {
		return true
	}
	if user.SubscriptionEndsAt == nil {
		return false
	}
	return user.SubscriptionEndsAt.After(now)
}

// UsageWindow returns the UTC start of now's calendar month and the start of
// the following month.
func UsageWindow(now time.Time) (start, reset time.Time) {
	now = now.UTC()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
