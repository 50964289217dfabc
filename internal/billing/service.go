package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/clausewise-backend/internal/plans"
	"github.com/angelmondragon/clausewise-backend/internal/users"
	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/clausewise-backend/pkg/stripe"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

// Service manages a user's paid subscription through Stripe.
type Service interface {
	Plans() PlanList
	Subscribe(ctx context.Context, userID uuid.UUID, req SubscribeRequest) (*SubscribeResponse, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*CancelResponse, error)
	Portal(ctx context.Context, userID uuid.UUID) (*PortalResponse, error)
}

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error
	UpdateSubscription(ctx context.Context, id uuid.UUID, update users.SubscriptionUpdate) error
}

// StripeClient is the subset of pkg/stripe used for subscription management.
type StripeClient interface {
	CreateCustomer(ctx context.Context, userID uuid.UUID, email, name string) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID string, userID uuid.UUID, tier string) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Users           userRepository
	Stripe          StripeClient
	Catalog         *plans.Catalog
	PriceIDs        map[string]string
	PortalReturnURL string
	Logger          *logger.Logger
}

type service struct {
	users     userRepository
	stripe    StripeClient
	catalog   *plans.Catalog
	priceIDs  map[string]string
	returnURL string
	logg      *logger.Logger
}

// NewService builds the billing service.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("plan catalog required")
	}
	return &service{
		users:     params.Users,
		stripe:    params.Stripe,
		catalog:   params.Catalog,
		priceIDs:  params.PriceIDs,
		returnURL: strings.TrimSpace(params.PortalReturnURL),
		logg:      params.Logger,
	}, nil
}

func (s *service) Plans() PlanList {
	return PlanList{Plans: s.catalog.Plans()}
}

func (s *service) Subscribe(ctx context.Context, userID uuid.UUID, req SubscribeRequest) (*SubscribeResponse, error) {
	tier, err := enums.ParseSubscriptionTier(req.Tier)
	if err != nil || tier == enums.SubscriptionTierFree {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier must be basic, pro or enterprise")
	}
	priceID := strings.TrimSpace(s.priceIDs[string(tier)])
	if priceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no price configured for tier %s", tier))
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.StripeSubscriptionID != nil && *user.StripeSubscriptionID != "" {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "subscription already exists; change plans from the billing portal")
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	sub, err := s.stripe.CreateSubscription(ctx, customerID, priceID, user.ID, string(tier))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSubscriptionError, err, "create subscription")
	}

	// The tier changes when the subscription webhook arrives.
	subID := sub.ID
	if err := s.users.UpdateSubscription(ctx, user.ID, users.SubscriptionUpdate{
		Tier:           user.SubscriptionTier,
		EndsAt:         user.SubscriptionEndsAt,
		SubscriptionID: &subID,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store subscription id")
	}

	resp := &SubscribeResponse{
		SubscriptionID: sub.ID,
		ClientSecret:   pkgstripe.ClientSecret(sub),
		Tier:           tier,
		Status:         enums.SubscriptionStatus(sub.Status),
	}
	if end, ok := pkgstripe.PeriodEnd(sub); ok {
		resp.CurrentPeriodEnd = &end
	}
	s.info(ctx, "billing.subscription_created", map[string]any{"user_id": user.ID.String(), "tier": string(tier), "subscription_id": sub.ID})
	return resp, nil
}

func (s *service) Cancel(ctx context.Context, userID uuid.UUID) (*CancelResponse, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription found")
	}

	if err := s.stripe.CancelSubscription(ctx, *user.StripeSubscriptionID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSubscriptionError, err, "cancel subscription")
	}
	if err := s.users.UpdateSubscription(ctx, user.ID, users.SubscriptionUpdate{Tier: enums.SubscriptionTierFree}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "downgrade user")
	}
	s.info(ctx, "billing.subscription_cancelled", map[string]any{"user_id": user.ID.String(), "subscription_id": *user.StripeSubscriptionID})
	return &CancelResponse{Message: "subscription cancelled", Tier: enums.SubscriptionTierFree}, nil
}

func (s *service) Portal(ctx context.Context, userID uuid.UUID) (*PortalResponse, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no billing account found")
	}
	url, err := s.stripe.CreatePortalSession(ctx, *user.StripeCustomerID, s.returnURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSubscriptionError, err, "create billing portal session")
	}
	return &PortalResponse{URL: url}, nil
}

func (s *service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeAuthRequired, "authentication required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUserNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return user, nil
}

func (s *service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	customerID, err := s.stripe.CreateCustomer(ctx, user.ID, user.Email, user.DisplayName)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeSubscriptionError, err, "create customer")
	}
	if err := s.users.SetStripeCustomer(ctx, user.ID, customerID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store customer id")
	}
	user.StripeCustomerID = &customerID
	return customerID, nil
}

func (s *service) info(ctx context.Context, msg string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}
