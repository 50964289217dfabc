package stripewebhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/clausewise-backend/internal/users"
	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, update users.SubscriptionUpdate) error
}

type eventGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	Users  userRepository
	Guard  eventGuard
	Logger *logger.Logger
}

// Service applies Stripe subscription lifecycle events to user accounts.
type Service struct {
	users userRepository
	guard eventGuard
	logg  *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repository required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	return &Service{users: params.Users, guard: params.Guard, logg: params.Logger}, nil
}

// Process handles a verified event once. It reports false when the event id
// was already processed. The claim is released when handling fails so the
// redelivery runs again.
func (s *Service) Process(ctx context.Context, event stripe.Event) (bool, error) {
	seen, err := s.guard.Claim(ctx, event.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if seen {
		return false, nil
	}

	if err := s.handle(ctx, event); err != nil {
		if releaseErr := s.guard.Release(ctx, event.ID); releaseErr != nil {
			s.warn(ctx, "stripe.webhook.release_failed", map[string]any{"event_id": event.ID, "error": releaseErr.Error()})
		}
		return false, err
	}
	return true, nil
}

func (s *Service) handle(ctx context.Context, event stripe.Event) error {
	decoded, err := Decode(event)
	if err != nil {
		return err
	}
	if decoded == nil {
		return nil
	}
	return s.Apply(ctx, decoded)
}

// Apply writes the tier and end date carried by ev onto the owning user.
func (s *Service) Apply(ctx context.Context, ev Event) error {
	payload := ev.Subscription()
	user, err := s.resolveUser(ctx, payload)
	if err != nil {
		return err
	}
	if user == nil {
		s.warn(ctx, "stripe.webhook.user_not_found", map[string]any{
			"subscription_id": payload.SubscriptionID,
			"customer_id":     payload.CustomerID,
		})
		return nil
	}

	var update users.SubscriptionUpdate
	switch e := ev.(type) {
	case SubscriptionCreated, SubscriptionUpdated:
		if terminalStatus(payload.Status) {
			if !ownsSubscription(user, payload.SubscriptionID) {
				return nil
			}
			update = users.SubscriptionUpdate{Tier: enums.SubscriptionTierFree}
			break
		}
		if payload.Tier == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription tier metadata missing")
		}
		subID := payload.SubscriptionID
		update = users.SubscriptionUpdate{
			Tier:           payload.Tier,
			EndsAt:         payload.CurrentPeriodEnd,
			SubscriptionID: &subID,
		}
	case SubscriptionDeleted:
		if !ownsSubscription(user, payload.SubscriptionID) {
			return nil
		}
		update = users.SubscriptionUpdate{Tier: enums.SubscriptionTierFree}
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unhandled event %T", e))
	}

	if err := s.users.UpdateSubscription(ctx, user.ID, update); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user subscription")
	}
	s.info(ctx, "stripe.webhook.subscription_applied", map[string]any{
		"event":           string(ev.kind()),
		"user_id":         user.ID.String(),
		"subscription_id": payload.SubscriptionID,
		"tier":            string(update.Tier),
	})
	return nil
}

func (s *Service) resolveUser(ctx context.Context, payload SubscriptionPayload) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	switch {
	case payload.UserID != uuid.Nil:
		user, err = s.users.FindByID(ctx, payload.UserID)
	case payload.CustomerID != "":
		user, err = s.users.FindByStripeCustomerID(ctx, payload.CustomerID)
	default:
		return nil, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription owner")
	}
	return user, nil
}

// ownsSubscription is false when the user already moved to another
// subscription, which makes events for the old one stale.
func ownsSubscription(user *models.User, subscriptionID string) bool {
	return user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" || *user.StripeSubscriptionID == subscriptionID
}

func terminalStatus(status stripe.SubscriptionStatus) bool {
	return status == stripe.SubscriptionStatusCanceled || status == stripe.SubscriptionStatusIncompleteExpired
}

func (s *Service) info(ctx context.Context, msg string, fields map[string]any) {
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, fields), msg)
	}
}

func (s *Service) warn(ctx context.Context, msg string, fields map[string]any) {
	if s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, fields), msg)
	}
}
