package stripewebhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/clausewise-backend/pkg/stripe"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

// Event is one of SubscriptionCreated, SubscriptionUpdated or
// SubscriptionDeleted.
type Event interface {
	Subscription() SubscriptionPayload
	kind() stripe.EventType
}

// SubscriptionPayload is the subscription state carried by every handled event.
// UserID is uuid.Nil and Tier empty when the subscription carries no metadata.
type SubscriptionPayload struct {
	SubscriptionID   string
	CustomerID       string
	UserID           uuid.UUID
	Tier             enums.SubscriptionTier
	Status           stripe.SubscriptionStatus
	CurrentPeriodEnd *time.Time
}

type SubscriptionCreated struct{ Payload SubscriptionPayload }
type SubscriptionUpdated struct{ Payload SubscriptionPayload }
type SubscriptionDeleted struct{ Payload SubscriptionPayload }

func (e SubscriptionCreated) Subscription() SubscriptionPayload { return e.Payload }
func (e SubscriptionUpdated) Subscription() SubscriptionPayload { return e.Payload }
func (e SubscriptionDeleted) Subscription() SubscriptionPayload { return e.Payload }

func (SubscriptionCreated) kind() stripe.EventType {
	return stripe.EventTypeCustomerSubscriptionCreated
}
func (SubscriptionUpdated) kind() stripe.EventType {
	return stripe.EventTypeCustomerSubscriptionUpdated
}
func (SubscriptionDeleted) kind() stripe.EventType {
	return stripe.EventTypeCustomerSubscriptionDeleted
}

// Decode converts a verified Stripe event into a typed Event. Kinds other
// than the three subscription lifecycle events decode to nil without error.
func Decode(event stripe.Event) (Event, error) {
	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
	default:
		return nil, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
	}
	payload, err := payloadFrom(&sub)
	if err != nil {
		return nil, err
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated:
		return SubscriptionCreated{Payload: payload}, nil
	case stripe.EventTypeCustomerSubscriptionUpdated:
		return SubscriptionUpdated{Payload: payload}, nil
	default:
		return SubscriptionDeleted{Payload: payload}, nil
	}
}

func payloadFrom(sub *stripe.Subscription) (SubscriptionPayload, error) {
	if strings.TrimSpace(sub.ID) == "" {
		return SubscriptionPayload{}, pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
	}
	payload := SubscriptionPayload{
		SubscriptionID: sub.ID,
		Status:         sub.Status,
	}
	if sub.Customer != nil {
		payload.CustomerID = sub.Customer.ID
	}
	if raw := strings.TrimSpace(sub.Metadata[pkgstripe.MetadataUserID]); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return SubscriptionPayload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s metadata", pkgstripe.MetadataUserID))
		}
		payload.UserID = id
	}
	if raw := strings.TrimSpace(sub.Metadata[pkgstripe.MetadataTier]); raw != "" {
		tier, err := enums.ParseSubscriptionTier(strings.ToLower(raw))
		if err != nil {
			return SubscriptionPayload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s metadata", pkgstripe.MetadataTier))
		}
		payload.Tier = tier
	}
	if end, ok := pkgstripe.PeriodEnd(sub); ok {
		payload.CurrentPeriodEnd = &end
	}
	return payload, nil
}
