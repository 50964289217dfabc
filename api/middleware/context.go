package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/clausewise-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxTier   contextKey = "subscription_tier"
)

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxUserID).(uuid.UUID)
	if !ok || v == uuid.Nil {
		return uuid.Nil, false
	}
	return v, true
}

// TierFromContext returns the tier carried by the access token. The gate
// always re-reads the account, so this is informational only.
func TierFromContext(ctx context.Context) enums.SubscriptionTier {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxTier).(enums.SubscriptionTier); ok {
		return v
	}
	return ""
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

func withTier(ctx context.Context, tier enums.SubscriptionTier) context.Context {
	return context.WithValue(ctx, ctxTier, tier)
}
