package auth

import (
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Tier   enums.SubscriptionTier
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients. Tier is a
// hint for clients only; entitlement checks always read the user record.
type AccessTokenClaims struct {
	UserID uuid.UUID              `json:"user_id"`
	Email  string                 `json:"email,omitempty"`
	Tier   enums.SubscriptionTier `json:"tier"`
	jwt.RegisteredClaims
}
