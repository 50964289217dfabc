package users

import (
	"strings"
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/google/uuid"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID                 uuid.UUID              `json:"id"`
	Email              string                 `json:"email"`
	DisplayName        string                 `json:"displayName"`
	SubscriptionTier   enums.SubscriptionTier `json:"subscriptionTier"`
	SubscriptionEndsAt *time.Time             `json:"subscriptionEndsAt"`
	HasBillingAccount  bool                   `json:"hasBillingAccount"`
	IsActive           bool                   `json:"isActive"`
	LastLoginAt        *time.Time             `json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	DisplayName  string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:                 u.ID,
		Email:              u.Email,
		DisplayName:        u.DisplayName,
		SubscriptionTier:   u.SubscriptionTier,
		SubscriptionEndsAt: u.SubscriptionEndsAt,
		HasBillingAccount:  u.StripeCustomerID != nil && *u.StripeCustomerID != "",
		IsActive:           u.IsActive,
		LastLoginAt:        u.LastLoginAt,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// ToModel builds a free-tier account; paid tiers only arrive through billing.
func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Email:            strings.ToLower(strings.TrimSpace(c.Email)),
		PasswordHash:     c.PasswordHash,
		DisplayName:      strings.TrimSpace(c.DisplayName),
		SubscriptionTier: enums.SubscriptionTierFree,
		IsActive:         true,
	}
}
