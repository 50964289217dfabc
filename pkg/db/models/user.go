package models

import (
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account holder and the subject of every entitlement check.
type User struct {
	ID                   uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email                string                 `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash         string                 `gorm:"column:password_hash;not null"`
	DisplayName          string                 `gorm:"column:display_name;not null"`
	SubscriptionTier     enums.SubscriptionTier `gorm:"column:subscription_tier;type:subscription_tier;not null;default:'free'"`
	SubscriptionEndsAt   *time.Time             `gorm:"column:subscription_ends_at"`
	StripeCustomerID     *string                `gorm:"column:stripe_customer_id"`
	StripeSubscriptionID *string                `gorm:"column:stripe_subscription_id"`
	IsActive             bool                   `gorm:"column:is_active;not null;default:true"`
	LastLoginAt          *time.Time             `gorm:"column:last_login_at"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.SubscriptionTier == "" {
		u.SubscriptionTier = enums.SubscriptionTierFree
	}
	return nil
}
