package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/clausewise-backend/pkg/db"
	"github.com/angelmondragon/clausewise-backend/pkg/db/dbtest"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(dbtest.New(t).DB())
}

func TestCreateAndFindByEmailIgnoresCase(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{Email: " Ada@Example.com ", PasswordHash: "hash", DisplayName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.Equal(t, enums.SubscriptionTierFree, created.SubscriptionTier)
	assert.Nil(t, created.SubscriptionEndsAt)
	assert.True(t, created.IsActive)

	found, err := repo.FindByEmail(ctx, "ADA@example.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.Create(ctx, CreateUserDTO{Email: "ada@example.com", PasswordHash: "hash", DisplayName: "Dup"})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestFindByIDMissingUser(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestUpdateSubscriptionAndStripeCustomer(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	user, err := repo.Create(ctx, CreateUserDTO{Email: "grace@example.com", PasswordHash: "hash", DisplayName: "Grace"})
	require.NoError(t, err)

	require.NoError(t, repo.SetStripeCustomer(ctx, user.ID, "cus_123"))
	ends := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	subID := "sub_123"
	require.NoError(t, repo.UpdateSubscription(ctx, user.ID, SubscriptionUpdate{
		Tier:           enums.SubscriptionTierPro,
		EndsAt:         &ends,
		SubscriptionID: &subID,
	}))

	byCustomer, err := repo.FindByStripeCustomerID(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byCustomer.ID)
	assert.Equal(t, enums.SubscriptionTierPro, byCustomer.SubscriptionTier)
	require.NotNil(t, byCustomer.SubscriptionEndsAt)
	assert.True(t, ends.Equal(*byCustomer.SubscriptionEndsAt))
	require.NotNil(t, byCustomer.StripeSubscriptionID)
	assert.Equal(t, "sub_123", *byCustomer.StripeSubscriptionID)

	require.NoError(t, repo.UpdateSubscription(ctx, user.ID, SubscriptionUpdate{Tier: enums.SubscriptionTierFree}))
	reverted, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionTierFree, reverted.SubscriptionTier)
	assert.Nil(t, reverted.SubscriptionEndsAt)
	assert.Nil(t, reverted.StripeSubscriptionID)

	err = repo.UpdateSubscription(ctx, uuid.New(), SubscriptionUpdate{Tier: enums.SubscriptionTierFree})
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestFromModelOmitsCredentials(t *testing.T) {
	customer := "cus_1"
	dto := FromModel(CreateUserDTO{Email: "x@example.com", PasswordHash: "secret", DisplayName: "X"}.ToModel())
	assert.Equal(t, "x@example.com", dto.Email)
	assert.False(t, dto.HasBillingAccount)

	model := CreateUserDTO{Email: "y@example.com"}.ToModel()
	model.StripeCustomerID = &customer
	assert.True(t, FromModel(model).HasBillingAccount)
	assert.Nil(t, FromModel(nil))
}
