package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/angelmondragon/clausewise-backend/internal/users"
	"github.com/angelmondragon/clausewise-backend/pkg/db/models"
	"github.com/angelmondragon/clausewise-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/clausewise-backend/pkg/redis"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

const periodEnd = int64(1767225600)

type stubUsers struct {
	user      *models.User
	updates   []users.SubscriptionUpdate
	updateErr error
}

func (s *stubUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUsers) FindByStripeCustomerID(_ context.Context, customerID string) (*models.User, error) {
	if s.user == nil || s.user.StripeCustomerID == nil || *s.user.StripeCustomerID != customerID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUsers) UpdateSubscription(_ context.Context, _ uuid.UUID, update users.SubscriptionUpdate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, update)
	s.user.SubscriptionTier = update.Tier
	s.user.SubscriptionEndsAt = update.EndsAt
	s.user.StripeSubscriptionID = update.SubscriptionID
	return nil
}

func newGuard(t *testing.T) *IdempotencyGuard {
	t.Helper()
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	guard, err := NewIdempotencyGuard(pkgredis.NewFromRaw(raw), time.Hour, "stripe")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	return guard
}

func newTestService(t *testing.T, repo *stubUsers) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Users: repo, Guard: newGuard(t)})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func subscriptionEvent(id string, kind stripe.EventType, userID uuid.UUID, tier, status string) stripe.Event {
	metadata := "{}"
	if userID != uuid.Nil {
		metadata = fmt.Sprintf(`{"user_id":%q,"tierLevel":%q}`, userID.String(), tier)
	}
	raw := fmt.Sprintf(`{"id":"sub_1","object":"subscription","customer":"cus_1","status":%q,"metadata":%s,"items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","current_period_end":%d}]}}`,
		status, metadata, periodEnd)
	return stripe.Event{ID: id, Type: kind, Data: &stripe.EventData{Raw: []byte(raw)}}
}

func userFixture() *models.User {
	customer := "cus_1"
	return &models.User{ID: uuid.New(), Email: "ada@example.com", SubscriptionTier: enums.SubscriptionTierFree, StripeCustomerID: &customer}
}

func TestDecodeBuildsTypedEvents(t *testing.T) {
	userID := uuid.New()
	ev, err := Decode(subscriptionEvent("evt_1", stripe.EventTypeCustomerSubscriptionUpdated, userID, "pro", "active"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	updated, ok := ev.(SubscriptionUpdated)
	if !ok {
		t.Fatalf("expected SubscriptionUpdated, got %T", ev)
	}
	p := updated.Payload
	if p.SubscriptionID != "sub_1" || p.CustomerID != "cus_1" || p.UserID != userID || p.Tier != enums.SubscriptionTierPro {
		t.Fatalf("unexpected payload %+v", p)
	}
	if p.CurrentPeriodEnd == nil || p.CurrentPeriodEnd.Unix() != periodEnd {
		t.Fatalf("unexpected period end %v", p.CurrentPeriodEnd)
	}

	unknown, err := Decode(stripe.Event{ID: "evt_2", Type: stripe.EventTypeInvoicePaid})
	if err != nil || unknown != nil {
		t.Fatalf("unknown kinds must be ignored, got %v %v", unknown, err)
	}

	bad := subscriptionEvent("evt_3", stripe.EventTypeCustomerSubscriptionCreated, userID, "platinum", "active")
	_, err = Decode(bad)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessCreatedSetsTierAndEnd(t *testing.T) {
	user := userFixture()
	repo := &stubUsers{user: user}
	svc := newTestService(t, repo)

	processed, err := svc.Process(context.Background(), subscriptionEvent("evt_1", stripe.EventTypeCustomerSubscriptionCreated, user.ID, "pro", "active"))
	if err != nil || !processed {
		t.Fatalf("process: processed=%v err=%v", processed, err)
	}
	if user.SubscriptionTier != enums.SubscriptionTierPro {
		t.Fatalf("expected pro tier, got %s", user.SubscriptionTier)
	}
	if user.SubscriptionEndsAt == nil || user.SubscriptionEndsAt.Unix() != periodEnd {
		t.Fatalf("unexpected end %v", user.SubscriptionEndsAt)
	}
	if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID != "sub_1" {
		t.Fatal("expected subscription id stored")
	}
}

func TestProcessSkipsDuplicates(t *testing.T) {
	user := userFixture()
	repo := &stubUsers{user: user}
	svc := newTestService(t, repo)
	event := subscriptionEvent("evt_dup", stripe.EventTypeCustomerSubscriptionUpdated, user.ID, "basic", "active")

	if _, err := svc.Process(context.Background(), event); err != nil {
		t.Fatalf("first process: %v", err)
	}
	processed, err := svc.Process(context.Background(), event)
	if err != nil || processed {
		t.Fatalf("duplicate must be skipped: processed=%v err=%v", processed, err)
	}
	if len(repo.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(repo.updates))
	}
}

func TestProcessReleasesGuardOnFailure(t *testing.T) {
	user := userFixture()
	repo := &stubUsers{user: user, updateErr: errors.New("db down")}
	svc := newTestService(t, repo)
	event := subscriptionEvent("evt_retry", stripe.EventTypeCustomerSubscriptionCreated, user.ID, "pro", "active")

	if _, err := svc.Process(context.Background(), event); err == nil {
		t.Fatal("expected failure")
	}
	repo.updateErr = nil
	processed, err := svc.Process(context.Background(), event)
	if err != nil || !processed {
		t.Fatalf("retry must be processed: processed=%v err=%v", processed, err)
	}
}

func TestProcessDeletedDowngradesToFree(t *testing.T) {
	user := userFixture()
	subID := "sub_1"
	end := time.Now().Add(24 * time.Hour)
	user.SubscriptionTier = enums.SubscriptionTierPro
	user.SubscriptionEndsAt = &end
	user.StripeSubscriptionID = &subID
	repo := &stubUsers{user: user}
	svc := newTestService(t, repo)

	// No metadata: the owner is resolved through the customer id.
	if _, err := svc.Process(context.Background(), subscriptionEvent("evt_del", stripe.EventTypeCustomerSubscriptionDeleted, uuid.Nil, "", "canceled")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if user.SubscriptionTier != enums.SubscriptionTierFree || user.SubscriptionEndsAt != nil || user.StripeSubscriptionID != nil {
		t.Fatalf("expected free tier with null end, got %+v", user)
	}
}

func TestProcessIgnoresStaleDeletion(t *testing.T) {
	user := userFixture()
	current := "sub_newer"
	user.SubscriptionTier = enums.SubscriptionTierPro
	user.StripeSubscriptionID = &current
	repo := &stubUsers{user: user}
	svc := newTestService(t, repo)

	if _, err := svc.Process(context.Background(), subscriptionEvent("evt_old", stripe.EventTypeCustomerSubscriptionDeleted, user.ID, "pro", "canceled")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(repo.updates) != 0 || user.SubscriptionTier != enums.SubscriptionTierPro {
		t.Fatalf("stale deletion must not downgrade, got %+v", repo.updates)
	}
}

func TestProcessUnknownKindAndUnknownUserAreNoOps(t *testing.T) {
	repo := &stubUsers{user: userFixture()}
	svc := newTestService(t, repo)

	processed, err := svc.Process(context.Background(), stripe.Event{ID: "evt_inv", Type: stripe.EventTypeInvoicePaid})
	if err != nil || !processed {
		t.Fatalf("unknown kind: processed=%v err=%v", processed, err)
	}
	if _, err := svc.Process(context.Background(), subscriptionEvent("evt_other", stripe.EventTypeCustomerSubscriptionCreated, uuid.New(), "pro", "active")); err != nil {
		t.Fatalf("unknown user: %v", err)
	}
	if len(repo.updates) != 0 {
		t.Fatalf("expected no updates, got %+v", repo.updates)
	}
}
