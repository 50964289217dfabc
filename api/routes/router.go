package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/clausewise-backend/api/controllers"
	billingcontrollers "github.com/angelmondragon/clausewise-backend/api/controllers/billing"
	webhookcontrollers "github.com/angelmondragon/clausewise-backend/api/controllers/webhooks"
	"github.com/angelmondragon/clausewise-backend/api/middleware"
	"github.com/angelmondragon/clausewise-backend/internal/auth"
	"github.com/angelmondragon/clausewise-backend/internal/billing"
	"github.com/angelmondragon/clausewise-backend/internal/contracts"
	"github.com/angelmondragon/clausewise-backend/internal/plans"
	"github.com/angelmondragon/clausewise-backend/internal/whispers"
	"github.com/angelmondragon/clausewise-backend/pkg/auth/session"
	"github.com/angelmondragon/clausewise-backend/pkg/config"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	"github.com/angelmondragon/clausewise-backend/pkg/metrics"
	"github.com/angelmondragon/clausewise-backend/pkg/redis"
)

// Store is the Redis surface the HTTP layer needs for auth throttling and
// idempotent replays.
type Store interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

type featureGate interface {
	CheckFeatureAllowed(ctx context.Context, userID uuid.UUID, feature string) error
}

type stripeEventProcessor interface {
	Process(ctx context.Context, event stripe.Event) (bool, error)
}

type stripeEventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// Params groups everything the router mounts.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       redis.Pinger
	Redis    redis.Pinger
	Storage  redis.Pinger
	Store    Store
	Sessions session.AccessSessionChecker

	Auth      auth.Service
	Contracts contracts.Service
	Whispers  whispers.Service
	Billing   billing.Service
	Gate      featureGate

	StripeVerifier stripeEventVerifier
	StripeWebhooks stripeEventProcessor

	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer

	// MaxUploadBytes caps one multipart file before the gate applies the
	// caller's own plan limit.
	MaxUploadBytes int64
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "db", Pinger: p.DB},
			controllers.ReadinessCheck{Name: "redis", Pinger: p.Redis},
			controllers.ReadinessCheck{Name: "storage", Pinger: p.Storage},
		))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhooks, p.StripeVerifier, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, p.Store, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, p.Store, logg)).Post("/register", controllers.AuthRegister(p.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(p.Auth, logg))
		})

		r.Get("/billing/plans", billingcontrollers.Plans(p.Billing, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, p.Sessions, logg))
			r.Get("/whispers", controllers.WhispersList(p.Whispers, logg))
			r.Get("/whispers/random", controllers.WhisperRandom(p.Whispers, logg))
			r.Get("/whispers/{id}", controllers.WhisperGet(p.Whispers, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
			r.Use(middleware.Idempotency(p.Store, logg))

			r.Get("/me", controllers.Me(p.Auth, logg))

			r.Route("/contracts", func(r chi.Router) {
				r.Post("/upload", controllers.ContractsUpload(p.Contracts, p.MaxUploadBytes, logg))
				r.With(middleware.RequireFeature(p.Gate, plans.FeatureBatchAnalysis, logg)).
					Post("/batch", controllers.ContractsBatch(p.Contracts, p.MaxUploadBytes, logg))
				r.Get("/", controllers.ContractsList(p.Contracts, logg))
				r.Get("/quota", controllers.ContractsQuota(p.Contracts, logg))
				r.Get("/{id}", controllers.ContractGet(p.Contracts, logg))
				r.Get("/{id}/status", controllers.ContractStatus(p.Contracts, logg))
				r.Get("/{id}/analysis", controllers.ContractAnalysis(p.Contracts, logg))
				r.Get("/{id}/download", controllers.ContractDownload(p.Contracts, logg))
			})

			r.Post("/billing/subscribe", billingcontrollers.Subscribe(p.Billing, logg))
			r.Post("/billing/cancel", billingcontrollers.Cancel(p.Billing, logg))
			r.Post("/billing/portal", billingcontrollers.Portal(p.Billing, logg))

			r.Post("/whispers", controllers.WhisperCreate(p.Whispers, logg))
			r.Put("/whispers/{id}/like", controllers.WhisperToggleLike(p.Whispers, logg))
			r.Post("/whispers/{id}/report", controllers.WhisperReport(p.Whispers, logg))
		})
	})

	return r
}
