package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/clausewise-backend/api"
	"github.com/angelmondragon/clausewise-backend/api/routes"
	"github.com/angelmondragon/clausewise-backend/internal/auth"
	"github.com/angelmondragon/clausewise-backend/internal/billing"
	"github.com/angelmondragon/clausewise-backend/internal/contracts"
	"github.com/angelmondragon/clausewise-backend/internal/entitlements"
	"github.com/angelmondragon/clausewise-backend/internal/plans"
	"github.com/angelmondragon/clausewise-backend/internal/users"
	stripewebhook "github.com/angelmondragon/clausewise-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/clausewise-backend/internal/whispers"
	"github.com/angelmondragon/clausewise-backend/pkg/auth/session"
	"github.com/angelmondragon/clausewise-backend/pkg/config"
	"github.com/angelmondragon/clausewise-backend/pkg/db"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	"github.com/angelmondragon/clausewise-backend/pkg/metrics"
	"github.com/angelmondragon/clausewise-backend/pkg/migrate"
	"github.com/angelmondragon/clausewise-backend/pkg/pubsub"
	"github.com/angelmondragon/clausewise-backend/pkg/queue"
	"github.com/angelmondragon/clausewise-backend/pkg/redis"
	"github.com/angelmondragon/clausewise-backend/pkg/storage"
	"github.com/angelmondragon/clausewise-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	if cfg.FeatureFlags.UseSQLite {
		if err := db.EnsureSQLiteSchema(ctx, dbClient.DB()); err != nil {
			return err
		}
	} else if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	objectStore, err := storage.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	publisher, closeQueue, err := newPublisher(ctx, cfg, logg, redisClient)
	if err != nil {
		return err
	}
	defer closeQueue()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	catalog := plans.Default()
	usersRepo := users.NewRepository(dbClient.DB())
	contractsRepo := contracts.NewRepository(dbClient.DB())

	gate, err := entitlements.NewGate(entitlements.GateParams{
		Users:     usersRepo,
		Contracts: contractsRepo,
		Catalog:   catalog,
	})
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	contractsService, err := contracts.NewService(contracts.ServiceParams{
		Repo:       contractsRepo,
		Gate:       gate,
		Store:      objectStore,
		Queue:      publisher,
		Logger:     logg,
		PresignTTL: cfg.Storage.PresignTTL,
		Locks:      redisClient,
	})
	if err != nil {
		return err
	}

	whispersService, err := whispers.NewService(whispers.ServiceParams{
		Repo:   whispers.NewRepository(dbClient.DB()),
		Users:  usersRepo,
		Logger: logg,
	})
	if err != nil {
		return err
	}

	billingService, err := billing.NewService(billing.ServiceParams{
		Users:           usersRepo,
		Stripe:          stripeClient,
		Catalog:         catalog,
		PriceIDs:        cfg.Stripe.PriceIDs(),
		PortalReturnURL: cfg.Stripe.PortalReturnURL,
		Logger:          logg,
	})
	if err != nil {
		return err
	}

	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe")
	if err != nil {
		return err
	}
	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Users:  usersRepo,
		Guard:  guard,
		Logger: logg,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := routes.NewRouter(routes.Params{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		Storage:        objectStore,
		Store:          redisClient,
		Sessions:       sessionManager,
		Auth:           authService,
		Contracts:      contractsService,
		Whispers:       whispersService,
		Billing:        billingService,
		Gate:           gate,
		StripeVerifier: stripeClient,
		StripeWebhooks: webhookService,
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
		Gatherer:       registry,
		MaxUploadBytes: largestUpload(catalog),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     id,
		"queueBackend": cfg.Queue.Backend,
		"stripeEnv":    stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	if err := api.Serve(ctx, api.NewServer(addr, handler), logg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "api server stopped")
	return nil
}

// newPublisher picks the analysis queue backend. The returned func closes any
// Pub/Sub client it opened.
func newPublisher(ctx context.Context, cfg *config.Config, logg *logger.Logger, redisClient *redis.Client) (queue.Publisher, func(), error) {
	if !cfg.Queue.UsesPubSub() {
		q, err := queue.NewRedisStreams(redisClient.Raw(), queue.RedisStreamsConfig{
			Stream:     cfg.Queue.Stream,
			Group:      cfg.Queue.Group,
			Consumer:   cfg.Queue.Consumer,
			MaxRetries: cfg.Queue.MaxRetries,
			ClaimIdle:  cfg.Queue.VisibilityTimeout,
		})
		return q, func() {}, err
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}
	q, err := queue.NewPubSub(client.AnalysisPublisher(), nil, cfg.Queue.MaxRetries)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return q, closeFn, nil
}

func largestUpload(catalog *plans.Catalog) int64 {
	var largest int64
	for _, plan := range catalog.Plans() {
		if plan.MaxFileSizeBytes > largest {
			largest = plan.MaxFileSizeBytes
		}
	}
	return largest
}
