package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/clausewise-backend/api/controllers"
	"github.com/angelmondragon/clausewise-backend/internal/analysis"
	"github.com/angelmondragon/clausewise-backend/internal/contracts"
	"github.com/angelmondragon/clausewise-backend/internal/cron"
	"github.com/angelmondragon/clausewise-backend/internal/plans"
	"github.com/angelmondragon/clausewise-backend/internal/users"
	"github.com/angelmondragon/clausewise-backend/internal/whispers"
	"github.com/angelmondragon/clausewise-backend/pkg/config"
	"github.com/angelmondragon/clausewise-backend/pkg/db"
	"github.com/angelmondragon/clausewise-backend/pkg/instance"
	"github.com/angelmondragon/clausewise-backend/pkg/llm"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	"github.com/angelmondragon/clausewise-backend/pkg/metrics"
	"github.com/angelmondragon/clausewise-backend/pkg/migrate"
	"github.com/angelmondragon/clausewise-backend/pkg/pubsub"
	"github.com/angelmondragon/clausewise-backend/pkg/queue"
	"github.com/angelmondragon/clausewise-backend/pkg/redis"
	"github.com/angelmondragon/clausewise-backend/pkg/storage"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if cfg.Queue.Consumer == "" {
		cfg.Queue.Consumer = instance.GetID()
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

	consumer, queuePinger, closeQueue, err := newConsumer(ctx, cfg, logg, redisClient)
	if err != nil {
		return err
	}
	defer closeQueue()

	llmClient, err := llm.NewClient(cfg.OpenAI, nil)
	if err != nil {
		return err
	}
	engine, err := analysis.NewLLMEngine(analysis.LLMEngineParams{
		Client:   llmClient,
		MaxChars: cfg.OpenAI.MaxChars,
		JSONMode: true,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	contractsRepo := contracts.NewRepository(dbClient.DB())
	processor, err := contracts.NewProcessor(contracts.ProcessorParams{
		Repo:    contractsRepo,
		Users:   users.NewRepository(dbClient.DB()),
		Catalog: plans.Default(),
		Store:   objectStore,
		Engine:  engine,
		Metrics: metrics.NewAnalysisMetrics(registry),
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	cronService, err := newCron(cfg, logg, redisClient, contractsRepo, whispers.NewRepository(dbClient.DB()), registry)
	if err != nil {
		return err
	}

	admin := chi.NewRouter()
	admin.Get("/health/live", controllers.HealthLive(cfg))
	admin.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	service, err := NewService(ServiceParams{
		Config: cfg,
		Logger: logg,
		Dependencies: []Dependency{
			{Name: "database", Pinger: dbClient},
			{Name: "redis", Pinger: redisClient},
			{Name: "storage", Pinger: objectStore},
			{Name: "queue", Pinger: queuePinger},
		},
		Consumer: consumer,
		Handler:  processor.Handle,
		Cron:     cronService,
		Admin:    admin,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  cfg.Service.Kind,
		"instance":     cfg.Queue.Consumer,
		"queueBackend": cfg.Queue.Backend,
		"concurrency":  cfg.Queue.Concurrency,
	})
	logg.Info(ctx, "starting worker")
	return service.Run(ctx)
}

func newCron(cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, contractsRepo *contracts.Repository, whispersRepo *whispers.Repository, reg prometheus.Registerer) (*cron.Service, error) {
	staleJob, err := cron.NewStaleContractsJob(cron.StaleContractsJobParams{
		Logger:    logg,
		Contracts: contractsRepo,
		MaxAge:    cfg.Worker.StaleProcessingAge,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewReportRetentionJob(cron.ReportRetentionJobParams{
		Logger:  logg,
		Reports: whispersRepo,
		Days:    cfg.Worker.ReportRetentionDays,
	})
	if err != nil {
		return nil, err
	}
	jobs, err := cron.NewRegistry(staleJob, retentionJob)
	if err != nil {
		return nil, err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron:"+envOrLocal(cfg.App.Env)), cfg.Worker.CronLockTTL)
	if err != nil {
		return nil, err
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Worker.CronInterval,
	})
}

// newConsumer opens the consumer side of the analysis queue. The returned
// pinger probes the broker connection for readiness.
func newConsumer(ctx context.Context, cfg *config.Config, logg *logger.Logger, redisClient *redis.Client) (queue.Consumer, pinger, func(), error) {
	if !cfg.Queue.UsesPubSub() {
		q, err := queue.NewRedisStreams(redisClient.Raw(), queue.RedisStreamsConfig{
			Stream:     cfg.Queue.Stream,
			Group:      cfg.Queue.Group,
			Consumer:   cfg.Queue.Consumer,
			MaxRetries: cfg.Queue.MaxRetries,
			ClaimIdle:  cfg.Queue.VisibilityTimeout,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return q, redisClient, func() {}, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}
	q, err := queue.NewPubSub(nil, client.AnalysisSubscription(), cfg.Queue.MaxRetries)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	return q, client, closeFn, nil
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
