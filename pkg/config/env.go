package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "CLAUSEWISE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	QueueBackendRedis  = "redis"
	QueueBackendPubSub = "pubsub"
)

const (
	EnvAppEnv   = "CLAUSEWISE_APP_ENV"
	EnvPort     = "CLAUSEWISE_APP_PORT"
	EnvLogLevel = "CLAUSEWISE_LOG_LEVEL"

	EnvDBDSN  = "CLAUSEWISE_DB_DSN"
	EnvDBHost = "CLAUSEWISE_DB_HOST"
	EnvDBUser = "CLAUSEWISE_DB_USER"
	EnvDBName = "CLAUSEWISE_DB_NAME"

	EnvRedisURL = "CLAUSEWISE_REDIS_URL"

	EnvJWTSecret              = "CLAUSEWISE_JWT_SECRET"
	EnvJWTIssuer              = "CLAUSEWISE_JWT_ISSUER"
	EnvJWTExpMins             = "CLAUSEWISE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "CLAUSEWISE_REFRESH_TOKEN_TTL_MINUTES"
	EnvStorageEndpoint        = "CLAUSEWISE_STORAGE_ENDPOINT"
	EnvStorageAccessKey       = "CLAUSEWISE_STORAGE_ACCESS_KEY"
	EnvStorageSecretKey       = "CLAUSEWISE_STORAGE_SECRET_KEY"
	EnvStorageBucket          = "CLAUSEWISE_STORAGE_BUCKET"
	EnvQueueBackend           = "CLAUSEWISE_QUEUE_BACKEND"
	EnvPubSubAnalysisTopic    = "CLAUSEWISE_PUBSUB_ANALYSIS_TOPIC"
	EnvPubSubAnalysisSub      = "CLAUSEWISE_PUBSUB_ANALYSIS_SUBSCRIPTION"
	EnvGCPProjectID           = "CLAUSEWISE_GCP_PROJECT_ID"
	EnvCORSAllowedOrigins     = "CLAUSEWISE_CORS_ALLOWED_ORIGINS"
	EnvStripeProPriceID       = "CLAUSEWISE_STRIPE_PRO_PRICE_ID"
	EnvWorkerStaleProcessing  = "CLAUSEWISE_WORKER_STALE_PROCESSING_AGE"
	EnvOpenAITemperature      = "CLAUSEWISE_OPENAI_TEMPERATURE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
