package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	CORS          CORSConfig
	OpenAI        OpenAIConfig
	Storage       StorageConfig
	Queue         QueueConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Stripe        StripeConfig
	Eventing      EventingConfig
	Worker        WorkerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Queue.validate(cfg.PubSub); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLAUSEWISE_APP_ENV" required:"true"`
	Port         string `envconfig:"CLAUSEWISE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLAUSEWISE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLAUSEWISE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"CLAUSEWISE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CLAUSEWISE_DB_DSN"`
	Driver string `envconfig:"CLAUSEWISE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CLAUSEWISE_DB_HOST"`
	LegacyPort     int    `envconfig:"CLAUSEWISE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLAUSEWISE_DB_USER"`
	LegacyPassword string `envconfig:"CLAUSEWISE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLAUSEWISE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLAUSEWISE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLAUSEWISE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLAUSEWISE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLAUSEWISE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLAUSEWISE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLAUSEWISE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLAUSEWISE_REDIS_ADDR"`
	Password     string        `envconfig:"CLAUSEWISE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLAUSEWISE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLAUSEWISE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLAUSEWISE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLAUSEWISE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLAUSEWISE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLAUSEWISE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CLAUSEWISE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CLAUSEWISE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CLAUSEWISE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"CLAUSEWISE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CLAUSEWISE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CLAUSEWISE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CLAUSEWISE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CLAUSEWISE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CLAUSEWISE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"CLAUSEWISE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"CLAUSEWISE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"CLAUSEWISE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CLAUSEWISE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CLAUSEWISE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CLAUSEWISE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CLAUSEWISE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CLAUSEWISE_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CLAUSEWISE_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

type OpenAIConfig struct {
	APIKey      string        `envconfig:"CLAUSEWISE_OPENAI_API_KEY"`
	BaseURL     string        `envconfig:"CLAUSEWISE_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Model       string        `envconfig:"CLAUSEWISE_OPENAI_MODEL" default:"gpt-4"`
	Temperature float64       `envconfig:"CLAUSEWISE_OPENAI_TEMPERATURE" default:"0.2"`
	MaxTokens   int           `envconfig:"CLAUSEWISE_OPENAI_MAX_TOKENS" default:"2000"`
	MaxChars    int           `envconfig:"CLAUSEWISE_OPENAI_MAX_INPUT_CHARS" default:"48000"`
	Timeout     time.Duration `envconfig:"CLAUSEWISE_OPENAI_TIMEOUT" default:"120s"`
}

type StorageConfig struct {
	Endpoint   string        `envconfig:"CLAUSEWISE_STORAGE_ENDPOINT" required:"true"`
	AccessKey  string        `envconfig:"CLAUSEWISE_STORAGE_ACCESS_KEY" required:"true"`
	SecretKey  string        `envconfig:"CLAUSEWISE_STORAGE_SECRET_KEY" required:"true"`
	Bucket     string        `envconfig:"CLAUSEWISE_STORAGE_BUCKET" default:"contracts"`
	UseSSL     bool          `envconfig:"CLAUSEWISE_STORAGE_USE_SSL" default:"true"`
	PresignTTL time.Duration `envconfig:"CLAUSEWISE_STORAGE_PRESIGN_TTL" default:"15m"`
}

type QueueConfig struct {
	Backend           string        `envconfig:"CLAUSEWISE_QUEUE_BACKEND" default:"redis"`
	Stream            string        `envconfig:"CLAUSEWISE_QUEUE_STREAM" default:"clausewise:analysis:jobs"`
	Group             string        `envconfig:"CLAUSEWISE_QUEUE_GROUP" default:"analysis-workers"`
	Consumer          string        `envconfig:"CLAUSEWISE_QUEUE_CONSUMER"`
	MaxRetries        int           `envconfig:"CLAUSEWISE_QUEUE_MAX_RETRIES" default:"3"`
	VisibilityTimeout time.Duration `envconfig:"CLAUSEWISE_QUEUE_VISIBILITY_TIMEOUT" default:"10m"`
	Concurrency       int           `envconfig:"CLAUSEWISE_QUEUE_CONCURRENCY" default:"2"`
}

// UsesPubSub reports whether analysis jobs travel over Pub/Sub instead of Redis Streams.
func (q QueueConfig) UsesPubSub() bool {
	return strings.EqualFold(strings.TrimSpace(q.Backend), QueueBackendPubSub)
}

func (q QueueConfig) validate(ps PubSubConfig) error {
	backend := strings.ToLower(strings.TrimSpace(q.Backend))
	switch backend {
	case QueueBackendRedis:
		return nil
	case QueueBackendPubSub:
		if ps.AnalysisTopic == "" || ps.AnalysisSubscription == "" {
			return fmt.Errorf("%s and %s are required when %s=%s", EnvPubSubAnalysisTopic, EnvPubSubAnalysisSub, EnvQueueBackend, QueueBackendPubSub)
		}
		return nil
	default:
		return fmt.Errorf("invalid %s %q", EnvQueueBackend, q.Backend)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CLAUSEWISE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CLAUSEWISE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CLAUSEWISE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AnalysisTopic        string `envconfig:"CLAUSEWISE_PUBSUB_ANALYSIS_TOPIC"`
	AnalysisSubscription string `envconfig:"CLAUSEWISE_PUBSUB_ANALYSIS_SUBSCRIPTION"`
}

type StripeConfig struct {
	APIKey            string `envconfig:"CLAUSEWISE_STRIPE_API_KEY"`
	Secret            string `envconfig:"CLAUSEWISE_STRIPE_SECRET"`
	Env               string `envconfig:"CLAUSEWISE_STRIPE_ENV" default:"test"`
	BasicPriceID      string `envconfig:"CLAUSEWISE_STRIPE_BASIC_PRICE_ID"`
	ProPriceID        string `envconfig:"CLAUSEWISE_STRIPE_PRO_PRICE_ID"`
	EnterprisePriceID string `envconfig:"CLAUSEWISE_STRIPE_ENTERPRISE_PRICE_ID"`
	PortalReturnURL   string `envconfig:"CLAUSEWISE_STRIPE_PORTAL_RETURN_URL" default:"http://localhost:5173/billing"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PriceIDs maps paid tier names to their configured Stripe price.
func (s StripeConfig) PriceIDs() map[string]string {
	return map[string]string{
		"basic":      s.BasicPriceID,
		"pro":        s.ProPriceID,
		"enterprise": s.EnterprisePriceID,
	}
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"CLAUSEWISE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type WorkerConfig struct {
	CronInterval        time.Duration `envconfig:"CLAUSEWISE_WORKER_CRON_INTERVAL" default:"15m"`
	CronLockTTL         time.Duration `envconfig:"CLAUSEWISE_WORKER_CRON_LOCK_TTL" default:"10m"`
	StaleProcessingAge  time.Duration `envconfig:"CLAUSEWISE_WORKER_STALE_PROCESSING_AGE" default:"30m"`
	ReportRetentionDays int           `envconfig:"CLAUSEWISE_WORKER_REPORT_RETENTION_DAYS" default:"90"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
