package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	Offers       OffersConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Sendgrid     SendgridConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Offers.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PROJECTMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"PROJECTMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PROJECTMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PROJECTMARKET_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"PROJECTMARKET_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"PROJECTMARKET_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PROJECTMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"PROJECTMARKET_DB_DSN"`

	LegacyHost     string `envconfig:"PROJECTMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"PROJECTMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PROJECTMARKET_DB_USER"`
	LegacyPassword string `envconfig:"PROJECTMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"PROJECTMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"PROJECTMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PROJECTMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PROJECTMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PROJECTMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROJECTMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"PROJECTMARKET_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PROJECTMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PROJECTMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"PROJECTMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROJECTMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROJECTMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROJECTMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROJECTMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROJECTMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROJECTMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PROJECTMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PROJECTMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PROJECTMARKET_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PROJECTMARKET_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"PROJECTMARKET_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	HTTPIdempotencyTTL   time.Duration `envconfig:"PROJECTMARKET_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

// OffersConfig holds the commercial terms applied when a seller accepts an offer.
type OffersConfig struct {
	FeeBasisPoints   int           `envconfig:"PROJECTMARKET_OFFERS_FEE_BASIS_POINTS" default:"1000"`
	Currency         string        `envconfig:"PROJECTMARKET_OFFERS_CURRENCY" default:"usd"`
	GatewayTimeout   time.Duration `envconfig:"PROJECTMARKET_OFFERS_GATEWAY_TIMEOUT" default:"5s"`
	DefaultPageLimit int           `envconfig:"PROJECTMARKET_OFFERS_PAGE_LIMIT" default:"25"`
	MaxPageLimit     int           `envconfig:"PROJECTMARKET_OFFERS_MAX_PAGE_LIMIT" default:"100"`
}

func (o OffersConfig) validate() error {
	if o.FeeBasisPoints < 0 || o.FeeBasisPoints > 10000 {
		return fmt.Errorf("%s must be between 0 and 10000", EnvOffersFeeBasisPoints)
	}
	if strings.TrimSpace(o.Currency) == "" {
		return fmt.Errorf("%s is required", EnvOffersCurrency)
	}
	if o.GatewayTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvOffersGatewayTimeout)
	}
	return nil
}

// RateLimitConfig bounds offer writes per caller and per client IP.
type RateLimitConfig struct {
	Window    time.Duration `envconfig:"PROJECTMARKET_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit int           `envconfig:"PROJECTMARKET_RATE_LIMIT_USER" default:"30"`
	IPLimit   int           `envconfig:"PROJECTMARKET_RATE_LIMIT_IP" default:"120"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PROJECTMARKET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PROJECTMARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PROJECTMARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"PROJECTMARKET_PUBSUB_NOTIFICATION_TOPIC" default:"pm-notification-events"`
	NotificationSubscription string `envconfig:"PROJECTMARKET_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"pm-notification-events-sub"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PROJECTMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PROJECTMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PROJECTMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey string `envconfig:"PROJECTMARKET_STRIPE_API_KEY"`
	Secret string `envconfig:"PROJECTMARKET_STRIPE_SECRET"`
	Env    string `envconfig:"PROJECTMARKET_STRIPE_ENV" default:"test"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"PROJECTMARKET_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"PROJECTMARKET_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"PROJECTMARKET_SENDGRID_FROM_NAME" default:"ProjectMarket"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
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
