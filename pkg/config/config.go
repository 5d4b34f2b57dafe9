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
	Checkout     CheckoutConfig
	Currency     CurrencyConfig
	Inventory    InventoryConfig
	Payments     PaymentsConfig
	Webhooks     WebhooksConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
	Idempotency  IdempotencyConfig
	Telemetry    TelemetryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	} else if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"ORDERFLOW_APP_ENV" required:"true"`
	Port         string   `envconfig:"ORDERFLOW_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"ORDERFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"ORDERFLOW_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"ORDERFLOW_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN        string `envconfig:"ORDERFLOW_DB_DSN"`
	Driver     string `envconfig:"ORDERFLOW_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"ORDERFLOW_SQLITE_PATH" default:"file:orderflow.db?cache=shared"`

	LegacyHost     string `envconfig:"ORDERFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERFLOW_DB_USER"`
	LegacyPassword string `envconfig:"ORDERFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"ORDERFLOW_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDERFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"ORDERFLOW_REDIS_KEY_PREFIX" default:"of"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ORDERFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDERFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ORDERFLOW_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite     bool `envconfig:"ORDERFLOW_USE_SQLITE" default:"false"`
	AutoMigrate   bool `envconfig:"ORDERFLOW_AUTO_MIGRATE" default:"false"`
	UseRedisCache bool `envconfig:"ORDERFLOW_USE_REDIS_CACHE" default:"true"`
}

// CheckoutConfig drives quote computation and COD gating.
type CheckoutConfig struct {
	HomeCurrency       string        `envconfig:"ORDERFLOW_HOME_CURRENCY" default:"YER"`
	TrackedCurrencies  []string      `envconfig:"ORDERFLOW_TRACKED_CURRENCIES" default:"USD,YER,SAR"`
	PreviewCacheTTL    time.Duration `envconfig:"ORDERFLOW_PREVIEW_CACHE_TTL" default:"30s"`
	CouponCacheTTL     time.Duration `envconfig:"ORDERFLOW_COUPON_CACHE_TTL" default:"60s"`
	CODMinCompleted    int           `envconfig:"ORDERFLOW_COD_MIN_COMPLETED_ORDERS" default:"3"`
	MaxCouponsPerOrder int           `envconfig:"ORDERFLOW_MAX_COUPONS_PER_ORDER" default:"5"`
}

func (c CheckoutConfig) validate() error {
	if strings.TrimSpace(c.HomeCurrency) == "" {
		return fmt.Errorf("%s is required", EnvHomeCurrency)
	}
	if c.CODMinCompleted < 0 {
		return fmt.Errorf("%s must be >= 0", EnvCODMinCompleted)
	}
	return nil
}

// CurrencyConfig holds static conversion rates expressed as units per 1 USD.
type CurrencyConfig struct {
	Rates map[string]string `envconfig:"ORDERFLOW_CURRENCY_RATES" default:"USD:1,YER:530,SAR:3.75"`
}

type InventoryConfig struct {
	ReservationTTL     time.Duration `envconfig:"ORDERFLOW_RESERVATION_TTL" default:"15m"`
	CommittedRetention time.Duration `envconfig:"ORDERFLOW_RESERVATION_COMMITTED_RETENTION" default:"8760h"`
	CancelledRetention time.Duration `envconfig:"ORDERFLOW_RESERVATION_CANCELLED_RETENTION" default:"24h"`
}

type PaymentsConfig struct {
	SigningKey string `envconfig:"ORDERFLOW_PAYMENT_SIGNING_KEY" required:"true"`
}

// WebhooksConfig holds one shared secret per webhook kind. An empty secret
// disables header verification for that kind.
type WebhooksConfig struct {
	PaymentSecret   string        `envconfig:"ORDERFLOW_WEBHOOK_PAYMENT_SECRET"`
	ShippingSecret  string        `envconfig:"ORDERFLOW_WEBHOOK_SHIPPING_SECRET"`
	InventorySecret string        `envconfig:"ORDERFLOW_WEBHOOK_INVENTORY_SECRET"`
	IdempotencyTTL  time.Duration `envconfig:"ORDERFLOW_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORDERFLOW_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ORDERFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ORDERFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic       string `envconfig:"ORDERFLOW_PUBSUB_ORDERS_TOPIC" default:"orderflow-order-events"`
	BillingTopic      string `envconfig:"ORDERFLOW_PUBSUB_BILLING_TOPIC" default:"orderflow-billing-events"`
	NotificationTopic string `envconfig:"ORDERFLOW_PUBSUB_NOTIFICATION_TOPIC" default:"orderflow-notification-events"`
	EmulatorHost      string `envconfig:"PUBSUB_EMULATOR_HOST"`
}

// OutboxConfig drives the publisher loop. Transport is "pubsub" or "kafka";
// KafkaBrokers is only read for the latter.
type OutboxConfig struct {
	BatchSize      int      `envconfig:"ORDERFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int      `envconfig:"ORDERFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int      `envconfig:"ORDERFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Transport      string   `envconfig:"ORDERFLOW_OUTBOX_TRANSPORT" default:"pubsub"`
	KafkaBrokers   []string `envconfig:"ORDERFLOW_KAFKA_BROKERS"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"ORDERFLOW_CRON_INTERVAL" default:"1m"`
	LockTTL               time.Duration `envconfig:"ORDERFLOW_CRON_LOCK_TTL" default:"5m"`
	BatchSize             int           `envconfig:"ORDERFLOW_CRON_BATCH_SIZE" default:"100"`
	OutboxRetention       time.Duration `envconfig:"ORDERFLOW_CRON_OUTBOX_RETENTION" default:"720h"`
	NotificationRetention time.Duration `envconfig:"ORDERFLOW_CRON_NOTIFICATION_RETENTION" default:"2160h"`
}

// RateLimitConfig bounds requests per window. A zero limit disables the
// corresponding limiter.
type RateLimitConfig struct {
	Window          time.Duration `envconfig:"ORDERFLOW_RATE_LIMIT_WINDOW" default:"1m"`
	CheckoutPerUser int           `envconfig:"ORDERFLOW_RATE_LIMIT_CHECKOUT_PER_USER" default:"10"`
	WebhooksPerIP   int           `envconfig:"ORDERFLOW_RATE_LIMIT_WEBHOOKS_PER_IP" default:"600"`
}

// IdempotencyConfig sets how long a replayable response is kept per
// Idempotency-Key. InFlightTTL bounds the lock held while the first request
// with a key is still being handled.
type IdempotencyConfig struct {
	DefaultTTL  time.Duration `envconfig:"ORDERFLOW_IDEMPOTENCY_TTL" default:"24h"`
	CheckoutTTL time.Duration `envconfig:"ORDERFLOW_IDEMPOTENCY_CHECKOUT_TTL" default:"168h"`
	InFlightTTL time.Duration `envconfig:"ORDERFLOW_IDEMPOTENCY_IN_FLIGHT_TTL" default:"30s"`
}

// TelemetryConfig controls OTLP trace export. An empty endpoint keeps the
// no-op tracer provider installed.
type TelemetryConfig struct {
	OTLPEndpoint   string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceVersion string `envconfig:"ORDERFLOW_SERVICE_VERSION" default:"dev"`
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
