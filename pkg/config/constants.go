package config

const (
	EnvPrefix = "ORDERFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "ORDERFLOW_APP_ENV"
	EnvPort     = "ORDERFLOW_APP_PORT"
	EnvLogLevel = "ORDERFLOW_LOG_LEVEL"

	EnvDBDSN  = "ORDERFLOW_DB_DSN"
	EnvDBHost = "ORDERFLOW_DB_HOST"
	EnvDBUser = "ORDERFLOW_DB_USER"
	EnvDBName = "ORDERFLOW_DB_NAME"

	EnvRedisURL = "ORDERFLOW_REDIS_URL"

	EnvJWTSecret  = "ORDERFLOW_JWT_SECRET"
	EnvJWTIssuer  = "ORDERFLOW_JWT_ISSUER"
	EnvJWTExpMins = "ORDERFLOW_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite = "ORDERFLOW_USE_SQLITE"

	EnvHomeCurrency      = "ORDERFLOW_HOME_CURRENCY"
	EnvTrackedCurrencies = "ORDERFLOW_TRACKED_CURRENCIES"
	EnvCODMinCompleted   = "ORDERFLOW_COD_MIN_COMPLETED_ORDERS"
	EnvCurrencyRates     = "ORDERFLOW_CURRENCY_RATES"
	EnvReservationTTL    = "ORDERFLOW_RESERVATION_TTL"

	EnvPaymentSigningKey    = "ORDERFLOW_PAYMENT_SIGNING_KEY"
	EnvWebhookPaymentSecret = "ORDERFLOW_WEBHOOK_PAYMENT_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
