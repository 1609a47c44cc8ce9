package config

const EnvPrefix = "PROJECTMARKET"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "PROJECTMARKET_APP_ENV"
	EnvPort     = "PROJECTMARKET_APP_PORT"
	EnvLogLevel = "PROJECTMARKET_LOG_LEVEL"
	EnvLogFmt   = "PROJECTMARKET_LOG_FORMAT"

	EnvDBDSN      = "PROJECTMARKET_DB_DSN"
	EnvDBHost     = "PROJECTMARKET_DB_HOST"
	EnvDBPort     = "PROJECTMARKET_DB_PORT"
	EnvDBUser     = "PROJECTMARKET_DB_USER"
	EnvDBPassword = "PROJECTMARKET_DB_PASSWORD"
	EnvDBName     = "PROJECTMARKET_DB_NAME"

	EnvRedisURL = "PROJECTMARKET_REDIS_URL"

	EnvJWTSecret  = "PROJECTMARKET_JWT_SECRET"
	EnvJWTIssuer  = "PROJECTMARKET_JWT_ISSUER"
	EnvJWTExpMins = "PROJECTMARKET_JWT_EXPIRATION_MINUTES"

	EnvOffersFeeBasisPoints = "PROJECTMARKET_OFFERS_FEE_BASIS_POINTS"
	EnvOffersCurrency       = "PROJECTMARKET_OFFERS_CURRENCY"
	EnvOffersGatewayTimeout = "PROJECTMARKET_OFFERS_GATEWAY_TIMEOUT"

	EnvStripeAPIKey = "PROJECTMARKET_STRIPE_API_KEY"
	EnvStripeSecret = "PROJECTMARKET_STRIPE_SECRET"
	EnvStripeEnv    = "PROJECTMARKET_STRIPE_ENV"

	EnvSendgridAPIKey = "PROJECTMARKET_SENDGRID_API_KEY"
	EnvSendgridFrom   = "PROJECTMARKET_SENDGRID_FROM_EMAIL"

	EnvPubSubNotificationTopic = "PROJECTMARKET_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotificationSub   = "PROJECTMARKET_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
