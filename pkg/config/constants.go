package config

import "time"

const (
	EnvPrefix = "HERA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "HERA_APP_ENV"
	EnvPort   = "HERA_APP_PORT"

	EnvDBDSN  = "HERA_DB_DSN"
	EnvDBHost = "HERA_DB_HOST"
	EnvDBUser = "HERA_DB_USER"
	EnvDBName = "HERA_DB_NAME"

	EnvRedisURL = "HERA_REDIS_URL"

	EnvJWTSecret  = "HERA_JWT_SECRET"
	EnvJWTIssuer  = "HERA_JWT_ISSUER"
	EnvJWTExpMins = "HERA_JWT_EXPIRATION_MINUTES"
	EnvJWTLeeway  = "HERA_JWT_LEEWAY"

	EnvLogFormat = "HERA_LOG_FORMAT"

	EnvRateLimitWindow   = "HERA_RATE_LIMIT_WINDOW"
	EnvOutboxMaxAttempts = "HERA_OUTBOX_MAX_ATTEMPTS"

	EnvPubSubDomainSubscription = "HERA_PUBSUB_DOMAIN_SUBSCRIPTION"
)

const (
	maxJWTLeeway        = 5 * time.Minute
	minProdJWTSecretLen = 32
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
