package config

const (
	EnvPrefix = "TRAILPACK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "TRAILPACK_APP_ENV"
	EnvPort     = "TRAILPACK_APP_PORT"
	EnvLogLevel = "TRAILPACK_LOG_LEVEL"

	EnvDBDSN    = "TRAILPACK_DB_DSN"
	EnvDBDriver = "TRAILPACK_DB_DRIVER"
	EnvDBHost   = "TRAILPACK_DB_HOST"
	EnvDBPort   = "TRAILPACK_DB_PORT"
	EnvDBUser   = "TRAILPACK_DB_USER"
	EnvDBPass   = "TRAILPACK_DB_PASSWORD"
	EnvDBName   = "TRAILPACK_DB_NAME"

	EnvRedisURL = "TRAILPACK_REDIS_URL"

	EnvSessionTTL = "TRAILPACK_SESSION_TTL"

	EnvCORSAllowedOrigins = "TRAILPACK_CORS_ALLOWED_ORIGINS"
	EnvPubSubOrdersTopic  = "TRAILPACK_PUBSUB_ORDERS_TOPIC"
	EnvOAuthStateSecret   = "TRAILPACK_OAUTH_STATE_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
