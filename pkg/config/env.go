package config

// EnvPrefix is the envconfig prefix shared by every setting.
const EnvPrefix = "WARRANTYFLOW"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error
// messages, tooling).
const (
	EnvAppEnv   = "WARRANTYFLOW_APP_ENV"
	EnvPort     = "WARRANTYFLOW_APP_PORT"
	EnvLogLevel = "WARRANTYFLOW_LOG_LEVEL"

	EnvDBDSN  = "WARRANTYFLOW_DB_DSN"
	EnvDBHost = "WARRANTYFLOW_DB_HOST"
	EnvDBUser = "WARRANTYFLOW_DB_USER"
	EnvDBName = "WARRANTYFLOW_DB_NAME"

	EnvRedisURL = "WARRANTYFLOW_REDIS_URL"

	EnvJWTSecret              = "WARRANTYFLOW_JWT_SECRET"
	EnvJWTIssuer              = "WARRANTYFLOW_JWT_ISSUER"
	EnvJWTExpMins             = "WARRANTYFLOW_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "WARRANTYFLOW_REFRESH_TOKEN_TTL_MINUTES"

	EnvGCPProjectID = "WARRANTYFLOW_GCP_PROJECT_ID"

	EnvPubSubDomainTopic     = "WARRANTYFLOW_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubNotificationSub = "WARRANTYFLOW_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubChangefeedSub   = "WARRANTYFLOW_PUBSUB_CHANGEFEED_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
