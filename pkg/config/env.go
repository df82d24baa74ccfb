package config

const (
	EnvPrefix = "SKILLBRIDGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "SKILLBRIDGE_APP_ENV"
	EnvPort      = "SKILLBRIDGE_APP_PORT"
	EnvLogLevel  = "SKILLBRIDGE_LOG_LEVEL"
	EnvDBDSN     = "SKILLBRIDGE_DB_DSN"
	EnvDBHost    = "SKILLBRIDGE_DB_HOST"
	EnvDBUser    = "SKILLBRIDGE_DB_USER"
	EnvDBName    = "SKILLBRIDGE_DB_NAME"
	EnvRedisURL  = "SKILLBRIDGE_REDIS_URL"
	EnvJWTSecret = "SKILLBRIDGE_JWT_SECRET"
	EnvJWTIssuer = "SKILLBRIDGE_JWT_ISSUER"

	EnvCronSchedule    = "SKILLBRIDGE_CRON_SCHEDULE"
	EnvSyncConcurrency = "SKILLBRIDGE_SYNC_CONCURRENCY"
	EnvAlertsTopic     = "SKILLBRIDGE_ALERTS_TOPIC"
	EnvConflictRetries = "SKILLBRIDGE_PLAN_CONFLICT_RETRIES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
