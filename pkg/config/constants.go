package config

const (
	EnvPrefix = "LESSONLEDGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "LESSONLEDGER_APP_ENV"
	EnvPort     = "LESSONLEDGER_APP_PORT"
	EnvLogLevel = "LESSONLEDGER_LOG_LEVEL"

	EnvDBDSN  = "LESSONLEDGER_DB_DSN"
	EnvDBHost = "LESSONLEDGER_DB_HOST"
	EnvDBUser = "LESSONLEDGER_DB_USER"
	EnvDBName = "LESSONLEDGER_DB_NAME"

	EnvUseSQLite = "LESSONLEDGER_USE_SQLITE"
	EnvRedisURL  = "LESSONLEDGER_REDIS_URL"

	EnvMaturityWindow         = "LESSONLEDGER_MATURITY_WINDOW"
	EnvHoldPeriod             = "LESSONLEDGER_EARNINGS_HOLD_PERIOD"
	EnvReferralMilestoneHours = "LESSONLEDGER_REFERRAL_MILESTONE_HOURS"
	EnvTiersFile              = "LESSONLEDGER_TIERS_FILE"
	EnvCronInterval           = "LESSONLEDGER_CRON_INTERVAL"
	EnvGCPProjectID           = "LESSONLEDGER_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
