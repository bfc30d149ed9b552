package config

const EnvPrefix = "ORDERDESK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv         = "ORDERDESK_APP_ENV"
	EnvPort           = "ORDERDESK_APP_PORT"
	EnvBackendBaseURL = "ORDERDESK_BACKEND_BASE_URL"
	EnvSyncMode       = "ORDERDESK_SYNC_MODE"
	EnvInFlightTTL    = "ORDERDESK_INFLIGHT_TTL"
	EnvJWTSecret      = "ORDERDESK_JWT_SECRET"
	EnvJWTIssuer      = "ORDERDESK_JWT_ISSUER"
	EnvRedisURL       = "ORDERDESK_REDIS_URL"
	EnvJournalEnabled = "ORDERDESK_JOURNAL_ENABLED"
	EnvDBDSN          = "ORDERDESK_DB_DSN"
	EnvDBDriver       = "ORDERDESK_DB_DRIVER"
	EnvDBHost         = "ORDERDESK_DB_HOST"
	EnvDBUser         = "ORDERDESK_DB_USER"
	EnvDBName         = "ORDERDESK_DB_NAME"
)

var splitDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
