package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
)

type Config struct {
	App          AppConfig
	Backend      BackendConfig
	Desk         DeskConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	CORS         CORSConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Desk.validate(); err != nil {
		return nil, err
	}
	if cfg.FeatureFlags.JournalEnabled {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERDESK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ORDERDESK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ORDERDESK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ORDERDESK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points the desk at the marketplace REST API.
type BackendConfig struct {
	BaseURL             string        `envconfig:"ORDERDESK_BACKEND_BASE_URL" required:"true"`
	Timeout             time.Duration `envconfig:"ORDERDESK_BACKEND_TIMEOUT" default:"10s"`
	SellerSubOrdersPath string        `envconfig:"ORDERDESK_BACKEND_SELLER_SUBORDERS_PATH" default:"/suborders/seller/my-sales"`
	BuyerSubOrdersPath  string        `envconfig:"ORDERDESK_BACKEND_BUYER_SUBORDERS_PATH" default:"/suborders/buyer/my-orders"`
}

func (b BackendConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(b.BaseURL))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", EnvBackendBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvBackendBaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", EnvBackendBaseURL)
	}
	return nil
}

// DeskConfig tunes the dispatcher.
type DeskConfig struct {
	SyncMode            string        `envconfig:"ORDERDESK_SYNC_MODE" default:"refetch"`
	InFlightTTL         time.Duration `envconfig:"ORDERDESK_INFLIGHT_TTL" default:"30s"`
	ErrorTTL            time.Duration `envconfig:"ORDERDESK_ERROR_TTL" default:"24h"`
	DefaultCancelReason string        `envconfig:"ORDERDESK_DEFAULT_CANCEL_REASON" default:"Cancelled by seller"`
}

// Mode returns the parsed sync mode; Load has already rejected unknown values.
func (d DeskConfig) Mode() enums.SyncMode {
	mode, err := enums.ParseSyncMode(d.SyncMode)
	if err != nil {
		return enums.SyncModeRefetch
	}
	return mode
}

func (d DeskConfig) validate() error {
	if _, err := enums.ParseSyncMode(d.SyncMode); err != nil {
		return fmt.Errorf("%s: %w", EnvSyncMode, err)
	}
	if d.InFlightTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvInFlightTTL)
	}
	return nil
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERDESK_DB_DSN"`
	Driver string `envconfig:"ORDERDESK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ORDERDESK_DB_HOST"`
	Port     int    `envconfig:"ORDERDESK_DB_PORT" default:"5432"`
	User     string `envconfig:"ORDERDESK_DB_USER"`
	Password string `envconfig:"ORDERDESK_DB_PASSWORD"`
	Name     string `envconfig:"ORDERDESK_DB_NAME"`
	SSLMode  string `envconfig:"ORDERDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERDESK_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"ORDERDESK_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"ORDERDESK_DB_SLOW_QUERY" default:"200ms"`
}

// IsSQLite reports whether the journal should use the embedded SQLite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

// RedisConfig is optional: when neither URL nor address is set the desk keeps
// in-flight and error state in process memory.
type RedisConfig struct {
	URL          string        `envconfig:"ORDERDESK_REDIS_URL"`
	Address      string        `envconfig:"ORDERDESK_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig verifies the access tokens minted by the marketplace.
type JWTConfig struct {
	Secret            string `envconfig:"ORDERDESK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDERDESK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ORDERDESK_JWT_EXPIRATION_MINUTES" default:"60"`
	LeewaySeconds     int    `envconfig:"ORDERDESK_JWT_LEEWAY_SECONDS" default:"30"`
}

type FeatureFlagsConfig struct {
	JournalEnabled bool `envconfig:"ORDERDESK_JOURNAL_ENABLED" default:"false"`
	AutoMigrate    bool `envconfig:"ORDERDESK_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORDERDESK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ORDERDESK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ORDERDESK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	TransitionsTopic string `envconfig:"ORDERDESK_PUBSUB_TRANSITIONS_TOPIC"`
	// OrderedDelivery keys messages by order id so one order's transitions stay in order.
	OrderedDelivery bool   `envconfig:"ORDERDESK_PUBSUB_ORDERED" default:"true"`
	EmulatorHost    string `envconfig:"ORDERDESK_PUBSUB_EMULATOR_HOST"`
}

// Enabled reports whether transition events should be published.
func (p PubSubConfig) Enabled(gcp GCPConfig) bool {
	return strings.TrimSpace(p.TransitionsTopic) != "" && strings.TrimSpace(gcp.ProjectID) != ""
}

// CronConfig drives cmd/cron-worker.
type CronConfig struct {
	Interval             time.Duration `envconfig:"ORDERDESK_CRON_INTERVAL" default:"24h"`
	JournalRetentionDays int           `envconfig:"ORDERDESK_JOURNAL_RETENTION_DAYS" default:"90"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ORDERDESK_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range splitDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
