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
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Tiers        TiersConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LESSONLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"LESSONLEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LESSONLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LESSONLEDGER_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"LESSONLEDGER_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind        string `envconfig:"LESSONLEDGER_SERVICE_KIND" default:"api"`
	// MetricsAddr is where workers expose /metrics; empty disables it.
	MetricsAddr string `envconfig:"LESSONLEDGER_METRICS_ADDR" default:":9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"LESSONLEDGER_DB_DSN"`
	Driver string `envconfig:"LESSONLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LESSONLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"LESSONLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LESSONLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"LESSONLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"LESSONLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"LESSONLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LESSONLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LESSONLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LESSONLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LESSONLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"LESSONLEDGER_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LESSONLEDGER_REDIS_URL"`
	Address      string        `envconfig:"LESSONLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"LESSONLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"LESSONLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LESSONLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LESSONLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LESSONLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LESSONLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LESSONLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LESSONLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LESSONLEDGER_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig holds the money-movement policy knobs.
type LedgerConfig struct {
	MaturityWindow        time.Duration `envconfig:"LESSONLEDGER_MATURITY_WINDOW" default:"336h"`
	HoldPeriod            time.Duration `envconfig:"LESSONLEDGER_EARNINGS_HOLD_PERIOD" default:"168h"`
	ReferralMilestoneHour int           `envconfig:"LESSONLEDGER_REFERRAL_MILESTONE_HOURS" default:"10"`
}

func (l LedgerConfig) validate() error {
	if l.MaturityWindow < 0 {
		return fmt.Errorf("%s must not be negative", EnvMaturityWindow)
	}
	if l.HoldPeriod < 0 {
		return fmt.Errorf("%s must not be negative", EnvHoldPeriod)
	}
	if l.ReferralMilestoneHour <= 0 {
		return fmt.Errorf("%s must be positive", EnvReferralMilestoneHours)
	}
	return nil
}

// TiersConfig points at an optional TOML file overriding the built-in ladders.
type TiersConfig struct {
	File string `envconfig:"LESSONLEDGER_TIERS_FILE"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LESSONLEDGER_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"LESSONLEDGER_CRON_LOCK_TTL" default:"55m"`
	// OutboxRetentionDays controls how long published outbox rows are kept.
	OutboxRetentionDays int `envconfig:"LESSONLEDGER_OUTBOX_RETENTION_DAYS" default:"30"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"LESSONLEDGER_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	LedgerTopic   string `envconfig:"LESSONLEDGER_PUBSUB_LEDGER_TOPIC" default:"ledger-events"`
	TiersTopic    string `envconfig:"LESSONLEDGER_PUBSUB_TIERS_TOPIC" default:"tier-events"`
	EarningsTopic string `envconfig:"LESSONLEDGER_PUBSUB_EARNINGS_TOPIC" default:"earnings-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LESSONLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LESSONLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LESSONLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// RateLimitConfig caps money-moving requests per caller.
type RateLimitConfig struct {
	MoneyLimit  int64         `envconfig:"LESSONLEDGER_RATE_LIMIT_MONEY" default:"30"`
	MoneyWindow time.Duration `envconfig:"LESSONLEDGER_RATE_LIMIT_MONEY_WINDOW" default:"1m"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = "file:lessonledger.db?cache=shared&_busy_timeout=5000"
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
