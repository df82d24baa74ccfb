package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is loaded once at process start. PayPal credentials are intentionally
// absent: they are resolved per operation so rotated secrets apply without a
// restart.
type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	PayPal       PayPalConfig
	Cron         CronConfig
	GCP          GCPConfig
	Alerts       AlertsConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SKILLBRIDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"SKILLBRIDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SKILLBRIDGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SKILLBRIDGE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"SKILLBRIDGE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN string `envconfig:"SKILLBRIDGE_DB_DSN"`

	LegacyHost     string `envconfig:"SKILLBRIDGE_DB_HOST"`
	LegacyPort     int    `envconfig:"SKILLBRIDGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SKILLBRIDGE_DB_USER"`
	LegacyPassword string `envconfig:"SKILLBRIDGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SKILLBRIDGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SKILLBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SKILLBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SKILLBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SKILLBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SKILLBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SKILLBRIDGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SKILLBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"SKILLBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SKILLBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SKILLBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SKILLBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SKILLBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SKILLBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SKILLBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SKILLBRIDGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SKILLBRIDGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SKILLBRIDGE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PayPalConfig carries the non-secret knobs of the processor integration.
type PayPalConfig struct {
	BrandName        string        `envconfig:"SKILLBRIDGE_PAYPAL_BRAND_NAME" default:"SkillBridge"`
	ReturnURL        string        `envconfig:"SKILLBRIDGE_PAYPAL_RETURN_URL" default:"https://app.skillbridge.co.za/billing/success"`
	CancelURL        string        `envconfig:"SKILLBRIDGE_PAYPAL_CANCEL_URL" default:"https://app.skillbridge.co.za/billing/cancel"`
	HTTPTimeout      time.Duration `envconfig:"SKILLBRIDGE_PAYPAL_HTTP_TIMEOUT" default:"20s"`
	CredentialsTTL   time.Duration `envconfig:"SKILLBRIDGE_PAYPAL_CREDENTIALS_TTL" default:"0s"`
	ProductCacheTTL  time.Duration `envconfig:"SKILLBRIDGE_PAYPAL_PRODUCT_CACHE_TTL" default:"1h"`
	ConflictRetries  uint64        `envconfig:"SKILLBRIDGE_PLAN_CONFLICT_RETRIES" default:"1"`
	LegacyConfigKey  string        `envconfig:"SKILLBRIDGE_PAYPAL_LEGACY_CONFIG_KEY" default:"sb:config:paypal"`
	ConflictBackoff  time.Duration `envconfig:"SKILLBRIDGE_PLAN_CONFLICT_BACKOFF" default:"250ms"`
	PlanListPageSize int           `envconfig:"SKILLBRIDGE_PAYPAL_PLAN_PAGE_SIZE" default:"20"`
}

// CronConfig drives the cron worker and the subscription status sync job.
type CronConfig struct {
	Schedule        string        `envconfig:"SKILLBRIDGE_CRON_SCHEDULE" default:"0 2 * * *"`
	LockTTL         time.Duration `envconfig:"SKILLBRIDGE_CRON_LOCK_TTL" default:"30m"`
	SyncBatchSize   int           `envconfig:"SKILLBRIDGE_SYNC_BATCH_SIZE" default:"200"`
	SyncConcurrency int           `envconfig:"SKILLBRIDGE_SYNC_CONCURRENCY" default:"10"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SKILLBRIDGE_GCP_PROJECT_ID"`
}

type AlertsConfig struct {
	Topic string `envconfig:"SKILLBRIDGE_ALERTS_TOPIC"`
}

// Enabled reports whether billing alerts should be published to Pub/Sub.
func (a AlertsConfig) Enabled() bool {
	return strings.TrimSpace(a.Topic) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SKILLBRIDGE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
