package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error
	if c.JWT.ExpirationMinutes <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvJWTExpMins))
	}
	if c.RateLimit.Window < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvRateLimitWindow))
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > maxJWTLeeway {
		err = multierr.Append(err, fmt.Errorf("%s must be between 0 and %s", EnvJWTLeeway, maxJWTLeeway))
	}
	if c.App.IsProd() && len(c.JWT.Secret) < minProdJWTSecretLen {
		err = multierr.Append(err, fmt.Errorf("%s must be at least %d bytes in prod", EnvJWTSecret, minProdJWTSecretLen))
	}
	switch strings.ToLower(c.App.LogFormat) {
	case "", "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("%s must be json or console", EnvLogFormat))
	}
	if c.Outbox.MaxAttempts < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvOutboxMaxAttempts))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"HERA_APP_ENV" required:"true"`
	Port         string `envconfig:"HERA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HERA_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"HERA_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"HERA_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is comma separated; empty keeps the built-in origins.
	CORSOrigins []string `envconfig:"HERA_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"HERA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HERA_DB_DSN"`
	Driver string `envconfig:"HERA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HERA_DB_HOST"`
	LegacyPort     int    `envconfig:"HERA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HERA_DB_USER"`
	LegacyPassword string `envconfig:"HERA_DB_PASSWORD"`
	LegacyName     string `envconfig:"HERA_DB_NAME"`
	LegacySSLMode  string `envconfig:"HERA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HERA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HERA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HERA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HERA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the threshold above which statements are logged at warn. Zero disables it.
	SlowQuery time.Duration `envconfig:"HERA_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HERA_REDIS_URL"`
	Address      string        `envconfig:"HERA_REDIS_ADDR"`
	Password     string        `envconfig:"HERA_REDIS_PASSWORD"`
	DB           int           `envconfig:"HERA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HERA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HERA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HERA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HERA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HERA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the identity provider.
type JWTConfig struct {
	Secret            string        `envconfig:"HERA_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"HERA_JWT_ISSUER" required:"true"`
	Audience          string        `envconfig:"HERA_JWT_AUDIENCE"`
	Leeway            time.Duration `envconfig:"HERA_JWT_LEEWAY" default:"30s"`
	ExpirationMinutes int           `envconfig:"HERA_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig throttles writes per organization in a fixed window.
type RateLimitConfig struct {
	Window   time.Duration `envconfig:"HERA_RATE_LIMIT_WINDOW" default:"1m"`
	OrgLimit int           `envconfig:"HERA_RATE_LIMIT_ORG_LIMIT" default:"600"`
}

func (r RateLimitConfig) Enabled() bool {
	return r.Window > 0 && r.OrgLimit > 0
}

type FeatureFlagsConfig struct {
	AutoMigrate             bool `envconfig:"HERA_AUTO_MIGRATE" default:"false"`
	StrictLineSmartCodes    bool `envconfig:"HERA_STRICT_LINE_SMART_CODES" default:"true"`
	AllowPublicSmartCodeAPI bool `envconfig:"HERA_PUBLIC_SMART_CODE_API" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"HERA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"HERA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"HERA_GOOGLE_APPLICATION_CREDENTIALS"`
	// PubSubEmulatorHost points the client at a local emulator without auth.
	PubSubEmulatorHost string `envconfig:"HERA_PUBSUB_EMULATOR_HOST"`
}

type PubSubConfig struct {
	TransactionsTopic  string `envconfig:"HERA_PUBSUB_TRANSACTIONS_TOPIC" default:"hera-transactions"`
	EntitiesTopic      string `envconfig:"HERA_PUBSUB_ENTITIES_TOPIC" default:"hera-entities"`
	DomainSubscription string `envconfig:"HERA_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"HERA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HERA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HERA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MetricsConfig struct {
	Addr string `envconfig:"HERA_METRICS_ADDR" default:":9090"`
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
