package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "LUNEBOX"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "LUNEBOX_APP_ENV"
	EnvDBDSN  = "LUNEBOX_DB_DSN"
	EnvDBHost = "LUNEBOX_DB_HOST"
	EnvDBUser = "LUNEBOX_DB_USER"
	EnvDBName = "LUNEBOX_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Session      SessionConfig
	Commerce     CommerceConfig
	Checkout     CheckoutConfig
	Catalog      CatalogConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"LUNEBOX_APP_ENV" required:"true"`
	Port         string `envconfig:"LUNEBOX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LUNEBOX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LUNEBOX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LUNEBOX_DB_DSN"`
	Driver string `envconfig:"LUNEBOX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LUNEBOX_DB_HOST"`
	LegacyPort     int    `envconfig:"LUNEBOX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LUNEBOX_DB_USER"`
	LegacyPassword string `envconfig:"LUNEBOX_DB_PASSWORD"`
	LegacyName     string `envconfig:"LUNEBOX_DB_NAME"`
	LegacySSLMode  string `envconfig:"LUNEBOX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LUNEBOX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LUNEBOX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LUNEBOX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LUNEBOX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LUNEBOX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LUNEBOX_REDIS_ADDR"`
	Password     string        `envconfig:"LUNEBOX_REDIS_PASSWORD"`
	DB           int           `envconfig:"LUNEBOX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LUNEBOX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LUNEBOX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LUNEBOX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LUNEBOX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LUNEBOX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SessionConfig drives guest cart session tokens.
type SessionConfig struct {
	Secret     string        `envconfig:"LUNEBOX_SESSION_SECRET" required:"true"`
	Issuer     string        `envconfig:"LUNEBOX_SESSION_ISSUER" default:"lunebox-storefront"`
	TTL        time.Duration `envconfig:"LUNEBOX_SESSION_TTL" default:"168h"`
	CookieName string        `envconfig:"LUNEBOX_SESSION_COOKIE" default:"lunebox_session"`
}

// CommerceConfig points at the hosted commerce platform's storefront API.
type CommerceConfig struct {
	BaseURL     string        `envconfig:"LUNEBOX_COMMERCE_BASE_URL"`
	AccessToken string        `envconfig:"LUNEBOX_COMMERCE_ACCESS_TOKEN" required:"true"`
	Env         string        `envconfig:"LUNEBOX_COMMERCE_ENV" default:"sandbox"`
	HTTPTimeout time.Duration `envconfig:"LUNEBOX_COMMERCE_HTTP_TIMEOUT" default:"10s"`
}

// Environment returns the normalized commerce environment (sandbox/production).
func (c CommerceConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(c.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CheckoutConfig struct {
	SessionTimeout time.Duration `envconfig:"LUNEBOX_CHECKOUT_SESSION_TIMEOUT" default:"12s"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `envconfig:"LUNEBOX_CATALOG_CACHE_TTL" default:"5m"`
}

type RateLimitConfig struct {
	CheckoutWindow time.Duration `envconfig:"LUNEBOX_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutLimit  int           `envconfig:"LUNEBOX_RATE_LIMIT_CHECKOUT_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LUNEBOX_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LUNEBOX_AUTO_MIGRATE" default:"false"`
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
