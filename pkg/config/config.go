package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Checkout CheckoutConfig
	Cart     CartConfig
	CORS     CORSConfig
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
	Env          string `envconfig:"VELOGEAR_APP_ENV" required:"true"`
	Port         string `envconfig:"VELOGEAR_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"VELOGEAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VELOGEAR_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"VELOGEAR_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"VELOGEAR_DB_DSN"`

	Host     string `envconfig:"VELOGEAR_DB_HOST"`
	Port     int    `envconfig:"VELOGEAR_DB_PORT" default:"5432"`
	User     string `envconfig:"VELOGEAR_DB_USER"`
	Password string `envconfig:"VELOGEAR_DB_PASSWORD"`
	Name     string `envconfig:"VELOGEAR_DB_NAME"`
	SSLMode  string `envconfig:"VELOGEAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VELOGEAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VELOGEAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VELOGEAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VELOGEAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either VELOGEAR_DB_DSN or host/user/name parts are required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"VELOGEAR_REDIS_URL"`
	Address      string        `envconfig:"VELOGEAR_REDIS_ADDR"`
	Password     string        `envconfig:"VELOGEAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"VELOGEAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VELOGEAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VELOGEAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VELOGEAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VELOGEAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VELOGEAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VELOGEAR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VELOGEAR_JWT_ISSUER" default:"velogear"`
	ExpirationMinutes int    `envconfig:"VELOGEAR_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// CheckoutConfig tunes the reservation engine. The retry bound is a tunable,
// not a contract; 3 matches the behavior the storefront shipped with.
type CheckoutConfig struct {
	ReserveAttempts int           `envconfig:"VELOGEAR_CHECKOUT_RESERVE_ATTEMPTS" default:"3"`
	ReserveBackoff  time.Duration `envconfig:"VELOGEAR_CHECKOUT_RESERVE_BACKOFF" default:"25ms"`
}

type CartConfig struct {
	TTL time.Duration `envconfig:"VELOGEAR_CART_TTL" default:"720h"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"VELOGEAR_CORS_ALLOWED_ORIGINS" default:"*"`
}
