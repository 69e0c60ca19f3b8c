package app

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/doorman/pkg/cryptox"
	"github.com/aussiebroadwan/doorman/pkg/httpx"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Port                int           `env:"AUTH_PORT" envDefault:"8080"`
	Issuer              string        `env:"AUTH_ISSUER" envDefault:"doorman"`
	ShutdownGracePeriod time.Duration `env:"AUTH_SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Tokens   TokenConfig
	Password PasswordConfig
	Database DatabaseConfig
	Limits   RateLimitConfig
	Redis    RedisConfig

	MetricsEnabled bool `env:"AUTH_METRICS_ENABLED" envDefault:"true"`
}

// TokenConfig holds token secrets and lifetimes. Empty secrets are replaced
// with random ones at startup, which invalidates tokens on every restart.
type TokenConfig struct {
	AccessSecret  string        `env:"AUTH_ACCESS_SECRET"`
	RefreshSecret string        `env:"AUTH_REFRESH_SECRET"`
	AccessTTL     time.Duration `env:"AUTH_ACCESS_TTL" envDefault:"1h"`
	RefreshTTL    time.Duration `env:"AUTH_REFRESH_TTL" envDefault:"168h"`
	SessionTTL    time.Duration `env:"AUTH_SESSION_TTL" envDefault:"1h"`
	StrictRefresh bool          `env:"AUTH_STRICT_REFRESH" envDefault:"true"`
	DefaultRole   string        `env:"AUTH_DEFAULT_ROLE" envDefault:"customer"`
}

type PasswordConfig struct {
	Hasher     string `env:"AUTH_PASSWORD_HASHER" envDefault:"bcrypt"`
	BcryptCost int    `env:"AUTH_BCRYPT_COST" envDefault:"10"`
	PepperFile string `env:"AUTH_PEPPER_FILE" envDefault:"./data/pepper"`
}

type DatabaseConfig struct {
	Driver               string        `env:"AUTH_DATABASE_DRIVER" envDefault:"sqlite"`
	File                 string        `env:"AUTH_DATABASE_FILE" envDefault:"./data/doorman.db"`
	URL                  string        `env:"AUTH_DATABASE_URL"`
	StoreTimeout         time.Duration `env:"AUTH_STORE_TIMEOUT" envDefault:"5s"`
	HousekeepingInterval time.Duration `env:"AUTH_HOUSEKEEPING_INTERVAL" envDefault:"15m"`
}

type RateLimitConfig struct {
	Backend       string        `env:"RATELIMIT_BACKEND" envDefault:"memory"`
	LoginRequests int           `env:"RATELIMIT_LOGIN_REQUESTS" envDefault:"5"`
	LoginWindow   time.Duration `env:"RATELIMIT_LOGIN_WINDOW" envDefault:"15m"`
	APIRequests   int           `env:"RATELIMIT_API_REQUESTS" envDefault:"100"`
	APIWindow     time.Duration `env:"RATELIMIT_API_WINDOW" envDefault:"15m"`

	// TrustedProxies lists reverse proxies (IPs or CIDRs) whose
	// X-Forwarded-For is believed. Empty keys every request on its socket peer.
	TrustedProxies []string `env:"AUTH_TRUSTED_PROXIES" envSeparator:","`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig reads a .env file when present, then the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	return ParseConfig(env.Options{})
}

// ParseConfig parses the environment (or opts.Environment when set) without
// touching .env files.
func ParseConfig(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("AUTH_PORT %d out of range", c.Port))
	}
	if !slices.Contains([]string{DriverSQLite, DriverPostgres}, c.Database.Driver) {
		errs = append(errs, fmt.Errorf("unknown AUTH_DATABASE_DRIVER %q", c.Database.Driver))
	}
	if c.Database.Driver == DriverPostgres && c.Database.URL == "" {
		errs = append(errs, errors.New("AUTH_DATABASE_URL is required for the postgres driver"))
	}
	if !slices.Contains([]string{cryptox.AlgorithmBcrypt, cryptox.AlgorithmArgon2id}, c.Password.Hasher) {
		errs = append(errs, fmt.Errorf("unknown AUTH_PASSWORD_HASHER %q", c.Password.Hasher))
	}
	if !slices.Contains([]string{BackendMemory, BackendRedis}, c.Limits.Backend) {
		errs = append(errs, fmt.Errorf("unknown RATELIMIT_BACKEND %q", c.Limits.Backend))
	}

	for name, d := range map[string]time.Duration{
		"AUTH_ACCESS_TTL":            c.Tokens.AccessTTL,
		"AUTH_REFRESH_TTL":           c.Tokens.RefreshTTL,
		"AUTH_SESSION_TTL":           c.Tokens.SessionTTL,
		"AUTH_STORE_TIMEOUT":         c.Database.StoreTimeout,
		"AUTH_HOUSEKEEPING_INTERVAL": c.Database.HousekeepingInterval,
		"RATELIMIT_LOGIN_WINDOW":     c.Limits.LoginWindow,
		"RATELIMIT_API_WINDOW":       c.Limits.APIWindow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Limits.LoginRequests <= 0 || c.Limits.APIRequests <= 0 {
		errs = append(errs, errors.New("rate limit request counts must be positive"))
	}

	if _, err := httpx.NewClientIP(c.Limits.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("AUTH_TRUSTED_PROXIES: %w", err))
	}

	if c.Tokens.AccessSecret != "" && c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		errs = append(errs, errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET must differ"))
	}

	return errors.Join(errs...)
}
