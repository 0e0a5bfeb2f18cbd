// Package config loads storefront configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the storefront service configuration: the decoded environment
// plus values derived from it.
type Config struct {
	Env

	AdminEmails        []string
	RemoteZoneFee      decimal.Decimal
	CORSAllowedOrigins []string
}

// Env is the raw environment, decoded by envdecode.
type Env struct {
	Port      int    `env:"PORT,default=8080"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	SupabaseURL        string        `env:"SUPABASE_URL,required"`
	SupabaseAnonKey    string        `env:"SUPABASE_ANON_KEY,required"`
	SupabaseServiceKey string        `env:"SUPABASE_SERVICE_KEY"`
	SupabaseJWTSecret  string        `env:"SUPABASE_JWT_SECRET"`
	SupabaseTimeout    time.Duration `env:"SUPABASE_TIMEOUT,default=15s"`

	// ADMIN_EMAILS is a comma separated allowlist matched exactly.
	AdminEmailsRaw string `env:"ADMIN_EMAILS"`

	RemoteZoneFeeRaw string `env:"REMOTE_ZONE_FEE,default=70"`
	LocalZoneLabel   string `env:"LOCAL_ZONE_LABEL,default=Within Coimbatore"`
	RemoteZoneLabel  string `env:"REMOTE_ZONE_LABEL,default=Outside Coimbatore"`

	StorageBucket string `env:"STORAGE_BUCKET"`
	// DatabaseURL must be the Supabase project's own Postgres; the admin
	// console and the order feed read orders through Supabase.
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`

	SessionTTL          time.Duration `env:"SESSION_TTL,default=24h"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE,default=false"`

	CORSAllowedOriginsRaw string `env:"CORS_ALLOWED_ORIGINS"`

	AuthRateLimit int `env:"AUTH_RATE_LIMIT,default=5"`
	AuthRateBurst int `env:"AUTH_RATE_BURST,default=10"`

	RealtimeEnabled bool `env:"REALTIME_ENABLED,default=true"`
}

// Load reads an optional .env file (ENV_FILE, default ".env") and decodes the
// environment into a validated Config.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envdecode.Decode(&cfg.Env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env (%s): %w", path, err)
	}
	return nil
}

func (c *Config) finalize() error {
	u, err := url.Parse(c.SupabaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SUPABASE_URL must be an absolute URL, got %q", c.SupabaseURL)
	}

	c.AdminEmails = splitAndTrimCSV(c.AdminEmailsRaw)
	c.CORSAllowedOrigins = splitAndTrimCSV(c.CORSAllowedOriginsRaw)

	fee, err := decimal.NewFromString(strings.TrimSpace(c.RemoteZoneFeeRaw))
	if err != nil {
		return fmt.Errorf("REMOTE_ZONE_FEE: invalid amount %q", c.RemoteZoneFeeRaw)
	}
	if fee.IsNegative() {
		return fmt.Errorf("REMOTE_ZONE_FEE must not be negative")
	}
	c.RemoteZoneFee = fee

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.AuthRateLimit <= 0 {
		c.AuthRateLimit = 5
	}
	if c.AuthRateBurst < c.AuthRateLimit {
		c.AuthRateBurst = c.AuthRateLimit
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func splitAndTrimCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
