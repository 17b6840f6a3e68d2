package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Port        string `env:"PORT,         default=8080"        validate:"numeric"`
	Env         string `env:"ENV,          default=development"`
	LogLevel    string `env:"LOG_LEVEL,    default=info"`
	JWTSecret   Secret `env:"JWT_SECRET"                        validate:"required"`
	HashWorkers int    `env:"HASH_WORKERS, default=0"           validate:"min=0"`

	Cookie CookieConfig
	Store  StoreConfig
	Redis  RedisConfig
}

type CookieConfig struct {
	// Secure may only be turned off for plain-HTTP local development.
	Secure   bool   `env:"COOKIE_SECURE,   default=true"`
	SameSite string `env:"COOKIE_SAMESITE, default=strict" validate:"oneof=strict lax"`
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER, default=postgres" validate:"oneof=postgres mongo memory"`

	DBHost     string `env:"DB_HOST"                  validate:"required_if=Driver postgres"`
	DBPort     int    `env:"DB_PORT,    default=5432" validate:"min=1,max=65535"`
	DBUser     string `env:"DB_USER"                  validate:"required_if=Driver postgres"`
	DBPassword Secret `env:"DB_PASSWORD"              validate:"required_if=Driver postgres"`
	DBName     string `env:"DB_NAME"                  validate:"required_if=Driver postgres"`
	DBSSLMode  string `env:"DB_SSLMODE, default=disable"`

	MongoURI      Secret `env:"MONGO_URI" validate:"required_if=Driver mongo"`
	MongoDatabase string `env:"MONGO_DB"  validate:"required_if=Driver mongo"`
}

type RedisConfig struct {
	// Addr empty disables the profile cache.
	Addr     string        `env:"REDIS_ADDR"`
	DB       int           `env:"REDIS_DB,        default=0"`
	CacheTTL time.Duration `env:"REDIS_CACHE_TTL, default=10m"`
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through the given lookuper and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func (c CookieConfig) SameSiteMode() http.SameSite {
	if c.SameSite == "lax" {
		return http.SameSiteLaxMode
	}
	return http.SameSiteStrictMode
}

// Secret is a string that never prints its value.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Reveal returns the raw value.
func (s Secret) Reveal() string {
	return string(s)
}
