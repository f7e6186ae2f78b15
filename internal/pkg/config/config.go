package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Publicly known defaults used when the corresponding variable is unset.
// Every one of them is reported by Fallbacks so startup can warn about it.
const (
	FallbackJWTSecret     = "insecure-default-portal-secret"
	FallbackIdentityKey   = "insecure-default-identity-key"
	FallbackStoreUser     = "portal"
	FallbackStorePassword = "portal"
)

type Config struct {
	Port    string `env:"PORT,     default=8080"`
	OpsPort string `env:"OPS_PORT, default=9090"`
	Env     string `env:"ENV,      default=development"`

	Log       LogConfig
	Auth      AuthConfig
	Store     StoreConfig
	Redis     RedisConfig
	Throttle  ThrottleConfig
	Audit     AuditConfig
	Telemetry TelemetryConfig
	Seed      SeedConfig

	fallbacks []string
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL,  default=info"`
	Pretty bool   `env:"LOG_PRETTY, default=false"`
}

type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET"`
	TokenTTL       time.Duration `env:"TOKEN_TTL,       default=1h"            validate:"gt=0"`
	PasswordHasher string        `env:"PASSWORD_HASHER, default=sha256"        validate:"oneof=sha256 bcrypt"`
	BcryptCost     int           `env:"BCRYPT_COST,     default=10"            validate:"gte=4,lte=31"`
	IdentityKey    string        `env:"IDENTITY_KEY"`
	IdentityCipher string        `env:"IDENTITY_CIPHER, default=deterministic" validate:"oneof=deterministic randomized"`
	DemoIdentities bool          `env:"DEMO_IDENTITIES, default=true"`
}

type StoreConfig struct {
	Driver   string        `env:"STORE_DRIVER,    default=mongo"        validate:"oneof=mongo postgres"`
	Host     string        `env:"STORE_HOST,      default=localhost"`
	Port     int           `env:"STORE_PORT"                            validate:"gte=0,lte=65535"`
	User     string        `env:"STORE_USER"`
	Password string        `env:"STORE_PASSWORD"`
	Name     string        `env:"STORE_NAME,      default=staff_portal" validate:"required"`
	SSLMode  string        `env:"STORE_SSLMODE,   default=disable"`
	PoolSize int           `env:"STORE_POOL_SIZE, default=10"           validate:"gte=1"`
	PoolWait time.Duration `env:"STORE_POOL_WAIT, default=5s"           validate:"gt=0"`
	// MongoURI overrides the discrete Mongo settings when set.
	MongoURI string `env:"MONGO_URI"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type ThrottleConfig struct {
	// MaxFailures of zero disables the login throttle.
	MaxFailures int           `env:"LOGIN_MAX_FAILURES,   default=0"   validate:"gte=0"`
	Window      time.Duration `env:"LOGIN_FAILURE_WINDOW, default=15m" validate:"gt=0"`
}

type AuditConfig struct {
	Sink         string   `env:"AUDIT_SINK,    default=none" validate:"oneof=none log mongo kafka"`
	Workers      int      `env:"AUDIT_WORKERS, default=4"    validate:"gte=1"`
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC,   default=portal.auth-events"`
}

type TelemetryConfig struct {
	// Endpoint enables OTLP trace export when set, e.g. "otel-collector:4318".
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME, default=staff-portal"`
}

type SeedConfig struct {
	AdminUsername string `env:"SEED_ADMIN_USERNAME"`
	AdminPassword string `env:"SEED_ADMIN_PASSWORD"`
}

// Load reads a .env file when one exists and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return load(ctx, envconfig.OsLookuper())
}

// MustLoad is Load for main packages; it panics on invalid configuration.
func MustLoad() *Config {
	cfg, err := Load(context.Background())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.applyFallbacks()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyFallbacks() {
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = FallbackJWTSecret
		c.fallbacks = append(c.fallbacks, "JWT_SECRET")
	}
	if c.Auth.IdentityKey == "" {
		c.Auth.IdentityKey = FallbackIdentityKey
		c.fallbacks = append(c.fallbacks, "IDENTITY_KEY")
	}
	// Mongo without credentials is a valid local setup; Postgres is not.
	if c.Store.Driver == "postgres" {
		if c.Store.User == "" {
			c.Store.User = FallbackStoreUser
			c.fallbacks = append(c.fallbacks, "STORE_USER")
		}
		if c.Store.Password == "" {
			c.Store.Password = FallbackStorePassword
			c.fallbacks = append(c.fallbacks, "STORE_PASSWORD")
		}
	}
	if c.Store.Port == 0 {
		c.Store.Port = 27017
		if c.Store.Driver == "postgres" {
			c.Store.Port = 5432
		}
	}
}

// check validates settings that depend on each other.
func (c *Config) check() error {
	if c.Throttle.MaxFailures > 0 && c.Redis.Addr == "" {
		return errors.New("LOGIN_MAX_FAILURES requires REDIS_ADDR")
	}
	if c.Audit.Sink == "kafka" && len(c.Audit.KafkaBrokers) == 0 {
		return errors.New("AUDIT_SINK=kafka requires KAFKA_BROKERS")
	}
	if c.Audit.Sink == "mongo" && c.Store.Driver != "mongo" && c.Store.MongoURI == "" {
		return errors.New("AUDIT_SINK=mongo requires MONGO_URI when STORE_DRIVER is not mongo")
	}
	if (c.Seed.AdminUsername == "") != (c.Seed.AdminPassword == "") {
		return errors.New("SEED_ADMIN_USERNAME and SEED_ADMIN_PASSWORD must be set together")
	}
	return nil
}

// Fallbacks lists the variables that were unset and replaced by a publicly
// known default.
func (c *Config) Fallbacks() []string {
	return append([]string(nil), c.fallbacks...)
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}
