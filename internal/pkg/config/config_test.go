package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadMap(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return load(context.Background(), envconfig.MapLookuper(env))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadMap(t, map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "9090", cfg.OpsPort)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "sha256", cfg.Auth.PasswordHasher)
	assert.Equal(t, "deterministic", cfg.Auth.IdentityCipher)
	assert.True(t, cfg.Auth.DemoIdentities)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, 27017, cfg.Store.Port)
	assert.Equal(t, 10, cfg.Store.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Store.PoolWait)
	assert.Equal(t, 0, cfg.Throttle.MaxFailures)
	assert.Equal(t, 15*time.Minute, cfg.Throttle.Window)
	assert.Equal(t, "none", cfg.Audit.Sink)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FallbacksAreReported(t *testing.T) {
	cfg, err := loadMap(t, map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, FallbackJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, FallbackIdentityKey, cfg.Auth.IdentityKey)
	assert.Equal(t, []string{"JWT_SECRET", "IDENTITY_KEY"}, cfg.Fallbacks())
	assert.Empty(t, cfg.Store.User)

	cfg, err = loadMap(t, map[string]string{"STORE_DRIVER": "postgres"})
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Store.Port)
	assert.Equal(t, FallbackStoreUser, cfg.Store.User)
	assert.ElementsMatch(t, []string{"JWT_SECRET", "IDENTITY_KEY", "STORE_USER", "STORE_PASSWORD"}, cfg.Fallbacks())
}

func TestLoad_ExplicitValuesSuppressFallbacks(t *testing.T) {
	cfg, err := loadMap(t, map[string]string{
		"JWT_SECRET":      "s3cret",
		"IDENTITY_KEY":    "k3y",
		"STORE_DRIVER":    "postgres",
		"STORE_USER":      "app",
		"STORE_PASSWORD":  "pw",
		"STORE_PORT":      "6543",
		"TOKEN_TTL":       "30m",
		"PASSWORD_HASHER": "bcrypt",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
		"ENV":             "production",
	})
	require.NoError(t, err)

	assert.Empty(t, cfg.Fallbacks())
	assert.Equal(t, 6543, cfg.Store.Port)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Audit.KafkaBrokers)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown hasher":       {"PASSWORD_HASHER": "md5"},
		"unknown cipher":       {"IDENTITY_CIPHER": "rot13"},
		"unknown driver":       {"STORE_DRIVER": "mysql"},
		"unknown audit sink":   {"AUDIT_SINK": "s3"},
		"bcrypt cost too low":  {"BCRYPT_COST": "2"},
		"zero pool":            {"STORE_POOL_SIZE": "0"},
		"bad duration":         {"TOKEN_TTL": "soon"},
		"throttle needs redis": {"LOGIN_MAX_FAILURES": "5"},
		"kafka needs brokers":  {"AUDIT_SINK": "kafka"},
		"mongo audit on pg":    {"AUDIT_SINK": "mongo", "STORE_DRIVER": "postgres"},
		"half seed":            {"SEED_ADMIN_USERNAME": "root"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadMap(t, env)
			assert.Error(t, err)
		})
	}
}
