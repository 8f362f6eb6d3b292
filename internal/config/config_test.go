package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MARKETPLACE_SECURITY_JWTSECRET", testSecret)
	t.Setenv("MARKETPLACE_POSTGRES_DSN", "postgres://localhost:5432/marketplace")
}

func TestLoad_MissingSecretIsFatal(t *testing.T) {
	t.Setenv("MARKETPLACE_SECURITY_JWTSECRET", "")
	t.Setenv("MARKETPLACE_POSTGRES_DSN", "postgres://localhost:5432/marketplace")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
}

func TestLoad_ShortSecretRejected(t *testing.T) {
	t.Setenv("MARKETPLACE_SECURITY_JWTSECRET", "too-short")
	t.Setenv("MARKETPLACE_POSTGRES_DSN", "postgres://localhost:5432/marketplace")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 15*time.Minute, cfg.Security.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Security.RefreshTTL)
	assert.Equal(t, 12, cfg.Security.BcryptCost)
	assert.Equal(t, "auth:maintenance", cfg.Queue.Stream)
	assert.Equal(t, 30*time.Second, cfg.Blacklist.NegativeTTL)
	assert.False(t, cfg.Storage.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MARKETPLACE_SECURITY_ACCESSTTL", "5m")
	t.Setenv("MARKETPLACE_SECURITY_REFRESHTTL", "48h")
	t.Setenv("MARKETPLACE_HTTP_PORT", "9090")
	t.Setenv("MARKETPLACE_STORAGE_ENDPOINT", "http://minio:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Security.AccessTTL)
	assert.Equal(t, 48*time.Hour, cfg.Security.RefreshTTL)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.Storage.Enabled())
}

func TestValidate(t *testing.T) {
	valid := func() AppConfig {
		return AppConfig{
			HTTP:     HTTPConfig{RequestTimeout: time.Second},
			Postgres: PostgresConfig{DSN: "postgres://x"},
			Security: SecurityConfig{
				JWTSecret:         testSecret,
				AccessTTL:         15 * time.Minute,
				RefreshTTL:        7 * 24 * time.Hour,
				BcryptCost:        12,
				PasswordMinLength: 6,
				PasswordMaxLength: 50,
			},
		}
	}

	cases := map[string]func(c *AppConfig){
		"access ttl not shorter than refresh": func(c *AppConfig) { c.Security.AccessTTL = c.Security.RefreshTTL },
		"negative ttl":                        func(c *AppConfig) { c.Security.AccessTTL = -time.Minute },
		"weak bcrypt cost":                    func(c *AppConfig) { c.Security.BcryptCost = 10 },
		"missing dsn":                         func(c *AppConfig) { c.Postgres.DSN = " " },
		"inverted password bounds":            func(c *AppConfig) { c.Security.PasswordMaxLength = 3 },
		"zero request timeout":                func(c *AppConfig) { c.HTTP.RequestTimeout = 0 },
	}

	base := valid()
	require.NoError(t, base.Validate())

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
