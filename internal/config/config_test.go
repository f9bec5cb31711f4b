package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	require.Equal(t, 12, cfg.Auth.BcryptCost)
	require.Equal(t, "0 3 * * *", cfg.Cache.ClearSchedule)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	require.Equal(t, LogConfig{Level: "info", Format: "json"}, cfg.Log)
	require.NoError(t, cfg.Validate())
}

func TestLoadReadsLogSettings(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
}

func TestLoadReadsDurations(t *testing.T) {
	t.Setenv("JWT_EXPIRES_IN", "5m")
	t.Setenv("JWT_REFRESH_EXPIRES_IN", "24h")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	require.Equal(t, 24*time.Hour, cfg.Auth.RefreshTokenTTL)
}

func TestLoadClampsBcryptCost(t *testing.T) {
	t.Setenv("AUTH_BCRYPT_COST", "4")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, minBcryptCost, cfg.Auth.BcryptCost)
}

func TestValidateRequiresSecrets(t *testing.T) {
	cfg := Config{Auth: AuthConfig{
		RefreshTokenSecret: "refresh",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
	}}

	err := cfg.Validate()
	require.True(t, errors.Is(err, ErrMissingSecret))

	cfg.Auth.AccessTokenSecret = "access"
	cfg.Auth.RefreshTokenSecret = " "
	require.ErrorIs(t, cfg.Validate(), ErrMissingSecret)
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestValidateRejectsSharedSecret(t *testing.T) {
	cfg := Config{Auth: AuthConfig{
		AccessTokenSecret:  "same-secret",
		RefreshTokenSecret: "same-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
	}}

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrSharedSecret)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg.Auth.RefreshTokenSecret = "other-secret"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveTTL(t *testing.T) {
	cfg := Config{Auth: AuthConfig{
		AccessTokenSecret:  "access",
		RefreshTokenSecret: "refresh",
		RefreshTokenTTL:    time.Hour,
	}}
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "blog", SSLMode: "DISABLE"}
	require.Equal(t, "postgres://u:p@db:5433/blog?sslmode=disable", p.DSN())
}
