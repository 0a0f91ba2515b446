package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "movies.sqlite", cfg.Database.Path)
	assert.Equal(t, "cineniche-catalog-api", cfg.JWT.Issuer)
	assert.Equal(t, "cineniche-web", cfg.JWT.Audience)
	assert.Equal(t, 3*time.Hour, cfg.JWT.TokenTTL)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.RateLimit.AuthRPS)
	assert.Contains(t, cfg.RateLimit.ExemptPaths, "/healthz")
}

func TestLoadAppliesDevSecretOnlyInDevelopment(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, devJWTSecret, cfg.JWT.Secret)
}

func TestLoadRejectsMissingSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("SERVER_ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestLoadAcceptsExplicitSecretInProduction(t *testing.T) {
	t.Setenv("SERVER_ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "super-secret-value")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "super-secret-value", cfg.JWT.Secret)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}

func TestLoadRejectsInvalidTokenTTL(t *testing.T) {
	t.Setenv("JWT_TOKEN_TTL", "-1h")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token TTL")
}

func TestLoadRejectsInvalidSampleRate(t *testing.T) {
	t.Setenv("OBSERVABILITY_SAMPLE_RATE", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tracing sample rate")
}
