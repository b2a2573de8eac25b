package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("BILLING_WEBHOOK_SECRET", "test-webhook-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "aksjeradar", cfg.Database.Postgres.Database)
	assert.Equal(t, 30*time.Second, cfg.MarketData.PollInterval)
	assert.Contains(t, cfg.MarketData.Symbols, "EQNR.OL")
	assert.True(t, cfg.MarketData.AllowFallback)
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, "199", cfg.Billing.MonthlyNOK)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("MARKET_SYMBOLS", "EQNR.OL, DNB.OL ,")
	t.Setenv("MARKET_POLL_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_DEMO_RPS", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, []string{"EQNR.OL", "DNB.OL"}, cfg.MarketData.Symbols)
	assert.Equal(t, 10*time.Second, cfg.MarketData.PollInterval)
	assert.Equal(t, 5, cfg.RateLimit.DemoRPS)
}

func TestLoadConfig_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("BILLING_WEBHOOK_SECRET", "x")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadConfig_InvalidPollInterval(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MARKET_POLL_INTERVAL", "100ms")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARKET_POLL_INTERVAL")
}

func TestPostgresURL(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db",
		Port:     "5432",
		Database: "aksjeradar",
		User:     "app",
		Password: "hemmelig",
	}
	assert.Equal(t, "postgres://app:hemmelig@db:5432/aksjeradar?sslmode=disable", cfg.PostgresURL())
}
