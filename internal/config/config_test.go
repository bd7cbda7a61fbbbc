package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/blockmarket")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ENCRYPTION_SECRET", "enc")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.EthgasTimeout)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
	assert.Equal(t, 5*time.Minute, cfg.MarketCacheTTL)
	assert.Equal(t, 4, cfg.SyncConcurrency)
	assert.Equal(t, 2, cfg.TradingAccountType)
	assert.False(t, cfg.Development())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_INTERVAL", "0")
	t.Setenv("ETHGAS_TIMEOUT", "5s")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.SyncInterval)
	assert.Equal(t, 5*time.Second, cfg.EthgasTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.Development())
}

func TestLoadValidation(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("SYNC_CONCURRENCY", "many")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "JWT_SECRET")
	assert.ErrorContains(t, err, "SYNC_CONCURRENCY")
}
