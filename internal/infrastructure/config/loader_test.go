package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_DefaultsWithoutFile(t *testing.T) {
	loader := NewLoaderWithPaths(t.TempDir())

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoader_ReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9191
upstream:
  coin_ids: ["bitcoin", "ethereum"]
rate_limit:
  max_requests_per_minute: 10
  min_interval: 5s
cache:
  full_update_interval: 15m
store:
  backend: redis
  redis:
    addr: redis:6379
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := NewLoaderWithPaths(dir).Load()

	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, cfg.Upstream.CoinIDs)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequestsPerMinute)
	assert.Equal(t, 5*time.Second, cfg.RateLimit.MinInterval)
	assert.Equal(t, 15*time.Minute, cfg.Cache.FullUpdateInterval)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	// lo no declarado conserva el default
	assert.Equal(t, 30*time.Minute, cfg.Cache.MemoryTTL)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("CRYPTO_PRICE_SERVER_PORT", "7070")
	t.Setenv("CRYPTO_PRICE_CACHE_MEMORY_TTL", "10m")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("COIN_IDS", " Bitcoin, solana ,,bitcoin")

	cfg, err := NewLoaderWithPaths(t.TempDir()).Load()

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Cache.MemoryTTL)
	assert.Equal(t, "cache:6380", cfg.Store.Redis.Addr)
	assert.Equal(t, []string{"bitcoin", "solana"}, cfg.Upstream.CoinIDs)
}

func TestLoader_EnvironmentOverlay(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 8181\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.production.yaml"), []byte("logging:\n  level: warn\n"), 0o600))

	cfg, err := NewLoaderWithPaths(dir).LoadForEnvironment("production")

	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoader_LogAddSourceFromEnv(t *testing.T) {
	t.Setenv("LOG_ADD_SOURCE", "true")

	cfg, err := NewLoaderWithPaths(t.TempDir()).Load()

	require.NoError(t, err)
	assert.True(t, cfg.Logging.AddSource)
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("ENVIRONMENT", "")
	assert.Equal(t, "development", GetEnvironment())

	t.Setenv("ENVIRONMENT", "Staging")
	assert.Equal(t, "staging", GetEnvironment())
}

func TestParseCoinIDs(t *testing.T) {
	assert.Equal(t, []string{"bitcoin", "ethereum"}, ParseCoinIDs("BITCOIN, ethereum,,"))
	assert.Nil(t, ParseCoinIDs(" , "))
}
