package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Proxy.PoolSize)
	assert.Equal(t, 300*time.Second, cfg.Proxy.DynamicTTL)
	assert.Equal(t, "random", cfg.Proxy.FetchStrategy)

	assert.Equal(t, 5*time.Second, cfg.Request.Timeout)
	assert.Equal(t, 3, cfg.Request.MaxRetries)
	assert.Equal(t, Window{Min: 4 * time.Second, Max: 7 * time.Second}, cfg.Request.RateLimitBackoff)
	assert.Equal(t, Window{Min: 2 * time.Second, Max: 5 * time.Second}, cfg.Request.TransportBackoff)

	assert.Equal(t, Window{Min: 1 * time.Second, Max: 3 * time.Second}, cfg.Pacing.ListFetch)
	assert.Equal(t, Window{Min: 2 * time.Second, Max: 4 * time.Second}, cfg.Pacing.PageInterval)
	assert.Equal(t, Window{Min: 1 * time.Second, Max: 3 * time.Second}, cfg.Download.AssetInterval)

	assert.NoError(t, cfg.Validate())
}

func TestWindowIsZero(t *testing.T) {
	assert.True(t, Window{}.IsZero())
	assert.False(t, Window{Min: time.Second, Max: 2 * time.Second}.IsZero())
	assert.False(t, Window{Max: time.Second}.IsZero())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
weibo:
  cookie: "SUB=abc"
proxy:
  api_url: "http://proxy-api.example.com/get"
  pool_size: 5
  fetch_strategy: round_robin
  dynamic_ttl: 2m
request:
  max_retries: 5
  timeout: 10s
download:
  directory: /tmp/images
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "SUB=abc", cfg.Weibo.Cookie)
	assert.Equal(t, "http://proxy-api.example.com/get", cfg.Proxy.APIURL)
	assert.Equal(t, 5, cfg.Proxy.PoolSize)
	assert.Equal(t, "round_robin", cfg.Proxy.FetchStrategy)
	assert.Equal(t, 2*time.Minute, cfg.Proxy.DynamicTTL)
	assert.Equal(t, 5, cfg.Request.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Request.Timeout)
	assert.Equal(t, "/tmp/images", cfg.Download.Directory)

	// Untouched values keep the defaults.
	assert.Equal(t, Window{Min: 4 * time.Second, Max: 7 * time.Second}, cfg.Request.RateLimitBackoff)
}

func TestLoadFromFileMissingExplicitPath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile("/nonexistent/config.yaml"))
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("proxy: [not a map"), 0644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WEIBOCRAWL_COOKIE", "SUB=env")
	t.Setenv("WEIBOCRAWL_PROXY_API_URL", "http://env-proxy/get")
	t.Setenv("WEIBOCRAWL_PROXY_POOL_SIZE", "7")
	t.Setenv("WEIBOCRAWL_PROXY_STRATEGY", "round_robin")
	t.Setenv("WEIBOCRAWL_MAX_RETRIES", "1")
	t.Setenv("WEIBOCRAWL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "SUB=env", cfg.Weibo.Cookie)
	assert.Equal(t, "http://env-proxy/get", cfg.Proxy.APIURL)
	assert.Equal(t, 7, cfg.Proxy.PoolSize)
	assert.Equal(t, "round_robin", cfg.Proxy.FetchStrategy)
	assert.Equal(t, 1, cfg.Request.MaxRetries)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("WEIBOCRAWL_PROXY_POOL_SIZE", "not-a-number")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, 10, cfg.Proxy.PoolSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero pool size", func(c *Config) { c.Proxy.PoolSize = 0 }},
		{"zero dynamic ttl", func(c *Config) { c.Proxy.DynamicTTL = 0 }},
		{"bad strategy", func(c *Config) { c.Proxy.FetchStrategy = "sticky" }},
		{"negative retries", func(c *Config) { c.Request.MaxRetries = -1 }},
		{"zero timeout", func(c *Config) { c.Request.Timeout = 0 }},
		{"inverted window", func(c *Config) {
			c.Request.TransportBackoff = Window{Min: 5 * time.Second, Max: 2 * time.Second}
		}},
		{"negative window", func(c *Config) {
			c.Pacing.ListFetch = Window{Min: -time.Second, Max: time.Second}
		}},
		{"zero workers", func(c *Config) { c.Download.ConcurrentDownloads = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Proxy.FetchStrategy = "round_robin"
	cfg.Proxy.Static = []StaticProxy{{URL: "http://10.0.0.1:8080", TTL: time.Minute}}
	require.NoError(t, cfg.SaveToFile(path))

	reloaded := DefaultConfig()
	require.NoError(t, reloaded.LoadFromFile(path))
	assert.Equal(t, "round_robin", reloaded.Proxy.FetchStrategy)
	require.Len(t, reloaded.Proxy.Static, 1)
	assert.Equal(t, "http://10.0.0.1:8080", reloaded.Proxy.Static[0].URL)
	assert.Equal(t, time.Minute, reloaded.Proxy.Static[0].TTL)
}
