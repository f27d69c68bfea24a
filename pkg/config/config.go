package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Window is a [Min, Max] duration range from which a single delay is drawn
// uniformly at random. Zero-valued windows produce no delay, which is how
// tests disable pacing and backoff sleeps.
type Window struct {
	Min time.Duration `yaml:"min" json:"min"`
	Max time.Duration `yaml:"max" json:"max"`
}

// IsZero reports whether the window produces no delay.
func (w Window) IsZero() bool {
	return w.Min <= 0 && w.Max <= 0
}

// Config holds all configuration options for the Weibo crawler
type Config struct {
	// Weibo session settings
	Weibo WeiboConfig `yaml:"weibo" json:"weibo"`

	// Proxy pool configuration
	Proxy ProxyConfig `yaml:"proxy" json:"proxy"`

	// Request execution settings (timeout, retries, backoff)
	Request RequestConfig `yaml:"request" json:"request"`

	// Pacing delays applied between requests
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Image download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// WeiboConfig holds Weibo-specific session configuration
type WeiboConfig struct {
	Cookie    string `yaml:"cookie" json:"cookie"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
}

// ProxyConfig holds proxy pool configuration
type ProxyConfig struct {
	// APIURL is the dynamic proxy supply endpoint; empty disables
	// dynamic replenishment.
	APIURL string `yaml:"api_url" json:"api_url"`
	// PoolSize bounds the number of live records held by the pool.
	PoolSize int `yaml:"pool_size" json:"pool_size"`
	// DynamicTTL is the expiry applied to supply-fetched records.
	DynamicTTL time.Duration `yaml:"dynamic_ttl" json:"dynamic_ttl"`
	// FetchStrategy selects records: "random" or "round_robin".
	FetchStrategy string `yaml:"fetch_strategy" json:"fetch_strategy"`
	// Static proxies seeded into the pool at startup.
	Static []StaticProxy `yaml:"static" json:"static"`
}

// StaticProxy is a manually configured pool entry. TTL 0 never expires.
type StaticProxy struct {
	URL string        `yaml:"url" json:"url"`
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// RequestConfig holds request execution configuration
type RequestConfig struct {
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	// RateLimitBackoff is slept after a rate-limit (blocked) response.
	RateLimitBackoff Window `yaml:"rate_limit_backoff" json:"rate_limit_backoff"`
	// TransportBackoff is slept after transport and server failures.
	TransportBackoff Window `yaml:"transport_backoff" json:"transport_backoff"`
}

// PacingConfig holds the deliberate pre-request delays, unrelated to
// failure handling, that keep the request rate down.
type PacingConfig struct {
	// ListFetch is applied before paginated or list-oriented fetches.
	ListFetch Window `yaml:"list_fetch" json:"list_fetch"`
	// PageInterval is applied between successive page fetches.
	PageInterval Window `yaml:"page_interval" json:"page_interval"`
	// SessionWarmup is applied after the initial session request.
	SessionWarmup Window `yaml:"session_warmup" json:"session_warmup"`
}

// DownloadConfig holds image download configuration
type DownloadConfig struct {
	Directory           string        `yaml:"directory" json:"directory"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	// AssetInterval is applied between successive asset downloads.
	AssetInterval Window `yaml:"asset_interval" json:"asset_interval"`
	// RequestsPerMinute bounds download throughput; 0 disables.
	RequestsPerMinute int  `yaml:"requests_per_minute" json:"requests_per_minute"`
	OverwriteExisting bool `yaml:"overwrite_existing" json:"overwrite_existing"`
	SaveMetadata      bool `yaml:"save_metadata" json:"save_metadata"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Weibo: WeiboConfig{
			UserAgent: "Mozilla/5.0 (Linux; Android 13; SM-G9980) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.5615.135 Mobile Safari/537.36",
			BaseURL:   "https://m.weibo.cn",
		},
		Proxy: ProxyConfig{
			PoolSize:      10,
			DynamicTTL:    300 * time.Second,
			FetchStrategy: "random",
		},
		Request: RequestConfig{
			Timeout:          5 * time.Second,
			MaxRetries:       3,
			RateLimitBackoff: Window{Min: 4 * time.Second, Max: 7 * time.Second},
			TransportBackoff: Window{Min: 2 * time.Second, Max: 5 * time.Second},
		},
		Pacing: PacingConfig{
			ListFetch:     Window{Min: 1 * time.Second, Max: 3 * time.Second},
			PageInterval:  Window{Min: 2 * time.Second, Max: 4 * time.Second},
			SessionWarmup: Window{Min: 2 * time.Second, Max: 4 * time.Second},
		},
		Download: DownloadConfig{
			Directory:           "./weibo_images",
			ConcurrentDownloads: 1,
			Timeout:             30 * time.Second,
			AssetInterval:       Window{Min: 1 * time.Second, Max: 3 * time.Second},
			RequestsPerMinute:   60,
			SaveMetadata:        true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration overrides from environment variables.
// A .env file in the working directory is honored when present.
func (c *Config) LoadFromEnv() error {
	_ = godotenv.Load()

	if cookie := os.Getenv("WEIBOCRAWL_COOKIE"); cookie != "" {
		c.Weibo.Cookie = cookie
	}
	if ua := os.Getenv("WEIBOCRAWL_USER_AGENT"); ua != "" {
		c.Weibo.UserAgent = ua
	}
	if apiURL := os.Getenv("WEIBOCRAWL_PROXY_API_URL"); apiURL != "" {
		c.Proxy.APIURL = apiURL
	}
	if poolSize := os.Getenv("WEIBOCRAWL_PROXY_POOL_SIZE"); poolSize != "" {
		if val, err := strconv.Atoi(poolSize); err == nil && val > 0 {
			c.Proxy.PoolSize = val
		}
	}
	if strategy := os.Getenv("WEIBOCRAWL_PROXY_STRATEGY"); strategy != "" {
		c.Proxy.FetchStrategy = strategy
	}
	if ttl := os.Getenv("WEIBOCRAWL_PROXY_DYNAMIC_TTL"); ttl != "" {
		if val, err := time.ParseDuration(ttl); err == nil && val > 0 {
			c.Proxy.DynamicTTL = val
		}
	}
	if retries := os.Getenv("WEIBOCRAWL_MAX_RETRIES"); retries != "" {
		if val, err := strconv.Atoi(retries); err == nil && val >= 0 {
			c.Request.MaxRetries = val
		}
	}
	if dir := os.Getenv("WEIBOCRAWL_DOWNLOAD_DIR"); dir != "" {
		c.Download.Directory = dir
	}
	if level := os.Getenv("WEIBOCRAWL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file. An empty path checks
// the default locations and is not an error when none exists.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile looks for a config file in default locations
func (c *Config) findConfigFile() string {
	candidates := []string{
		"weibocrawl.yaml",
		"weibocrawl.yml",
		".weibocrawl.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".weibocrawl.yaml"),
			filepath.Join(home, ".config", "weibocrawl", "config.yaml"),
		)
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// SaveToFile writes the configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Proxy.PoolSize <= 0 {
		return fmt.Errorf("proxy pool_size must be positive, got %d", c.Proxy.PoolSize)
	}
	if c.Proxy.DynamicTTL <= 0 {
		return fmt.Errorf("proxy dynamic_ttl must be positive, got %v", c.Proxy.DynamicTTL)
	}
	switch c.Proxy.FetchStrategy {
	case "random", "round_robin":
	default:
		return fmt.Errorf("proxy fetch_strategy must be \"random\" or \"round_robin\", got %q", c.Proxy.FetchStrategy)
	}
	if c.Request.MaxRetries < 0 {
		return fmt.Errorf("request max_retries must be non-negative, got %d", c.Request.MaxRetries)
	}
	if c.Request.Timeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.Request.Timeout)
	}
	for _, w := range []struct {
		name   string
		window Window
	}{
		{"rate_limit_backoff", c.Request.RateLimitBackoff},
		{"transport_backoff", c.Request.TransportBackoff},
		{"list_fetch", c.Pacing.ListFetch},
		{"page_interval", c.Pacing.PageInterval},
		{"session_warmup", c.Pacing.SessionWarmup},
		{"asset_interval", c.Download.AssetInterval},
	} {
		if w.window.Min < 0 || w.window.Max < w.window.Min {
			return fmt.Errorf("window %s must satisfy 0 <= min <= max, got [%v, %v]", w.name, w.window.Min, w.window.Max)
		}
	}
	if c.Download.ConcurrentDownloads <= 0 {
		return fmt.Errorf("download concurrent_downloads must be positive, got %d", c.Download.ConcurrentDownloads)
	}
	if level := strings.ToLower(c.Logging.Level); level != "" {
		switch level {
		case "debug", "info", "warn", "warning", "error", "fatal", "disabled":
		default:
			return fmt.Errorf("unknown log level: %s", c.Logging.Level)
		}
	}
	return nil
}

// Load creates a config by layering defaults, an optional YAML file, and
// environment variables, then validating the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
