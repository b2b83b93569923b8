package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Fetch   FetchConfig
	Logging LogConfig
	Metrics MetricsConfig
}

// FetchConfig holds engine defaults.
type FetchConfig struct {
	UserAgent    string        `envconfig:"FETCH_USER_AGENT" default:"toolfetch/1.0"`
	Timeout      time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	RateLimitRPS float64       `envconfig:"FETCH_RATE_LIMIT_RPS" default:"0"`
	RateBurst    int           `envconfig:"FETCH_RATE_BURST" default:"1"`
	Compression  bool          `envconfig:"FETCH_COMPRESSION" default:"true"`
	Proxy        string        `envconfig:"FETCH_PROXY"`

	// Consecutive host failures before fetches to it are refused; 0 disables.
	BreakerThreshold int           `envconfig:"FETCH_BREAKER_THRESHOLD" default:"3"`
	BreakerCooldown  time.Duration `envconfig:"FETCH_BREAKER_COOLDOWN" default:"30s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"warn"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"false"`
	File    string `envconfig:"METRICS_FILE" default:"toolfetch.prom"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Fetch: FetchConfig{
			UserAgent:   "toolfetch/1.0",
			Timeout:     30 * time.Second,
			RateBurst:   1,
			Compression: true,

			BreakerThreshold: 3,
			BreakerCooldown:  30 * time.Second,
		},
		Logging: LogConfig{
			Level: "warn",
		},
		Metrics: MetricsConfig{
			File: "toolfetch.prom",
		},
	}
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	var errs []error
	if c.Fetch.Timeout < 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT must not be negative, got %s", c.Fetch.Timeout))
	}
	if c.Fetch.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("FETCH_RATE_LIMIT_RPS must not be negative, got %g", c.Fetch.RateLimitRPS))
	}
	if c.Fetch.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("FETCH_RATE_BURST must not be negative, got %d", c.Fetch.RateBurst))
	}
	if c.Fetch.BreakerThreshold < 0 {
		errs = append(errs, fmt.Errorf("FETCH_BREAKER_THRESHOLD must not be negative, got %d", c.Fetch.BreakerThreshold))
	}
	if _, err := c.Fetch.ProxyURL(); err != nil {
		errs = append(errs, err)
	}
	if c.Metrics.Enabled && c.Metrics.File == "" {
		errs = append(errs, errors.New("METRICS_FILE is required when METRICS_ENABLED is set"))
	}
	return errors.Join(errs...)
}

// ProxyURL parses Proxy. It returns nil when no proxy is configured.
func (f FetchConfig) ProxyURL() (*url.URL, error) {
	if f.Proxy == "" {
		return nil, nil
	}
	u, err := url.Parse(f.Proxy)
	if err != nil {
		return nil, fmt.Errorf("FETCH_PROXY: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("FETCH_PROXY must be an absolute URL, got %q", f.Proxy)
	}
	return u, nil
}
