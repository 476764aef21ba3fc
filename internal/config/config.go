// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScraperConfig governs the engine's admission and batch behavior.
type ScraperConfig struct {
	MaxConcurrent       int      `mapstructure:"max_concurrent"`
	BatchTimeoutSeconds int      `mapstructure:"batch_timeout_seconds"`
	EnabledSources      []string `mapstructure:"enabled_sources"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
	RetryBaseMs    int `mapstructure:"retry_base_ms"`
	RetryMaxMs     int `mapstructure:"retry_max_ms"`
}

// RateLimitConfig sets the default bucket shape for domains without a preset.
type RateLimitConfig struct {
	DefaultRPS   float64 `mapstructure:"default_rps"`
	DefaultBurst float64 `mapstructure:"default_burst"`
	Jitter       float64 `mapstructure:"jitter"`
	Adaptive     bool    `mapstructure:"adaptive"`
}

// FetchConfig controls the response cache.
type FetchConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKSCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.max_concurrent", 10)
	v.SetDefault("scraper.batch_timeout_seconds", 0)
	v.SetDefault("scraper.enabled_sources", []string{})
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.retry_base_ms", 1000)
	v.SetDefault("http.retry_max_ms", 60000)
	v.SetDefault("ratelimit.default_rps", 1.0)
	v.SetDefault("ratelimit.default_burst", 1.0)
	v.SetDefault("ratelimit.jitter", 0.1)
	v.SetDefault("ratelimit.adaptive", true)
	v.SetDefault("fetch.cache_size", 256)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.MaxConcurrent <= 0 {
		return fmt.Errorf("scraper.max_concurrent must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 1 {
		return fmt.Errorf("http.max_retries must be >= 1")
	}
	if c.RateLimit.DefaultRPS <= 0 {
		return fmt.Errorf("ratelimit.default_rps must be > 0")
	}
	if c.RateLimit.DefaultBurst < 1 {
		return fmt.Errorf("ratelimit.default_burst must be >= 1")
	}
	if c.RateLimit.Jitter < 0 || c.RateLimit.Jitter > 1 {
		return fmt.Errorf("ratelimit.jitter must be in [0, 1]")
	}
	if c.Fetch.CacheSize < 0 {
		return fmt.Errorf("fetch.cache_size must be >= 0")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryBaseDelay converts the initial backoff into a duration.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.HTTP.RetryBaseMs) * time.Millisecond
}

// RetryMaxDelay converts the backoff ceiling into a duration.
func (c Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.HTTP.RetryMaxMs) * time.Millisecond
}

// BatchTimeout converts the batch deadline into a duration; zero disables it.
func (c Config) BatchTimeout() time.Duration {
	return time.Duration(c.Scraper.BatchTimeoutSeconds) * time.Second
}
