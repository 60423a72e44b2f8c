package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and no file.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	r := &cfg.Resilience
	if r.Timeout == 0 {
		r.Timeout = 5 * time.Second
	}
	if r.MaxRetries == nil {
		n := 3
		r.MaxRetries = &n
	}
	if r.RetryDelay == 0 {
		r.RetryDelay = time.Second
	}
	if r.RetryMultiplier == 0 {
		r.RetryMultiplier = 2
	}
	if r.MaxRetryDelay == 0 {
		r.MaxRetryDelay = 10 * time.Second
	}

	if cfg.Batch.Size == 0 {
		cfg.Batch.Size = 50
	}
	if cfg.Batch.Delay == nil {
		d := 100 * time.Millisecond
		cfg.Batch.Delay = &d
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "bolt"
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "absenta.db"
	}
	if cfg.Cache.MemorySize == 0 {
		cfg.Cache.MemorySize = 1024
	}

	n := &cfg.Network
	if n.ProbeInterval == 0 {
		n.ProbeInterval = 10 * time.Second
	}
	if n.ProbeTimeout == 0 {
		n.ProbeTimeout = 3 * time.Second
	}
	if n.FailureThreshold == 0 {
		n.FailureThreshold = 2
	}

	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 15 * time.Second
	}
}

// Validate checks the invariants the resilience helper relies on.
func (c *AppConfig) Validate() error {
	r := c.Resilience
	if *r.MaxRetries < 0 {
		return fmt.Errorf("resilience.max_retries must be >= 0, got %d", *r.MaxRetries)
	}
	if r.RetryDelay <= 0 {
		return fmt.Errorf("resilience.retry_delay must be > 0")
	}
	if r.RetryMultiplier <= 1 {
		return fmt.Errorf("resilience.retry_multiplier must be > 1, got %v", r.RetryMultiplier)
	}
	if r.MaxRetryDelay < r.RetryDelay {
		return fmt.Errorf("resilience.max_retry_delay (%s) must be >= retry_delay (%s)",
			r.MaxRetryDelay, r.RetryDelay)
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be > 0, got %d", c.Batch.Size)
	}
	if *c.Batch.Delay < 0 {
		return fmt.Errorf("batch.delay must be >= 0")
	}
	switch c.Cache.Backend {
	case "bolt", "redis", "postgres", "memory":
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("cache.backend redis requires redis.url")
	}
	if c.Cache.Backend == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("cache.backend postgres requires database.url")
	}
	return nil
}
