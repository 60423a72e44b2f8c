package config

import (
	"time"

	redisclient "github.com/vietddude/absenta/internal/infra/redis"
	"github.com/vietddude/absenta/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
	Resilience ResilienceConfig   `yaml:"resilience"`
	Batch      BatchConfig        `yaml:"batch"`
	Cache      CacheConfig        `yaml:"cache"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
	Network    NetworkConfig      `yaml:"network"`
	API        APIConfig          `yaml:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ResilienceConfig holds the helper-wide retry defaults.
type ResilienceConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      *int          `yaml:"max_retries"` // nil = default (3)
	RetryDelay      time.Duration `yaml:"retry_delay"`
	RetryMultiplier float64       `yaml:"retry_multiplier"`
	MaxRetryDelay   time.Duration `yaml:"max_retry_delay"`
}

// BatchConfig holds defaults for progressive loading.
type BatchConfig struct {
	Size  int            `yaml:"size"`
	Delay *time.Duration `yaml:"delay"` // nil = default (100ms), 0 = no pause
}

// CacheConfig selects the durable tier backend.
type CacheConfig struct {
	Backend    string `yaml:"backend"` // bolt, redis, postgres, memory
	Path       string `yaml:"path"`    // bolt database file
	MemorySize int    `yaml:"memory_size"`
	// Retention prunes retry records and cached export pages older than
	// this. Zero disables pruning.
	Retention time.Duration `yaml:"retention"`
}

// NetworkConfig configures the connectivity probe.
type NetworkConfig struct {
	ProbeURL         string        `yaml:"probe_url"`
	ProbeGRPCTarget  string        `yaml:"probe_grpc_target"`
	ProbeGRPCService string        `yaml:"probe_grpc_service"`
	ProbeInterval    time.Duration `yaml:"probe_interval"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
	SaveData         bool          `yaml:"save_data"`
}

// APIConfig points at the ABSENTA REST backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}
