package config

import (
	"time"

	redisclient "github.com/vietddude/flightontime/internal/infra/redis"
	"github.com/vietddude/flightontime/internal/infra/storage/sqldb"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Scorer    ScorerConfig       `yaml:"scorer"`
	Database  sqldb.Config       `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Reference ReferenceConfig    `yaml:"reference"`
	Stats     StatsConfig        `yaml:"stats"`
	History   HistoryConfig      `yaml:"history"`
	Logging   LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP and gRPC listener settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 disables the gRPC health server
}

// ScorerConfig holds the remote ML scorer endpoint and its resilience settings.
type ScorerConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Retry          RetryConfig   `yaml:"retry"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// Timeout returns the per-attempt timeout.
func (s ScorerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// RetryConfig defines retry behavior for scorer calls.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// BreakerConfig defines circuit breaker thresholds.
type BreakerConfig struct {
	ConsecutiveFailures  int           `yaml:"consecutive_failures"`
	FailureRateThreshold float64       `yaml:"failure_rate_threshold"` // 0 disables the rate rule
	WindowSize           int           `yaml:"window_size"`
	MinimumCalls         int           `yaml:"minimum_calls"`
	OpenTimeout          time.Duration `yaml:"open_timeout"`
	HalfOpenMaxCalls     int           `yaml:"half_open_max_calls"`
}

// ReferenceConfig points at optional airline/airport data overriding the embedded set.
type ReferenceConfig struct {
	Path string `yaml:"path"`
}

// StatsConfig holds aggregation settings.
type StatsConfig struct {
	Timezone string `yaml:"timezone"`
}

// HistoryConfig holds prediction history settings.
type HistoryConfig struct {
	Retention time.Duration `yaml:"retention"` // 0 keeps history forever
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
