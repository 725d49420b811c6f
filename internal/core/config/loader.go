package config

import (
	"errors"
	"fmt"
	"net/url"
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
	return Parse(data)
}

// Parse decodes YAML content, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}

	s := &c.Scorer
	if s.TimeoutSeconds == 0 {
		s.TimeoutSeconds = 10
	}
	if s.Retry.MaxAttempts == 0 {
		s.Retry.MaxAttempts = 3
	}
	if s.Retry.InitialDelay == 0 {
		s.Retry.InitialDelay = 500 * time.Millisecond
	}
	if s.Retry.MaxDelay == 0 {
		s.Retry.MaxDelay = 5 * time.Second
	}

	b := &s.Breaker
	if b.ConsecutiveFailures == 0 {
		b.ConsecutiveFailures = 5
	}
	if b.WindowSize == 0 {
		b.WindowSize = 10
	}
	if b.MinimumCalls == 0 {
		b.MinimumCalls = b.WindowSize
	}
	if b.OpenTimeout == 0 {
		b.OpenTimeout = 30 * time.Second
	}
	if b.HalfOpenMaxCalls == 0 {
		b.HalfOpenMaxCalls = 1
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "pgx"
	}
	if c.Database.PersistTimeout == 0 {
		c.Database.PersistTimeout = 5 * time.Second
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 10 * time.Minute
	}
	if c.Redis.SummaryTTL == 0 {
		c.Redis.SummaryTTL = 24 * time.Hour
	}
	if c.Stats.Timezone == "" {
		c.Stats.Timezone = "UTC"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks invariants that defaults cannot repair.
func (c *AppConfig) Validate() error {
	if c.Scorer.BaseURL == "" {
		return errors.New("scorer.base_url is required")
	}
	if u, err := url.Parse(c.Scorer.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("scorer.base_url is not a valid URL: %q", c.Scorer.BaseURL)
	}
	if c.Scorer.TimeoutSeconds < 0 {
		return errors.New("scorer.timeout_seconds must be positive")
	}
	if c.Scorer.Retry.MaxAttempts < 1 {
		return errors.New("scorer.retry.max_attempts must be at least 1")
	}
	if c.Scorer.Retry.MaxDelay < c.Scorer.Retry.InitialDelay {
		return errors.New("scorer.retry.max_delay must not be below initial_delay")
	}
	b := c.Scorer.Breaker
	if b.ConsecutiveFailures < 1 {
		return errors.New("scorer.breaker.consecutive_failures must be at least 1")
	}
	if b.FailureRateThreshold < 0 || b.FailureRateThreshold > 1 {
		return errors.New("scorer.breaker.failure_rate_threshold must be within [0,1]")
	}
	if b.MinimumCalls > b.WindowSize {
		return errors.New("scorer.breaker.minimum_calls must not exceed window_size")
	}
	switch c.Database.Driver {
	case "pgx", "postgres", "sqlite3":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.History.Retention < 0 {
		return errors.New("history.retention must not be negative")
	}
	if _, err := time.LoadLocation(c.Stats.Timezone); err != nil {
		return fmt.Errorf("stats.timezone: %w", err)
	}
	return nil
}

// Location returns the time zone used to cut day boundaries.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Stats.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
