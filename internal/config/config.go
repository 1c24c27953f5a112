package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon configuration loaded from yaml.
type Config struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	LogLevel                 string `yaml:"log_level"`
	ReconcileIntervalSeconds int    `yaml:"reconcile_interval_seconds"`
	Probe                    Probe  `yaml:"probe"`
}

// Probe configures the reachability prober and its worker pool.
type Probe struct {
	TimeoutSeconds  int `yaml:"timeout_seconds"`
	Workers         int `yaml:"workers"`
	QueueDepth      int `yaml:"queue_depth"`
	CacheSize       int `yaml:"cache_size"`
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// DefaultConfig returns sensible defaults in case no configuration
// file is provided.
func DefaultConfig() Config {
	return Config{
		Host:                     "127.0.0.1",
		Port:                     60106,
		LogLevel:                 "info",
		ReconcileIntervalSeconds: 30,
		Probe: Probe{
			TimeoutSeconds:  5,
			Workers:         4,
			QueueDepth:      64,
			CacheSize:       512,
			CacheTTLSeconds: 2,
		},
	}
}

// Load reads configuration from a yaml file. An empty path or a
// missing file falls back to defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ReconcileIntervalSeconds <= 0 {
		return errors.New("reconcile_interval_seconds must be positive")
	}
	if c.Probe.TimeoutSeconds <= 0 {
		return errors.New("probe.timeout_seconds must be positive")
	}
	return nil
}

// ReconcileInterval converts the configured seconds to a duration.
func (c Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

// ProbeTimeout converts the configured seconds to a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// ProbeCacheTTL converts the configured seconds to a duration.
func (c Config) ProbeCacheTTL() time.Duration {
	return time.Duration(c.Probe.CacheTTLSeconds) * time.Second
}
