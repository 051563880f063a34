package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config tunes the engine. Everything has a default so a missing config
// file still yields a runnable server.
type Config struct {
	Arena struct {
		StaleAfter      time.Duration `yaml:"stale_after"`
		SkewToleranceMs int64         `yaml:"skew_tolerance_ms"`
		ArchiveTimeout  time.Duration `yaml:"archive_timeout"`
		PruneInterval   time.Duration `yaml:"prune_interval"`
	} `yaml:"arena"`

	Archive struct {
		Driver string `yaml:"driver"` // "postgres" or "memory"
	} `yaml:"archive"`

	Relay struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"relay"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Arena.StaleAfter = 30 * time.Minute
	cfg.Arena.SkewToleranceMs = 2000
	cfg.Arena.ArchiveTimeout = 5 * time.Second
	cfg.Arena.PruneInterval = time.Minute
	cfg.Archive.Driver = "memory"
	cfg.Relay.URL = "nats://localhost:4222"
	return &cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
