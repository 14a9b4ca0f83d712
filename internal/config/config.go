// Package config loads glacierd configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all glacierd configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// RootAccount is the coordinator identity seeded as owner and as
	// admin on every shard.
	RootAccount string `yaml:"root_account"`

	// Version is the implementation name glacierd registers and
	// activates at startup.
	Version string `yaml:"version"`

	// InitialShards is the shard count created at startup.
	InitialShards int `yaml:"initial_shards"`

	// MaxShards bounds the shard set; fan-out cost grows with it.
	MaxShards int `yaml:"max_shards"`

	// AmountBits bounds operation amounts to [0, 2^bits).
	AmountBits uint `yaml:"amount_bits"`

	// LogLevel is a zap level string: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		RootAccount:   "root",
		Version:       "v1",
		InitialShards: 3,
		MaxShards:     100,
		AmountBits:    64,
		LogLevel:      "info",
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides: GLACIER_ADDR, GLACIER_ROOT_ACCOUNT,
// GLACIER_SHARDS.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("GLACIER_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("GLACIER_ROOT_ACCOUNT"); v != "" {
		cfg.RootAccount = v
	}
	if v := os.Getenv("GLACIER_SHARDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("GLACIER_SHARDS: %w", err)
		}
		cfg.InitialShards = n
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.RootAccount == "" {
		return fmt.Errorf("root_account must not be empty")
	}
	if c.InitialShards < 0 || c.InitialShards > c.MaxShards {
		return fmt.Errorf("initial_shards %d outside [0, %d]", c.InitialShards, c.MaxShards)
	}
	if c.AmountBits == 0 || c.AmountBits > 64 {
		return fmt.Errorf("amount_bits %d outside (0, 64]", c.AmountBits)
	}
	return nil
}
