// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

// Package config provides layered configuration for LinkForge using Koanf v2.
//
// Configuration is loaded from three sources, highest priority last:
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or LINKFORGE_CONFIG path)
//  3. Environment variables prefixed with LINKFORGE_
//
// Environment variable names map to nested keys by section:
// LINKFORGE_DATABASE_MAX_MEMORY -> database.max_memory.
package config

import (
	"fmt"
)

// Config is the root configuration for the linkage engine and CLI.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Blocking BlockingConfig `koanf:"blocking"`
	Training TrainingConfig `koanf:"training"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DatabaseConfig controls the embedded DuckDB engine.
type DatabaseConfig struct {
	// Path is the database location. ":memory:" runs fully in-memory.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads sets DuckDB's thread count. 0 means use all CPUs.
	Threads int `koanf:"threads"`
}

// BlockingConfig controls candidate-pair generation.
type BlockingConfig struct {
	// OnSlow is the policy when a join condition cannot use an equality
	// key and degrades to a cross product: "ignore", "warn" or "error".
	OnSlow string `koanf:"on_slow"`

	// MaxPairs bounds sampling-based blocking.
	MaxPairs int64 `koanf:"max_pairs"`

	// WarnProductSize is the pair-product size above which a warning is
	// emitted before sampling. 0 keeps the built-in threshold.
	WarnProductSize int64 `koanf:"warn_product_size"`
}

// TrainingConfig controls Fellegi-Sunter weight estimation.
type TrainingConfig struct {
	// MaxPairs bounds the number of pairs sampled per estimation pass.
	// Larger values give more accurate m/u estimates but run longer.
	MaxPairs int64 `koanf:"max_pairs"`

	// Seed makes sampling reproducible. 0 means unseeded.
	Seed uint64 `koanf:"seed"`

	// LabelColumn is the ground-truth entity-label column used for
	// m-estimation from labeled data.
	LabelColumn string `koanf:"label_column"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      ":memory:",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Blocking: BlockingConfig{
			OnSlow:          "error",
			MaxPairs:        1_000_000,
			WarnProductSize: 0,
		},
		Training: TrainingConfig{
			MaxPairs:    1_000_000,
			Seed:        0,
			LabelColumn: "label_true",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty (use \":memory:\" for in-memory)")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must be >= 0, got %d", c.Database.Threads)
	}
	switch c.Blocking.OnSlow {
	case "ignore", "warn", "error":
	default:
		return fmt.Errorf("blocking.on_slow must be one of ignore, warn, error; got %q", c.Blocking.OnSlow)
	}
	if c.Blocking.MaxPairs < 0 {
		return fmt.Errorf("blocking.max_pairs must be >= 0, got %d", c.Blocking.MaxPairs)
	}
	if c.Blocking.WarnProductSize < 0 {
		return fmt.Errorf("blocking.warn_product_size must be >= 0, got %d", c.Blocking.WarnProductSize)
	}
	if c.Training.MaxPairs <= 0 {
		return fmt.Errorf("training.max_pairs must be > 0, got %d", c.Training.MaxPairs)
	}
	if c.Training.LabelColumn == "" {
		return fmt.Errorf("training.label_column must not be empty")
	}
	return c.validateLogging()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("logging.level %q is not a recognized level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
