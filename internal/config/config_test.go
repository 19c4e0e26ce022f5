// LinkForge - Probabilistic Record Linkage on DuckDB
// Copyright 2026 LinkForge contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/linkforge/linkforge

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to validate, got %v", err)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("Expected default database path :memory:, got %q", cfg.Database.Path)
	}
	if cfg.Blocking.OnSlow != "error" {
		t.Errorf("Expected default on_slow error, got %q", cfg.Blocking.OnSlow)
	}
	if cfg.Training.LabelColumn != "label_true" {
		t.Errorf("Expected default label column label_true, got %q", cfg.Training.LabelColumn)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"negative threads", func(c *Config) { c.Database.Threads = -1 }},
		{"unknown on_slow", func(c *Config) { c.Blocking.OnSlow = "explode" }},
		{"negative blocking max_pairs", func(c *Config) { c.Blocking.MaxPairs = -5 }},
		{"zero training max_pairs", func(c *Config) { c.Training.MaxPairs = 0 }},
		{"empty label column", func(c *Config) { c.Training.LabelColumn = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"LINKFORGE_DATABASE_PATH", "database.path"},
		{"LINKFORGE_DATABASE_MAX_MEMORY", "database.max_memory"},
		{"LINKFORGE_BLOCKING_ON_SLOW", "blocking.on_slow"},
		{"LINKFORGE_TRAINING_SEED", "training.seed"},
		{"LINKFORGE_LOGGING_LEVEL", "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := []byte("blocking:\n  on_slow: warn\ntraining:\n  max_pairs: 5000\n")
	if err := os.WriteFile(path, yamlBody, 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LINKFORGE_TRAINING_SEED", "42")
	t.Setenv("LINKFORGE_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// File overrides defaults.
	if cfg.Blocking.OnSlow != "warn" {
		t.Errorf("Expected on_slow warn from file, got %q", cfg.Blocking.OnSlow)
	}
	if cfg.Training.MaxPairs != 5000 {
		t.Errorf("Expected training max_pairs 5000 from file, got %d", cfg.Training.MaxPairs)
	}
	// Env overrides file and defaults.
	if cfg.Training.Seed != 42 {
		t.Errorf("Expected seed 42 from env, got %d", cfg.Training.Seed)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug from env, got %q", cfg.Logging.Level)
	}
	// Untouched defaults survive.
	if cfg.Database.Path != ":memory:" {
		t.Errorf("Expected default database path, got %q", cfg.Database.Path)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LINKFORGE_BLOCKING_ON_SLOW", "explode")

	if _, err := Load(); err == nil {
		t.Error("Expected Load to fail validation, got nil")
	}
}
