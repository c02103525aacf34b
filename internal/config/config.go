// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-fieldseal.
//
// go-fieldseal is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the fieldseal CLI configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the complete CLI configuration
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig controls where the keystore persists its state
type StorageConfig struct {
	// Dir is the directory holding the persisted keystore
	Dir string `yaml:"dir"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// MetricsConfig controls metrics collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	dir := "/var/lib/fieldseal"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".fieldseal")
	}
	return &Config{
		Storage: StorageConfig{Dir: dir},
		Logging: LoggingConfig{Debug: false},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads and parses the configuration file at path, applying
// defaults for any field left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir must not be empty")
	}
	return nil
}
