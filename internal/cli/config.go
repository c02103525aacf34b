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

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeremyhahn/go-fieldseal/internal/config"
	"github.com/jeremyhahn/go-fieldseal/pkg/keystore"
	"github.com/jeremyhahn/go-fieldseal/pkg/logging"
	"github.com/jeremyhahn/go-fieldseal/pkg/metrics"
	"github.com/jeremyhahn/go-fieldseal/pkg/storage/file"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// StoreDir overrides the configured keystore directory
	StoreDir string

	// Origin the command operates on behalf of
	Origin string

	// OutputFormat controls output formatting (json, text)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
	}
}

// load resolves the effective file configuration: the explicit config
// file when given, the default location when present, built-in defaults
// otherwise.
func (c *Config) load() (*config.Config, error) {
	if c.ConfigFile != "" {
		return config.Load(c.ConfigFile)
	}
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".fieldseal", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	return config.Default(), nil
}

// OpenStore builds the keystore over file-backed storage according to
// the effective configuration.
func (c *Config) OpenStore() (*keystore.Store, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, err
	}

	dir := cfg.Storage.Dir
	if c.StoreDir != "" {
		dir = c.StoreDir
	}

	backend, err := file.New(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore storage: %w", err)
	}

	if !cfg.Metrics.Enabled {
		metrics.Disable()
	}

	logger := logging.NewLogger(c.Verbose || cfg.Logging.Debug)
	return keystore.New(backend, keystore.WithLogger(logger))
}

// requireOrigin returns the configured origin or an error when unset.
func (c *Config) requireOrigin() (string, error) {
	if c.Origin == "" {
		return "", fmt.Errorf("--origin is required")
	}
	return c.Origin, nil
}
