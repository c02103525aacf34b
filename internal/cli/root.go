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

// Package cli implements the fieldseal command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	// Global configuration
	globalConfig *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fieldseal",
	Short: "fieldseal CLI - Field-level encryption key management tool",
	Long: `fieldseal CLI manages the keys and envelopes used to protect
individual field values: symmetric keys, password-derived keys,
recipient identities, and ECDH key agreements.

Protection modes:
  - symmetric: AES-256-GCM under a stored key
  - password:  AES-256-GCM under a PBKDF2-derived key
  - recipient: hybrid signed-ephemeral-key encryption to an identity`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Initialize global config
	globalConfig = NewConfig()

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&globalConfig.ConfigFile, "config", "",
		"config file (default is $HOME/.fieldseal/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalConfig.StoreDir, "store-dir", "",
		"directory for keystore persistence (overrides config file)")
	rootCmd.PersistentFlags().StringVar(&globalConfig.Origin, "origin", "",
		"origin the operation is performed for")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.OutputFormat, "output", "o", "text",
		"output format (json, text)")
	rootCmd.PersistentFlags().BoolVarP(&globalConfig.Verbose, "verbose", "v", false,
		"enable verbose logging")
}

// getConfig returns the global configuration
func getConfig() *Config {
	return globalConfig
}
