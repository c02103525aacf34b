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

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-fieldseal/pkg/keystore"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

var (
	keyDescription string
	keyOrigins     []string
	keyDistMode    string
	keyPassword    string
	keyKind        string
)

// keyCmd represents the key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage stored keys",
	Long:  `Generate, list, delete, export, and import stored keys`,
}

// keyGenerateCmd generates a new stored key
var keyGenerateCmd = &cobra.Command{
	Use:   "generate <symmetric|password|recipient>",
	Short: "Generate a new key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}
		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)

		switch args[0] {
		case "symmetric":
			key, err := store.GenerateSymmetricKey(keyDescription, keyOrigins,
				types.DistributionMode(keyDistMode))
			if err != nil {
				return err
			}
			return printer.PrintKey("symmetric", key.Metadata)

		case "password":
			if keyPassword == "" {
				return fmt.Errorf("--password is required")
			}
			key, err := store.GeneratePasswordKey(keyDescription, keyPassword, keyOrigins)
			if err != nil {
				return err
			}
			return printer.PrintKey("password", key.Metadata)

		case "recipient":
			key, err := store.GenerateRecipientKey(keyDescription, keyOrigins)
			if err != nil {
				return err
			}
			return printer.PrintKey("recipient", key.Metadata)

		default:
			return fmt.Errorf("unknown key kind: %s", args[0])
		}
	},
}

// keyListCmd lists all stored keys
var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}
		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		return printer.PrintKeyList(store.SymmetricKeys(), store.PasswordKeys(),
			store.RecipientKeys(), store.KeyAgreementPairs())
	},
}

// keyDeleteCmd deletes a stored key
var keyDeleteCmd = &cobra.Command{
	Use:   "delete <key-id>",
	Short: "Delete a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}
		if err := store.DeleteKey(keystore.KeyKind(keyKind), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s key %s\n", keyKind, args[0])
		return nil
	},
}

// keyExportCmd exports a symmetric key for cross-device transfer
var keyExportCmd = &cobra.Command{
	Use:   "export <key-id>",
	Short: "Export a symmetric key protected by a password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if keyPassword == "" {
			return fmt.Errorf("--password is required")
		}
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}
		key, err := store.SymmetricKey(args[0])
		if err != nil {
			return err
		}
		blob, err := store.ExportSymmetricKey(key, keyPassword)
		if err != nil {
			return err
		}
		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		return printer.PrintValue("blob", blob)
	},
}

// keyImportCmd imports a symmetric key exported on another device
var keyImportCmd = &cobra.Command{
	Use:   "import <blob>",
	Short: "Import a password-protected symmetric key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if keyPassword == "" {
			return fmt.Errorf("--password is required")
		}
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}
		key, err := store.ImportSymmetricKey(args[0], keyPassword, keyDescription,
			keyOrigins, types.DistributionMode(keyDistMode))
		if err != nil {
			return err
		}
		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		return printer.PrintKey("symmetric", key.Metadata)
	},
}

func init() {
	keyCmd.PersistentFlags().StringVarP(&keyDescription, "description", "d", "",
		"short description for the key")
	keyCmd.PersistentFlags().StringSliceVar(&keyOrigins, "origins", []string{types.OriginWildcard},
		"origins the key may be used on (* for any)")
	keyCmd.PersistentFlags().StringVar(&keyDistMode, "distribution", string(types.DistributionUserOnly),
		"distribution mode for symmetric keys (user-only, external, key-agreement)")
	keyCmd.PersistentFlags().StringVarP(&keyPassword, "password", "p", "",
		"password for password-derived keys and exports")
	keyDeleteCmd.Flags().StringVar(&keyKind, "kind", string(keystore.KindSymmetric),
		"key kind (symmetric, password, recipient, key-agreement)")

	keyCmd.AddCommand(keyGenerateCmd)
	keyCmd.AddCommand(keyListCmd)
	keyCmd.AddCommand(keyDeleteCmd)
	keyCmd.AddCommand(keyExportCmd)
	keyCmd.AddCommand(keyImportCmd)
	rootCmd.AddCommand(keyCmd)
}
