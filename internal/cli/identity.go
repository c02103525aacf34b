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
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

var (
	identityDescription string
	identityOrigins     []string
)

// identityCmd represents the recipient identity command group
var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage recipient identities",
	Long: `Show the sender identity for an origin, export a recipient identity
for handing to another party, and import identities received from others.`,
}

// identityShowCmd prints the per-origin sender identity
var identityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the sender identity for the origin",
	RunE: func(cmd *cobra.Command, args []string) error {
		origin, err := getConfig().requireOrigin()
		if err != nil {
			return err
		}
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}
		pair, err := store.PerOriginKeyPair(origin)
		if err != nil {
			return err
		}
		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		return printer.PrintKey("per-origin", pair.Metadata)
	},
}

// identityExportCmd exports a recipient identity's public half
var identityExportCmd = &cobra.Command{
	Use:   "export <key-id>",
	Short: "Export a recipient identity with private keys stripped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}
		key, err := store.RecipientKey(args[0])
		if err != nil {
			return err
		}
		blob, err := store.ExportRecipientPublicIdentity(key)
		if err != nil {
			return err
		}
		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		return printer.PrintValue("blob", blob)
	},
}

// identityImportCmd imports another party's exported identity
var identityImportCmd = &cobra.Command{
	Use:   "import <blob>",
	Short: "Import another party's recipient identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}
		key, err := store.ImportRecipientPublicKey(args[0], identityDescription, identityOrigins)
		if err != nil {
			return err
		}
		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		return printer.PrintKey("recipient (public only)", key.Metadata)
	},
}

func init() {
	identityImportCmd.Flags().StringVarP(&identityDescription, "description", "d", "",
		"short description for the imported identity")
	identityImportCmd.Flags().StringSliceVar(&identityOrigins, "origins",
		[]string{types.OriginWildcard}, "origins the identity may be used on (* for any)")

	identityCmd.AddCommand(identityShowCmd)
	identityCmd.AddCommand(identityExportCmd)
	identityCmd.AddCommand(identityImportCmd)
	rootCmd.AddCommand(identityCmd)
}
