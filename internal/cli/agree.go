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
)

var agreeOwnKeyID string

// agreeCmd represents the key-agreement command group
var agreeCmd = &cobra.Command{
	Use:   "agree",
	Short: "Establish a shared key with another party via ECDH",
	Long: `Run the key-agreement handshake: generate an ephemeral pair and hand
its transfer blob to the other party, then derive the shared symmetric
key from their blob. Each ephemeral pair is single-use.`,
}

// agreeNewCmd generates a new ephemeral agreement pair
var agreeNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate an ephemeral agreement pair and print its transfer blob",
	RunE: func(cmd *cobra.Command, args []string) error {
		origin, err := getConfig().requireOrigin()
		if err != nil {
			return err
		}
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}
		pair, blob, err := store.GenerateKeyAgreementKeyPair(origin)
		if err != nil {
			return err
		}
		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		if getConfig().OutputFormat == "json" {
			return printer.printJSON(map[string]interface{}{
				"keyId": pair.KeyID,
				"blob":  blob,
			})
		}
		return printer.PrintValue("blob", blob)
	},
}

// agreeDeriveCmd derives the shared symmetric key from the peer's blob
var agreeDeriveCmd = &cobra.Command{
	Use:   "derive <peer-blob>",
	Short: "Derive the shared symmetric key from the other party's blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		origin, err := getConfig().requireOrigin()
		if err != nil {
			return err
		}
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}
		other, err := store.LoadOthersKeyAgreementPublicKey(args[0])
		if err != nil {
			return err
		}
		own, err := store.KeyAgreementPair(agreeOwnKeyID)
		if err != nil {
			return err
		}
		key, err := store.DeriveSymmetricKeyFromKeyAgreement(own, other, origin)
		if err != nil {
			return err
		}
		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		return printer.PrintKey("symmetric", key.Metadata)
	},
}

func init() {
	agreeDeriveCmd.Flags().StringVarP(&agreeOwnKeyID, "own-key-id", "k", "",
		"id of the own ephemeral pair generated with 'agree new'")
	_ = agreeDeriveCmd.MarkFlagRequired("own-key-id")

	agreeCmd.AddCommand(agreeNewCmd)
	agreeCmd.AddCommand(agreeDeriveCmd)
	rootCmd.AddCommand(agreeCmd)
}
