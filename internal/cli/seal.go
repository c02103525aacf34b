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
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-fieldseal/pkg/envelope"
)

var (
	sealKeyID    string
	sealPassword string
	sealMode     string
)

// encryptCmd seals a value read from stdin into an envelope
var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a value from stdin into an envelope",
	Long: `Encrypt a value read from stdin under a stored key and print the
resulting envelope. The protection mode selects the scheme: symmetric
and password use a stored key by id; recipient encrypts to a stored
recipient identity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		origin, err := getConfig().requireOrigin()
		if err != nil {
			return err
		}
		plaintext, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}
		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)

		switch sealMode {
		case "symmetric":
			key, err := store.SymmetricKey(sealKeyID)
			if err != nil {
				return err
			}
			env, err := store.EncryptWithSymmetricKey(plaintext, key, origin)
			if err != nil {
				return err
			}
			wire, err := env.Marshal()
			if err != nil {
				return err
			}
			return printer.PrintValue("envelope", wire)

		case "password":
			key, err := store.PasswordKey(sealKeyID)
			if err != nil {
				return err
			}
			env, err := store.EncryptWithPasswordKey(plaintext, key, origin)
			if err != nil {
				return err
			}
			wire, err := env.Marshal()
			if err != nil {
				return err
			}
			return printer.PrintValue("envelope", wire)

		case "recipient":
			recipient, err := store.RecipientKey(sealKeyID)
			if err != nil {
				return err
			}
			_, env, err := store.EncryptWithRecipientKey(plaintext, recipient, origin)
			if err != nil {
				return err
			}
			wire, err := env.Marshal()
			if err != nil {
				return err
			}
			return printer.PrintValue("envelope", wire)

		default:
			return fmt.Errorf("unknown protection mode: %s", sealMode)
		}
	},
}

// decryptCmd opens an envelope read from stdin
var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt an envelope from stdin",
	Long: `Decrypt an envelope read from stdin and print the plaintext. The
protection mode selects how the envelope is interpreted; password mode
accepts a password for keys not yet stored locally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		origin, err := getConfig().requireOrigin()
		if err != nil {
			return err
		}
		wire, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		store, err := getConfig().OpenStore()
		if err != nil {
			return err
		}

		var plaintext []byte
		switch sealMode {
		case "symmetric":
			env, err := envelope.ParseSymmetric(string(wire))
			if err != nil {
				return err
			}
			_, plaintext, err = store.DecryptWithSymmetricKey(env, origin)
			if err != nil {
				return err
			}

		case "password":
			env, err := envelope.ParsePassword(string(wire))
			if err != nil {
				return err
			}
			_, plaintext, err = store.DecryptWithPasswordKey(env, origin, sealPassword)
			if err != nil {
				return err
			}

		case "recipient":
			env, err := envelope.ParseRecipient(string(wire))
			if err != nil {
				return err
			}
			_, _, plaintext, err = store.DecryptWithRecipientKey(env, origin, sealKeyID)
			if err != nil {
				return err
			}

		default:
			return fmt.Errorf("unknown protection mode: %s", sealMode)
		}

		_, err = os.Stdout.Write(plaintext)
		return err
	},
}

func init() {
	encryptCmd.Flags().StringVar(&sealMode, "mode", "symmetric",
		"protection mode (symmetric, password, recipient)")
	encryptCmd.Flags().StringVarP(&sealKeyID, "key-id", "k", "",
		"id of the stored key or recipient identity")
	decryptCmd.Flags().StringVar(&sealMode, "mode", "symmetric",
		"protection mode (symmetric, password, recipient)")
	decryptCmd.Flags().StringVarP(&sealKeyID, "key-id", "k", "",
		"expected recipient key id (recipient mode)")
	decryptCmd.Flags().StringVarP(&sealPassword, "password", "p", "",
		"password for re-deriving the key (password mode)")

	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
}
