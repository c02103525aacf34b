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

//go:build integration

package protocol_test

import (
	"testing"

	"github.com/jeremyhahn/go-fieldseal/pkg/field"
	"github.com/jeremyhahn/go-fieldseal/pkg/keystore"
	"github.com/jeremyhahn/go-fieldseal/pkg/storage/file"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "https://bank.example"

func newFileStore(t *testing.T) *keystore.Store {
	t.Helper()
	backend, err := file.New(t.TempDir())
	require.NoError(t, err)
	store, err := keystore.New(backend)
	require.NoError(t, err)
	return store
}

// TestProtocolIntegration_SymmetricFieldLifecycle runs the full field
// lifecycle over file storage: generate, seal, reopen after restart.
func TestProtocolIntegration_SymmetricFieldLifecycle(t *testing.T) {
	dir := t.TempDir()

	backend, err := file.New(dir)
	require.NoError(t, err)
	store, err := keystore.New(backend)
	require.NoError(t, err)

	key, err := store.GenerateSymmetricKey("Card number", []string{origin},
		types.DistributionUserOnly)
	require.NoError(t, err)

	f := field.New(origin, field.Options{ProtectionMode: types.ProtectionSymmetric})
	wire, err := f.EncryptNewValue(store, []byte("4111 1111 1111 1111"), key)
	require.NoError(t, err)

	// A fresh store over the same directory must open the envelope.
	backend2, err := file.New(dir)
	require.NoError(t, err)
	restarted, err := keystore.New(backend2)
	require.NoError(t, err)

	f2 := field.New(origin, field.Options{ProtectionMode: types.ProtectionSymmetric})
	require.NoError(t, f2.SetCiphertextValue(wire))
	plaintext, err := f2.DecryptCurrentValue(restarted, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("4111 1111 1111 1111"), plaintext)
}

// TestProtocolIntegration_RecipientExchange runs the two-party recipient
// flow across separate stores, each with its own storage directory.
func TestProtocolIntegration_RecipientExchange(t *testing.T) {
	alice := newFileStore(t)
	bob := newFileStore(t)

	bobKey, err := bob.GenerateRecipientKey("Bob", []string{"*"})
	require.NoError(t, err)
	blob, err := bob.ExportRecipientPublicIdentity(bobKey)
	require.NoError(t, err)
	bobPublic, err := alice.ImportRecipientPublicKey(blob, "Bob", []string{"*"})
	require.NoError(t, err)

	sender, env, err := alice.EncryptWithRecipientKey([]byte("wire details"), bobPublic, origin)
	require.NoError(t, err)

	senderKeyID, _, plaintext, err := bob.DecryptWithRecipientKey(env, origin, "")
	require.NoError(t, err)
	assert.Equal(t, sender.KeyID, senderKeyID)
	assert.Equal(t, []byte("wire details"), plaintext)
}

// TestProtocolIntegration_KeyAgreement runs the ECDH handshake across
// separate stores and verifies both sides converge on the same key.
func TestProtocolIntegration_KeyAgreement(t *testing.T) {
	alice := newFileStore(t)
	bob := newFileStore(t)

	alicePair, aliceBlob, err := alice.GenerateKeyAgreementKeyPair(origin)
	require.NoError(t, err)
	bobPair, bobBlob, err := bob.GenerateKeyAgreementKeyPair(origin)
	require.NoError(t, err)

	bobPublic, err := alice.LoadOthersKeyAgreementPublicKey(bobBlob)
	require.NoError(t, err)
	alicePublic, err := bob.LoadOthersKeyAgreementPublicKey(aliceBlob)
	require.NoError(t, err)

	aliceKey, err := alice.DeriveSymmetricKeyFromKeyAgreement(alicePair, bobPublic, origin)
	require.NoError(t, err)
	bobKey, err := bob.DeriveSymmetricKeyFromKeyAgreement(bobPair, alicePublic, origin)
	require.NoError(t, err)
	assert.Equal(t, aliceKey.KeyID, bobKey.KeyID)

	env, err := alice.EncryptWithSymmetricKey([]byte("shared"), aliceKey, origin)
	require.NoError(t, err)
	_, plaintext, err := bob.DecryptWithSymmetricKey(env, origin)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), plaintext)
}

// TestProtocolIntegration_PasswordAcrossDevices seals under a password
// key on one device and opens by password alone on another.
func TestProtocolIntegration_PasswordAcrossDevices(t *testing.T) {
	const password = "correct horse battery staple"

	deviceA := newFileStore(t)
	deviceB := newFileStore(t)

	key, err := deviceA.GeneratePasswordKey("Vault", password, []string{origin})
	require.NoError(t, err)
	env, err := deviceA.EncryptWithPasswordKey([]byte("seed phrase"), key, origin)
	require.NoError(t, err)

	decKey, plaintext, err := deviceB.DecryptWithPasswordKey(env, origin, password)
	require.NoError(t, err)
	assert.Equal(t, key.KeyID, decKey.KeyID)
	assert.Equal(t, []byte("seed phrase"), plaintext)
}
