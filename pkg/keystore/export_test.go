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

package keystore

import (
	"testing"

	"github.com/jeremyhahn/go-fieldseal/pkg/codec"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymmetricKeyExportImport(t *testing.T) {
	const password = "transfer password"

	t.Run("round trip across devices", func(t *testing.T) {
		source := newTestStore(t)
		target := newTestStore(t)

		key, err := source.GenerateSymmetricKey("card number", []string{testOrigin},
			types.DistributionExternal)
		require.NoError(t, err)

		blob, err := source.ExportSymmetricKey(key, password)
		require.NoError(t, err)

		imported, err := target.ImportSymmetricKey(blob, password, "card number",
			[]string{testOrigin}, types.DistributionExternal)
		require.NoError(t, err)

		// Identity is content-derived, so the same material yields the
		// same id on the other device.
		assert.Equal(t, key.KeyID, imported.KeyID)

		// Ciphertexts produced on one device open on the other.
		env, err := source.EncryptWithSymmetricKey([]byte("secret"), key, testOrigin)
		require.NoError(t, err)
		_, plaintext, err := target.DecryptWithSymmetricKey(env, testOrigin)
		require.NoError(t, err)
		assert.Equal(t, []byte("secret"), plaintext)
	})

	t.Run("wrong password", func(t *testing.T) {
		source := newTestStore(t)
		target := newTestStore(t)

		key, err := source.GenerateSymmetricKey("", nil, types.DistributionExternal)
		require.NoError(t, err)
		blob, err := source.ExportSymmetricKey(key, password)
		require.NoError(t, err)

		_, err = target.ImportSymmetricKey(blob, "wrong", "", nil,
			types.DistributionExternal)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrParameter)
		assert.Empty(t, target.SymmetricKeys())
	})

	t.Run("transient export key is never stored", func(t *testing.T) {
		source := newTestStore(t)
		key, err := source.GenerateSymmetricKey("", nil, types.DistributionExternal)
		require.NoError(t, err)

		_, err = source.ExportSymmetricKey(key, password)
		require.NoError(t, err)
		assert.Empty(t, source.PasswordKeys())
	})

	t.Run("empty password", func(t *testing.T) {
		source := newTestStore(t)
		key, err := source.GenerateSymmetricKey("", nil, types.DistributionExternal)
		require.NoError(t, err)

		_, err = source.ExportSymmetricKey(key, "")
		assert.ErrorIs(t, err, ErrParameter)
		_, err = source.ImportSymmetricKey("blob", "", "", nil, types.DistributionExternal)
		assert.ErrorIs(t, err, ErrParameter)
	})

	t.Run("nil key", func(t *testing.T) {
		source := newTestStore(t)
		_, err := source.ExportSymmetricKey(nil, password)
		assert.ErrorIs(t, err, ErrParameter)
	})

	t.Run("undecodable blob", func(t *testing.T) {
		target := newTestStore(t)
		_, err := target.ImportSymmetricKey("not base64 %%%", password, "", nil,
			types.DistributionExternal)
		assert.ErrorIs(t, err, ErrParameter)
	})
}

func TestRecipientIdentityExportImport(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		bob := newTestStore(t)
		alice := newTestStore(t)

		bobKey, err := bob.GenerateRecipientKey("Bob", []string{"*"})
		require.NoError(t, err)

		blob, err := bob.ExportRecipientPublicIdentity(bobKey)
		require.NoError(t, err)

		imported, err := alice.ImportRecipientPublicKey(blob, "Bob from work",
			[]string{testOrigin})
		require.NoError(t, err)

		assert.Equal(t, bobKey.KeyID, imported.KeyID)
		assert.Equal(t, "Bob from work", imported.ShortDescription)
		assert.Equal(t, []string{testOrigin}, imported.AllowedOrigins)
		assert.False(t, imported.HasPrivateKey())
		assert.NoError(t, validateRecipientKey(imported))

		stored, err := alice.RecipientKey(bobKey.KeyID)
		require.NoError(t, err)
		assert.Equal(t, imported.KeyID, stored.KeyID)
	})

	t.Run("export strips private keys", func(t *testing.T) {
		bob := newTestStore(t)
		bobKey, err := bob.GenerateRecipientKey("Bob", []string{"*"})
		require.NoError(t, err)

		public := bobKey.PublicIdentity()
		assert.Nil(t, public.Signing.PrivateKey)
		assert.Nil(t, public.Encryption.PrivateKey)
		assert.NotEmpty(t, public.Encryption.Signature)
	})

	t.Run("import validates the dual binding before storing", func(t *testing.T) {
		bob := newTestStore(t)
		alice := newTestStore(t)

		bobKey, err := bob.GenerateRecipientKey("Bob", []string{"*"})
		require.NoError(t, err)

		forged := bobKey.PublicIdentity()
		forged.Encryption.Signature = ""
		forgedBlob, err := codec.MarshalBase64(forged)
		require.NoError(t, err)

		_, err = alice.ImportRecipientPublicKey(forgedBlob, "Bob", []string{"*"})
		assert.ErrorIs(t, err, ErrParameter)
		assert.Empty(t, alice.RecipientKeys())
	})

	t.Run("undecodable blob", func(t *testing.T) {
		alice := newTestStore(t)
		_, err := alice.ImportRecipientPublicKey("not base64 %%%", "", nil)
		assert.ErrorIs(t, err, ErrParameter)
	})

	t.Run("nil key", func(t *testing.T) {
		bob := newTestStore(t)
		_, err := bob.ExportRecipientPublicIdentity(nil)
		assert.ErrorIs(t, err, ErrParameter)
	})
}
