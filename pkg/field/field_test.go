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

package field

import (
	"testing"

	"github.com/jeremyhahn/go-fieldseal/pkg/envelope"
	"github.com/jeremyhahn/go-fieldseal/pkg/keystore"
	"github.com/jeremyhahn/go-fieldseal/pkg/storage"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "https://bank.example"

func newTestStore(t *testing.T) *keystore.Store {
	t.Helper()
	s, err := keystore.New(storage.NewMemory())
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})

	assert.NotEmpty(t, f.FieldID)
	assert.Equal(t, testOrigin, f.Origin)
	assert.Equal(t, UpdateAutomatic, f.Options.UpdateMode)
	assert.Empty(t, f.CurrentValue())

	t.Run("field ids are unique", func(t *testing.T) {
		other := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})
		assert.NotEqual(t, f.FieldID, other.FieldID)
	})
}

func TestEncryptNewValue(t *testing.T) {
	store := newTestStore(t)

	t.Run("symmetric mode", func(t *testing.T) {
		key, err := store.GenerateSymmetricKey("", []string{testOrigin},
			types.DistributionUserOnly)
		require.NoError(t, err)

		f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})
		wire, err := f.EncryptNewValue(store, []byte("4111 1111 1111 1111"), key)
		require.NoError(t, err)
		assert.Equal(t, wire, f.CurrentValue())

		env, err := envelope.ParseSymmetric(wire)
		require.NoError(t, err)
		assert.Equal(t, key.KeyID, env.KeyID)
	})

	t.Run("password mode", func(t *testing.T) {
		key, err := store.GeneratePasswordKey("", "hunter2", []string{testOrigin})
		require.NoError(t, err)

		f := New(testOrigin, Options{ProtectionMode: types.ProtectionPassword})
		wire, err := f.EncryptNewValue(store, []byte("secret"), key)
		require.NoError(t, err)

		env, err := envelope.ParsePassword(wire)
		require.NoError(t, err)
		assert.Equal(t, key.Salt, env.Salt)
	})

	t.Run("recipient mode records own key id", func(t *testing.T) {
		recipient, err := store.GenerateRecipientKey("Bob", []string{"*"})
		require.NoError(t, err)

		f := New(testOrigin, Options{ProtectionMode: types.ProtectionRecipient})
		wire, err := f.EncryptNewValue(store, []byte("for bob"), recipient)
		require.NoError(t, err)

		env, err := envelope.ParseRecipient(wire)
		require.NoError(t, err)
		assert.Equal(t, recipient.KeyID, env.RecipientKeyID)
		assert.Equal(t, env.SenderKeyID, f.OwnPublicKeyID())
	})

	t.Run("key type must match the mode", func(t *testing.T) {
		key, err := store.GeneratePasswordKey("", "hunter2", []string{testOrigin})
		require.NoError(t, err)

		f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})
		_, err = f.EncryptNewValue(store, []byte("v"), key)
		assert.ErrorIs(t, err, keystore.ErrParameter)
	})

	t.Run("unknown protection mode", func(t *testing.T) {
		f := New(testOrigin, Options{ProtectionMode: types.ProtectionMode("bogus")})
		_, err := f.EncryptNewValue(store, []byte("v"), nil)
		assert.ErrorIs(t, err, keystore.ErrParameter)
	})
}

func TestPropagation(t *testing.T) {
	store := newTestStore(t)
	key, err := store.GenerateSymmetricKey("", []string{testOrigin},
		types.DistributionUserOnly)
	require.NoError(t, err)

	t.Run("automatic mode propagates on encrypt", func(t *testing.T) {
		f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})
		var gotFieldID, gotValue string
		f.OnPropagate(func(fieldID, value string) {
			gotFieldID = fieldID
			gotValue = value
		})

		wire, err := f.EncryptNewValue(store, []byte("v"), key)
		require.NoError(t, err)
		assert.Equal(t, f.FieldID, gotFieldID)
		assert.Equal(t, wire, gotValue)
	})

	t.Run("manual mode holds until requested", func(t *testing.T) {
		f := New(testOrigin, Options{
			ProtectionMode: types.ProtectionSymmetric,
			UpdateMode:     UpdateManual,
		})
		calls := 0
		f.OnPropagate(func(fieldID, value string) { calls++ })

		_, err := f.EncryptNewValue(store, []byte("v"), key)
		require.NoError(t, err)
		assert.Zero(t, calls)

		f.PropagateNewValue()
		assert.Equal(t, 1, calls)
	})

	t.Run("no callback is a no-op", func(t *testing.T) {
		f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})
		_, err := f.EncryptNewValue(store, []byte("v"), key)
		require.NoError(t, err)
		f.PropagateNewValue()
	})

	t.Run("no value is a no-op", func(t *testing.T) {
		f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})
		calls := 0
		f.OnPropagate(func(fieldID, value string) { calls++ })
		f.PropagateNewValue()
		assert.Zero(t, calls)
	})
}

func TestSetCiphertextValue(t *testing.T) {
	store := newTestStore(t)
	key, err := store.GenerateSymmetricKey("", []string{testOrigin},
		types.DistributionUserOnly)
	require.NoError(t, err)

	env, err := store.EncryptWithSymmetricKey([]byte("inbound"), key, testOrigin)
	require.NoError(t, err)
	wire, err := env.Marshal()
	require.NoError(t, err)

	t.Run("accepts a well-formed envelope", func(t *testing.T) {
		f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})
		require.NoError(t, f.SetCiphertextValue(wire))
		assert.Equal(t, wire, f.CurrentValue())
	})

	t.Run("propagates in automatic mode", func(t *testing.T) {
		f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})
		calls := 0
		f.OnPropagate(func(fieldID, value string) { calls++ })
		require.NoError(t, f.SetCiphertextValue(wire))
		assert.Equal(t, 1, calls)
	})

	t.Run("read-only fields reject inbound changes", func(t *testing.T) {
		f := New(testOrigin, Options{
			ProtectionMode: types.ProtectionSymmetric,
			ReadOnly:       true,
		})
		err := f.SetCiphertextValue(wire)
		assert.ErrorIs(t, err, ErrReadOnly)
		assert.Empty(t, f.CurrentValue())
	})

	t.Run("envelope shape must match the mode", func(t *testing.T) {
		f := New(testOrigin, Options{ProtectionMode: types.ProtectionPassword})
		err := f.SetCiphertextValue(wire)
		assert.ErrorIs(t, err, keystore.ErrParameter)
		assert.Empty(t, f.CurrentValue())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})
		err := f.SetCiphertextValue("not an envelope")
		assert.ErrorIs(t, err, keystore.ErrParameter)
	})
}

func TestDecryptCurrentValue(t *testing.T) {
	store := newTestStore(t)

	t.Run("symmetric round trip", func(t *testing.T) {
		key, err := store.GenerateSymmetricKey("", []string{testOrigin},
			types.DistributionUserOnly)
		require.NoError(t, err)

		f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})
		_, err = f.EncryptNewValue(store, []byte("round trip"), key)
		require.NoError(t, err)

		plaintext, err := f.DecryptCurrentValue(store, "")
		require.NoError(t, err)
		assert.Equal(t, []byte("round trip"), plaintext)
	})

	t.Run("password round trip", func(t *testing.T) {
		key, err := store.GeneratePasswordKey("", "hunter2", []string{testOrigin})
		require.NoError(t, err)

		f := New(testOrigin, Options{ProtectionMode: types.ProtectionPassword})
		_, err = f.EncryptNewValue(store, []byte("round trip"), key)
		require.NoError(t, err)

		plaintext, err := f.DecryptCurrentValue(store, "hunter2")
		require.NoError(t, err)
		assert.Equal(t, []byte("round trip"), plaintext)
	})

	t.Run("recipient round trip", func(t *testing.T) {
		recipient, err := store.GenerateRecipientKey("self", []string{"*"})
		require.NoError(t, err)

		f := New(testOrigin, Options{ProtectionMode: types.ProtectionRecipient})
		_, err = f.EncryptNewValue(store, []byte("round trip"), recipient)
		require.NoError(t, err)

		plaintext, err := f.DecryptCurrentValue(store, "")
		require.NoError(t, err)
		assert.Equal(t, []byte("round trip"), plaintext)
	})

	t.Run("no value set", func(t *testing.T) {
		f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})
		_, err := f.DecryptCurrentValue(store, "")
		assert.ErrorIs(t, err, keystore.ErrParameter)
	})
}

func TestOtherPartyPublicKey(t *testing.T) {
	f := New(testOrigin, Options{ProtectionMode: types.ProtectionSymmetric})

	assert.Empty(t, f.OtherPartyPublicKey())
	f.SetOtherPartyPublicKey("blob")
	assert.Equal(t, "blob", f.OtherPartyPublicKey())

	assert.Empty(t, f.OwnPublicKeyID())
	f.SetOwnPublicKeyID("key-id")
	assert.Equal(t, "key-id", f.OwnPublicKeyID())
}
