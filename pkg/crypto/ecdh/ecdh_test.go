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

package ecdh

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSharedSecret(t *testing.T) {
	alice, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	require.NoError(t, err)
	bob, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	require.NoError(t, err)

	t.Run("both sides derive the same secret", func(t *testing.T) {
		fromAlice, err := DeriveSharedSecret(alice, &bob.PublicKey)
		require.NoError(t, err)
		fromBob, err := DeriveSharedSecret(bob, &alice.PublicKey)
		require.NoError(t, err)
		assert.Equal(t, fromAlice, fromBob)
		assert.NotEmpty(t, fromAlice)
	})

	t.Run("different peers derive different secrets", func(t *testing.T) {
		carol, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
		require.NoError(t, err)

		withBob, err := DeriveSharedSecret(alice, &bob.PublicKey)
		require.NoError(t, err)
		withCarol, err := DeriveSharedSecret(alice, &carol.PublicKey)
		require.NoError(t, err)
		assert.NotEqual(t, withBob, withCarol)
	})

	t.Run("rejects curve mismatch", func(t *testing.T) {
		p256, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)

		_, err = DeriveSharedSecret(alice, &p256.PublicKey)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "curve mismatch")
	})

	t.Run("rejects nil keys", func(t *testing.T) {
		_, err := DeriveSharedSecret(nil, &bob.PublicKey)
		assert.Error(t, err)
		_, err = DeriveSharedSecret(alice, nil)
		assert.Error(t, err)
	})
}

func TestDeriveKey(t *testing.T) {
	secret := []byte("shared secret material")

	t.Run("deterministic", func(t *testing.T) {
		a, err := DeriveKey(secret, nil, []byte("aes-256-gcm"), 32)
		require.NoError(t, err)
		b, err := DeriveKey(secret, nil, []byte("aes-256-gcm"), 32)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, 32)
	})

	t.Run("info separates keys", func(t *testing.T) {
		a, err := DeriveKey(secret, nil, []byte("aes-256-gcm"), 32)
		require.NoError(t, err)
		b, err := DeriveKey(secret, nil, []byte("hmac"), 32)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("salt separates keys", func(t *testing.T) {
		a, err := DeriveKey(secret, []byte("salt-a"), nil, 32)
		require.NoError(t, err)
		b, err := DeriveKey(secret, []byte("salt-b"), nil, 32)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("rejects invalid length", func(t *testing.T) {
		_, err := DeriveKey(secret, nil, nil, 0)
		assert.Error(t, err)
	})

	t.Run("rejects nil secret", func(t *testing.T) {
		_, err := DeriveKey(nil, nil, nil, 32)
		assert.Error(t, err)
	})
}
