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

package wrapping

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrap(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		material := []byte(`{"algorithm":"A256GCM","keyData":{"kty":"oct","k":"abc"}}`)
		wrapped, err := Wrap(material, &priv.PublicKey)
		require.NoError(t, err)
		assert.NotEqual(t, material, wrapped)

		unwrapped, err := Unwrap(wrapped, priv)
		require.NoError(t, err)
		assert.Equal(t, material, unwrapped)
	})

	t.Run("tampered wrapping fails", func(t *testing.T) {
		wrapped, err := Wrap([]byte("key material"), &priv.PublicKey)
		require.NoError(t, err)

		wrapped[0] ^= 0x01
		_, err = Unwrap(wrapped, priv)
		assert.ErrorIs(t, err, ErrUnwrap)
	})

	t.Run("wrong private key fails", func(t *testing.T) {
		wrapped, err := Wrap([]byte("key material"), &priv.PublicKey)
		require.NoError(t, err)

		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		_, err = Unwrap(wrapped, other)
		assert.ErrorIs(t, err, ErrUnwrap)
	})

	t.Run("rejects empty material", func(t *testing.T) {
		_, err := Wrap(nil, &priv.PublicKey)
		assert.Error(t, err)
	})

	t.Run("rejects undersized key", func(t *testing.T) {
		small, err := rsa.GenerateKey(rand.Reader, 1024)
		require.NoError(t, err)

		_, err = Wrap([]byte("key material"), &small.PublicKey)
		assert.Error(t, err)
	})
}
