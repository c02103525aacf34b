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

package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	require.NoError(t, err)

	const keyID = "vXici0UV-DxQMTBa1ZXGQCdRiifIlUDG5mvYBPZqZE4"

	t.Run("round trip", func(t *testing.T) {
		sig, err := Sign(priv, keyID)
		require.NoError(t, err)
		assert.NotEmpty(t, sig)

		assert.NoError(t, Verify(&priv.PublicKey, keyID, sig))
	})

	t.Run("different message fails", func(t *testing.T) {
		sig, err := Sign(priv, keyID)
		require.NoError(t, err)

		err = Verify(&priv.PublicKey, keyID+"x", sig)
		assert.ErrorIs(t, err, ErrVerification)
	})

	t.Run("tampered signature fails", func(t *testing.T) {
		sig, err := Sign(priv, keyID)
		require.NoError(t, err)

		sig[len(sig)-1] ^= 0x01
		err = Verify(&priv.PublicKey, keyID, sig)
		assert.ErrorIs(t, err, ErrVerification)
	})

	t.Run("wrong public key fails", func(t *testing.T) {
		sig, err := Sign(priv, keyID)
		require.NoError(t, err)

		other, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
		require.NoError(t, err)
		err = Verify(&other.PublicKey, keyID, sig)
		assert.ErrorIs(t, err, ErrVerification)
	})

	t.Run("empty signature fails", func(t *testing.T) {
		err := Verify(&priv.PublicKey, keyID, nil)
		assert.ErrorIs(t, err, ErrVerification)
	})

	t.Run("nil keys rejected", func(t *testing.T) {
		_, err := Sign(nil, keyID)
		assert.Error(t, err)
		assert.Error(t, Verify(nil, keyID, []byte{1}))
	})
}
