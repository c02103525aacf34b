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
	"github.com/jeremyhahn/go-fieldseal/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePasswordKey(t *testing.T) {
	s := newTestStore(t)

	key, err := s.GeneratePasswordKey("vault", "correct horse battery staple",
		[]string{testOrigin})
	require.NoError(t, err)

	assert.NotEmpty(t, key.KeyID)
	assert.NotEmpty(t, key.Salt)
	assert.Equal(t, "vault", key.ShortDescription)

	t.Run("salt is full length", func(t *testing.T) {
		salt, err := codec.DecodeBase64(key.Salt)
		require.NoError(t, err)
		assert.Len(t, salt, pbkdf2SaltSize)
	})

	t.Run("same password with fresh salt yields a new key", func(t *testing.T) {
		other, err := s.GeneratePasswordKey("", "correct horse battery staple", nil)
		require.NoError(t, err)
		assert.NotEqual(t, key.KeyID, other.KeyID)
	})
}

func TestDerivePasswordKeyDeterminism(t *testing.T) {
	salt := []byte("012345678901234567890123456789")

	a, err := derivePasswordKey("hunter2", salt, "", nil)
	require.NoError(t, err)
	b, err := derivePasswordKey("hunter2", salt, "other description", []string{"*"})
	require.NoError(t, err)
	c, err := derivePasswordKey("hunter3", salt, "", nil)
	require.NoError(t, err)

	// Identity depends only on password and salt, never on metadata.
	assert.Equal(t, a.KeyID, b.KeyID)
	assert.NotEqual(t, a.KeyID, c.KeyID)
}

func TestPasswordEncryptDecrypt(t *testing.T) {
	const password = "correct horse battery staple"

	s := newTestStore(t)
	key, err := s.GeneratePasswordKey("", password, []string{testOrigin})
	require.NoError(t, err)

	t.Run("round trip with stored key", func(t *testing.T) {
		env, err := s.EncryptWithPasswordKey([]byte("secret"), key, testOrigin)
		require.NoError(t, err)
		assert.Equal(t, key.KeyID, env.KeyID)
		assert.Equal(t, key.Salt, env.Salt)

		decKey, plaintext, err := s.DecryptWithPasswordKey(env, testOrigin, "")
		require.NoError(t, err)
		assert.Equal(t, key.KeyID, decKey.KeyID)
		assert.Equal(t, []byte("secret"), plaintext)
	})

	t.Run("decrypt by password alone on another device", func(t *testing.T) {
		env, err := s.EncryptWithPasswordKey([]byte("secret"), key, testOrigin)
		require.NoError(t, err)

		other := newTestStore(t)
		decKey, plaintext, err := other.DecryptWithPasswordKey(env, testOrigin, password)
		require.NoError(t, err)
		assert.Equal(t, key.KeyID, decKey.KeyID)
		assert.Equal(t, []byte("secret"), plaintext)

		// The re-derived key is persisted, bound to the requesting origin.
		stored, err := other.PasswordKey(key.KeyID)
		require.NoError(t, err)
		assert.Equal(t, []string{testOrigin}, stored.AllowedOrigins)

		// Subsequent decrypts resolve it by id without the password.
		_, plaintext, err = other.DecryptWithPasswordKey(env, testOrigin, "")
		require.NoError(t, err)
		assert.Equal(t, []byte("secret"), plaintext)
	})

	t.Run("wrong password is an id mismatch, not an AEAD failure", func(t *testing.T) {
		env, err := s.EncryptWithPasswordKey([]byte("secret"), key, testOrigin)
		require.NoError(t, err)

		other := newTestStore(t)
		_, _, err = other.DecryptWithPasswordKey(env, testOrigin, "wrong password")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrParameter)
		assert.NotErrorIs(t, err, ErrInvalidCiphertext)

		// The mismatching key must not have been stored.
		assert.Empty(t, other.PasswordKeys())
	})

	t.Run("re-derived key is discarded when the envelope fails to open", func(t *testing.T) {
		env, err := s.EncryptWithPasswordKey([]byte("secret"), key, testOrigin)
		require.NoError(t, err)

		ct, err := codec.DecodeBase64(env.Ciphertext)
		require.NoError(t, err)
		ct[0] ^= 0x01
		env.Ciphertext = codec.EncodeBase64(ct)

		other := newTestStore(t)
		_, _, err = other.DecryptWithPasswordKey(env, testOrigin, password)
		assert.ErrorIs(t, err, ErrInvalidCiphertext)
		assert.Empty(t, other.PasswordKeys())
	})

	t.Run("missing key without password", func(t *testing.T) {
		env, err := s.EncryptWithPasswordKey([]byte("secret"), key, testOrigin)
		require.NoError(t, err)

		other := newTestStore(t)
		_, _, err = other.DecryptWithPasswordKey(env, testOrigin, "")
		assert.ErrorIs(t, err, ErrKeyMissing)
	})

	t.Run("disallowed origin", func(t *testing.T) {
		env, err := s.EncryptWithPasswordKey([]byte("secret"), key, testOrigin)
		require.NoError(t, err)

		_, _, err = s.DecryptWithPasswordKey(env, "https://evil.example", "")
		assert.ErrorIs(t, err, ErrKeyDisallowed)
	})

	t.Run("nil arguments", func(t *testing.T) {
		_, err := s.EncryptWithPasswordKey([]byte("v"), nil, testOrigin)
		assert.ErrorIs(t, err, ErrParameter)
		_, _, err = s.DecryptWithPasswordKey(nil, testOrigin, password)
		assert.ErrorIs(t, err, ErrParameter)
	})

	t.Run("re-derived key survives restart", func(t *testing.T) {
		env, err := s.EncryptWithPasswordKey([]byte("secret"), key, testOrigin)
		require.NoError(t, err)

		backend := storage.NewMemory()
		first, err := New(backend)
		require.NoError(t, err)
		_, _, err = first.DecryptWithPasswordKey(env, testOrigin, password)
		require.NoError(t, err)

		second, err := New(backend)
		require.NoError(t, err)
		_, plaintext, err := second.DecryptWithPasswordKey(env, testOrigin, "")
		require.NoError(t, err)
		assert.Equal(t, []byte("secret"), plaintext)
	})
}
