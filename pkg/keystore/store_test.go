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

	"github.com/jeremyhahn/go-fieldseal/pkg/storage"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "https://bank.example"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(storage.NewMemory())
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	t.Run("requires a backend", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrParameter)
	})

	t.Run("starts empty over a fresh backend", func(t *testing.T) {
		s := newTestStore(t)
		assert.Empty(t, s.SymmetricKeys())
		assert.Empty(t, s.PasswordKeys())
		assert.Empty(t, s.RecipientKeys())
		assert.Empty(t, s.KeyAgreementPairs())
	})
}

func TestPersistence(t *testing.T) {
	t.Run("keys survive across store instances", func(t *testing.T) {
		backend := storage.NewMemory()

		s1, err := New(backend)
		require.NoError(t, err)
		key, err := s1.GenerateSymmetricKey("persisted", []string{testOrigin},
			types.DistributionUserOnly)
		require.NoError(t, err)

		s2, err := New(backend)
		require.NoError(t, err)
		loaded, err := s2.SymmetricKey(key.KeyID)
		require.NoError(t, err)
		assert.Equal(t, key.KeyID, loaded.KeyID)
		assert.Equal(t, "persisted", loaded.ShortDescription)
		assert.Equal(t, types.DistributionUserOnly, loaded.DistributionMode)
	})

	t.Run("deletions survive across store instances", func(t *testing.T) {
		backend := storage.NewMemory()

		s1, err := New(backend)
		require.NoError(t, err)
		key, err := s1.GenerateSymmetricKey("", nil, types.DistributionUserOnly)
		require.NoError(t, err)
		require.NoError(t, s1.DeleteKey(KindSymmetric, key.KeyID))

		s2, err := New(backend)
		require.NoError(t, err)
		_, err = s2.SymmetricKey(key.KeyID)
		assert.ErrorIs(t, err, ErrKeyMissing)
	})

	t.Run("load replaces in-memory state wholesale", func(t *testing.T) {
		backend := storage.NewMemory()

		s, err := New(backend)
		require.NoError(t, err)
		key, err := s.GenerateSymmetricKey("", nil, types.DistributionUserOnly)
		require.NoError(t, err)

		require.NoError(t, backend.Delete("fieldseal/keystore"))
		require.NoError(t, s.Load())

		_, err = s.SymmetricKey(key.KeyID)
		assert.ErrorIs(t, err, ErrKeyMissing)
	})
}

func TestDeleteKey(t *testing.T) {
	t.Run("deletes a symmetric key", func(t *testing.T) {
		s := newTestStore(t)
		key, err := s.GenerateSymmetricKey("", nil, types.DistributionUserOnly)
		require.NoError(t, err)

		require.NoError(t, s.DeleteKey(KindSymmetric, key.KeyID))
		_, err = s.SymmetricKey(key.KeyID)
		assert.ErrorIs(t, err, ErrKeyMissing)
	})

	t.Run("missing key", func(t *testing.T) {
		s := newTestStore(t)
		err := s.DeleteKey(KindSymmetric, "nope")
		assert.ErrorIs(t, err, ErrKeyMissing)
	})

	t.Run("unknown kind", func(t *testing.T) {
		s := newTestStore(t)
		err := s.DeleteKey(KeyKind("bogus"), "id")
		assert.ErrorIs(t, err, ErrParameter)
	})

	t.Run("deleting a per-origin identity removes its origin entry", func(t *testing.T) {
		s := newTestStore(t)
		pair, err := s.PerOriginKeyPair(testOrigin)
		require.NoError(t, err)

		// Per-origin pairs live outside the recipient collection, so
		// expose it there first the way an imported copy would be.
		s.mu.Lock()
		s.recipientKeys[pair.KeyID] = pair
		s.mu.Unlock()

		require.NoError(t, s.DeleteKey(KindRecipient, pair.KeyID))

		s.mu.Lock()
		_, ok := s.perOriginPairs[testOrigin]
		s.mu.Unlock()
		assert.False(t, ok)
	})
}

func TestKeyMetadata(t *testing.T) {
	t.Run("set description persists", func(t *testing.T) {
		backend := storage.NewMemory()
		s, err := New(backend)
		require.NoError(t, err)
		key, err := s.GenerateSymmetricKey("before", nil, types.DistributionUserOnly)
		require.NoError(t, err)

		require.NoError(t, s.SetDescription(KindSymmetric, key.KeyID, "after"))

		s2, err := New(backend)
		require.NoError(t, err)
		loaded, err := s2.SymmetricKey(key.KeyID)
		require.NoError(t, err)
		assert.Equal(t, "after", loaded.ShortDescription)
	})

	t.Run("set allowed origins persists", func(t *testing.T) {
		backend := storage.NewMemory()
		s, err := New(backend)
		require.NoError(t, err)
		key, err := s.GenerateSymmetricKey("", []string{"*"}, types.DistributionUserOnly)
		require.NoError(t, err)

		require.NoError(t, s.SetAllowedOrigins(KindSymmetric, key.KeyID,
			[]string{testOrigin}))

		s2, err := New(backend)
		require.NoError(t, err)
		loaded, err := s2.SymmetricKey(key.KeyID)
		require.NoError(t, err)
		assert.Equal(t, []string{testOrigin}, loaded.AllowedOrigins)
		assert.False(t, loaded.OriginAllowed("https://other.example"))
	})

	t.Run("agreement pairs carry no metadata", func(t *testing.T) {
		s := newTestStore(t)
		err := s.SetDescription(KindKeyAgreement, "id", "desc")
		assert.ErrorIs(t, err, ErrParameter)
	})

	t.Run("missing key", func(t *testing.T) {
		s := newTestStore(t)
		err := s.SetDescription(KindPassword, "nope", "desc")
		assert.ErrorIs(t, err, ErrKeyMissing)
	})
}
