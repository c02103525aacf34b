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

package file

import (
	"testing"

	"github.com/jeremyhahn/go-fieldseal/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) storage.Backend {
	t.Helper()
	backend, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestFileStorage(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		backend := newTestBackend(t)

		require.NoError(t, backend.Put("fieldseal/keystore", []byte(`{"a":1}`), nil))

		got, err := backend.Get("fieldseal/keystore")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"a":1}`), got)
	})

	t.Run("overwrite", func(t *testing.T) {
		backend := newTestBackend(t)

		require.NoError(t, backend.Put("key", []byte("one"), nil))
		require.NoError(t, backend.Put("key", []byte("two"), nil))

		got, err := backend.Get("key")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got)
	})

	t.Run("get missing key", func(t *testing.T) {
		backend := newTestBackend(t)

		_, err := backend.Get("missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		backend := newTestBackend(t)

		require.NoError(t, backend.Put("key", []byte("value"), nil))
		require.NoError(t, backend.Delete("key"))

		_, err := backend.Get("key")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		backend := newTestBackend(t)

		ok, err := backend.Exists("key")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, backend.Put("key", []byte("value"), nil))
		ok, err = backend.Exists("key")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("list by prefix", func(t *testing.T) {
		backend := newTestBackend(t)

		require.NoError(t, backend.Put("keys/a", []byte("1"), nil))
		require.NoError(t, backend.Put("keys/b", []byte("2"), nil))
		require.NoError(t, backend.Put("other/c", []byte("3"), nil))

		keys, err := backend.List("keys/")
		require.NoError(t, err)
		assert.Equal(t, []string{"keys/a", "keys/b"}, keys)
	})

	t.Run("rejects path traversal", func(t *testing.T) {
		backend := newTestBackend(t)

		assert.ErrorIs(t, backend.Put("../escape", []byte("v"), nil), storage.ErrInvalidKey)
		_, err := backend.Get("../../etc/passwd")
		assert.ErrorIs(t, err, storage.ErrInvalidKey)
	})

	t.Run("persists across instances", func(t *testing.T) {
		dir := t.TempDir()
		first, err := New(dir)
		require.NoError(t, err)
		require.NoError(t, first.Put("key", []byte("value"), nil))
		require.NoError(t, first.Close())

		second, err := New(dir)
		require.NoError(t, err)
		defer func() { _ = second.Close() }()

		got, err := second.Get("key")
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), got)
	})
}
