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

// Package keystore implements the key-management core: generation,
// storage, and lifecycle of every key kind, the encryption and decryption
// protocol for each protection mode, the ECDH key-agreement handshake,
// and export/import of keys across devices and parties.
//
// The store exclusively owns all key collections. Every mutation is
// followed by a single whole-store write to the storage backend; loading
// replaces the in-memory collections wholesale. All operations are safe
// for concurrent use.
package keystore

import (
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-fieldseal/pkg/logging"
	"github.com/jeremyhahn/go-fieldseal/pkg/metrics"
	"github.com/jeremyhahn/go-fieldseal/pkg/storage"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

// KeyKind identifies one of the store's key collections.
type KeyKind string

const (
	KindSymmetric    KeyKind = "symmetric"
	KindPassword     KeyKind = "password"
	KindRecipient    KeyKind = "recipient"
	KindKeyAgreement KeyKind = "key-agreement"
)

// Store owns the five key collections and performs every cryptographic
// operation in the system. Create one with New; the zero value is not
// usable.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	logger  *logging.Logger

	symmetricKeys  map[string]*types.SymmetricKey
	passwordKeys   map[string]*types.PasswordKey
	recipientKeys  map[string]*types.RecipientKey
	agreementPairs map[string]*types.KeyAgreementKeyPair

	// perOriginPairs holds the extension's own sender identities,
	// keyed by origin rather than key id.
	perOriginPairs map[string]*types.RecipientKey
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for operational messages.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store over the given storage backend and loads any
// previously persisted state.
func New(backend storage.Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: storage backend is required", ErrParameter)
	}
	s := &Store{
		backend:        backend,
		logger:         logging.DefaultLogger(),
		symmetricKeys:  make(map[string]*types.SymmetricKey),
		passwordKeys:   make(map[string]*types.PasswordKey),
		recipientKeys:  make(map[string]*types.RecipientKey),
		agreementPairs: make(map[string]*types.KeyAgreementKeyPair),
		perOriginPairs: make(map[string]*types.RecipientKey),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// SymmetricKeys returns a snapshot of the stored symmetric keys.
func (s *Store) SymmetricKeys() []*types.SymmetricKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]*types.SymmetricKey, 0, len(s.symmetricKeys))
	for _, key := range s.symmetricKeys {
		keys = append(keys, key)
	}
	return keys
}

// PasswordKeys returns a snapshot of the stored password keys.
func (s *Store) PasswordKeys() []*types.PasswordKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]*types.PasswordKey, 0, len(s.passwordKeys))
	for _, key := range s.passwordKeys {
		keys = append(keys, key)
	}
	return keys
}

// RecipientKeys returns a snapshot of the stored recipient keys.
func (s *Store) RecipientKeys() []*types.RecipientKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]*types.RecipientKey, 0, len(s.recipientKeys))
	for _, key := range s.recipientKeys {
		keys = append(keys, key)
	}
	return keys
}

// KeyAgreementPairs returns a snapshot of the stored ephemeral
// key-agreement pairs.
func (s *Store) KeyAgreementPairs() []*types.KeyAgreementKeyPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	pairs := make([]*types.KeyAgreementKeyPair, 0, len(s.agreementPairs))
	for _, pair := range s.agreementPairs {
		pairs = append(pairs, pair)
	}
	return pairs
}

// SymmetricKey looks up a stored symmetric key by id.
func (s *Store) SymmetricKey(keyID string) (*types.SymmetricKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.symmetricKeys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: symmetric key %s", ErrKeyMissing, keyID)
	}
	return key, nil
}

// PasswordKey looks up a stored password key by id.
func (s *Store) PasswordKey(keyID string) (*types.PasswordKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.passwordKeys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: password key %s", ErrKeyMissing, keyID)
	}
	return key, nil
}

// RecipientKey looks up a stored recipient key by id.
func (s *Store) RecipientKey(keyID string) (*types.RecipientKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.recipientKeys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: recipient key %s", ErrKeyMissing, keyID)
	}
	return key, nil
}

// KeyAgreementPair looks up a stored ephemeral agreement pair by id.
func (s *Store) KeyAgreementPair(keyID string) (*types.KeyAgreementKeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair, ok := s.agreementPairs[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: key-agreement pair %s", ErrKeyMissing, keyID)
	}
	return pair, nil
}

// DeleteKey removes a key from the collection for the given kind and
// persists the change. Per-origin sender identities are recipient keys;
// deleting one by id also removes its per-origin entry.
func (s *Store) DeleteKey(kind KeyKind, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case KindSymmetric:
		if _, ok := s.symmetricKeys[keyID]; !ok {
			return fmt.Errorf("%w: symmetric key %s", ErrKeyMissing, keyID)
		}
		delete(s.symmetricKeys, keyID)
	case KindPassword:
		if _, ok := s.passwordKeys[keyID]; !ok {
			return fmt.Errorf("%w: password key %s", ErrKeyMissing, keyID)
		}
		delete(s.passwordKeys, keyID)
	case KindRecipient:
		if _, ok := s.recipientKeys[keyID]; !ok {
			return fmt.Errorf("%w: recipient key %s", ErrKeyMissing, keyID)
		}
		delete(s.recipientKeys, keyID)
		for origin, pair := range s.perOriginPairs {
			if pair.KeyID == keyID {
				delete(s.perOriginPairs, origin)
			}
		}
	case KindKeyAgreement:
		if _, ok := s.agreementPairs[keyID]; !ok {
			return fmt.Errorf("%w: key-agreement pair %s", ErrKeyMissing, keyID)
		}
		delete(s.agreementPairs, keyID)
	default:
		return fmt.Errorf("%w: unknown key kind %q", ErrParameter, kind)
	}

	if err := s.save(); err != nil {
		return err
	}
	metrics.RecordOperation(metrics.OpDelete, string(kind), metrics.StatusSuccess, 0)
	return nil
}

// SetDescription updates the short description of a stored key and
// persists the change.
func (s *Store) SetDescription(kind KeyKind, keyID, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.metadataFor(kind, keyID)
	if err != nil {
		return err
	}
	meta.ShortDescription = description
	return s.save()
}

// SetAllowedOrigins replaces the origin allow-list of a stored key and
// persists the change.
func (s *Store) SetAllowedOrigins(kind KeyKind, keyID string, allowedOrigins []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.metadataFor(kind, keyID)
	if err != nil {
		return err
	}
	meta.AllowedOrigins = append([]string{}, allowedOrigins...)
	return s.save()
}

// metadataFor resolves the shared metadata of a stored key. Caller holds
// the lock. Key-agreement pairs carry no metadata and are excluded.
func (s *Store) metadataFor(kind KeyKind, keyID string) (*types.Metadata, error) {
	switch kind {
	case KindSymmetric:
		if key, ok := s.symmetricKeys[keyID]; ok {
			return &key.Metadata, nil
		}
	case KindPassword:
		if key, ok := s.passwordKeys[keyID]; ok {
			return &key.Metadata, nil
		}
	case KindRecipient:
		if key, ok := s.recipientKeys[keyID]; ok {
			return &key.Metadata, nil
		}
	default:
		return nil, fmt.Errorf("%w: key kind %q has no metadata", ErrParameter, kind)
	}
	return nil, fmt.Errorf("%w: %s key %s", ErrKeyMissing, kind, keyID)
}
