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
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-fieldseal/pkg/codec"
	"github.com/jeremyhahn/go-fieldseal/pkg/crypto/aesgcm"
	"github.com/jeremyhahn/go-fieldseal/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-fieldseal/pkg/envelope"
	"github.com/jeremyhahn/go-fieldseal/pkg/metrics"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

// GenerateSymmetricKey creates a new AES-256-GCM key, persists it, and
// returns it. The key id is derived from the raw key bytes.
func (s *Store) GenerateSymmetricKey(description string, allowedOrigins []string,
	mode types.DistributionMode) (*types.SymmetricKey, error) {

	start := time.Now()

	raw, err := aesgcm.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate symmetric key: %w", err)
	}

	key, err := newSymmetricKey(raw, description, allowedOrigins, mode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.symmetricKeys[key.KeyID] = key
	if err := s.save(); err != nil {
		return nil, err
	}

	metrics.RecordOperation(metrics.OpGenerate, metrics.KindSymmetric,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return key, nil
}

// EncryptWithSymmetricKey seals plaintext under the given key, stamps
// usage metadata, persists, and returns the envelope.
func (s *Store) EncryptWithSymmetricKey(plaintext []byte, key *types.SymmetricKey,
	origin string) (*envelope.Symmetric, error) {

	start := time.Now()

	if key == nil {
		return nil, fmt.Errorf("%w: symmetric key is required", ErrParameter)
	}

	env, err := sealSymmetric(key, plaintext)
	if err != nil {
		metrics.RecordError(metrics.OpEncrypt, metrics.KindSymmetric, errorType(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.symmetricKeys[key.KeyID]; ok {
		stored.RecordUse(origin, time.Now())
		if err := s.save(); err != nil {
			return nil, err
		}
	}

	metrics.RecordOperation(metrics.OpEncrypt, metrics.KindSymmetric,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return env, nil
}

// DecryptWithSymmetricKey resolves the envelope's key, enforces the
// origin policy, opens the ciphertext, stamps usage metadata, and
// persists. AEAD failures surface as ErrInvalidCiphertext.
func (s *Store) DecryptWithSymmetricKey(env *envelope.Symmetric,
	origin string) (*types.SymmetricKey, []byte, error) {

	start := time.Now()

	if env == nil {
		return nil, nil, fmt.Errorf("%w: envelope is required", ErrParameter)
	}
	if err := env.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParameter, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.symmetricKeys[env.KeyID]
	if !ok {
		metrics.RecordError(metrics.OpDecrypt, metrics.KindSymmetric, "key_missing")
		return nil, nil, fmt.Errorf("%w: symmetric key %s", ErrKeyMissing, env.KeyID)
	}
	if !key.OriginAllowed(origin) {
		metrics.RecordError(metrics.OpDecrypt, metrics.KindSymmetric, "key_disallowed")
		return nil, nil, fmt.Errorf("%w: symmetric key %s on origin %s",
			ErrKeyDisallowed, env.KeyID, origin)
	}

	plaintext, err := openSymmetric(key.Key, env)
	if err != nil {
		metrics.RecordError(metrics.OpDecrypt, metrics.KindSymmetric, errorType(err))
		return nil, nil, err
	}

	key.RecordUse(origin, time.Now())
	if err := s.save(); err != nil {
		return nil, nil, err
	}

	metrics.RecordOperation(metrics.OpDecrypt, metrics.KindSymmetric,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return key, plaintext, nil
}

// newSymmetricKey builds a SymmetricKey from raw AES key bytes. The key
// id is the thumbprint of the oct JWK holding the raw key.
func newSymmetricKey(raw []byte, description string, allowedOrigins []string,
	mode types.DistributionMode) (*types.SymmetricKey, error) {

	keyJWK, err := jwk.FromSymmetricKey(raw, types.AlgorithmAES256GCM)
	if err != nil {
		return nil, fmt.Errorf("failed to encode symmetric key: %w", err)
	}
	keyID, err := keyJWK.ThumbprintSHA256()
	if err != nil {
		return nil, fmt.Errorf("failed to derive key id: %w", err)
	}

	return &types.SymmetricKey{
		Metadata:         types.NewMetadata(keyID, description, allowedOrigins),
		DistributionMode: mode,
		Key:              types.NewKeyMaterial(types.AlgorithmAES256GCM, keyJWK),
	}, nil
}

// sealSymmetric encrypts plaintext under the key's raw bytes and builds
// the wire envelope.
func sealSymmetric(key *types.SymmetricKey, plaintext []byte) (*envelope.Symmetric, error) {
	raw, err := key.RawKey()
	if err != nil {
		return nil, fmt.Errorf("%w: unusable symmetric key: %v", ErrParameter, err)
	}
	iv, ciphertext, err := aesgcm.Encrypt(raw, plaintext)
	if err != nil {
		return nil, fmt.Errorf("symmetric encryption failed: %w", err)
	}
	return &envelope.Symmetric{
		KeyID:      key.KeyID,
		IV:         codec.EncodeBase64(iv),
		Ciphertext: codec.EncodeBase64(ciphertext),
	}, nil
}

// openSymmetric decodes and opens a symmetric envelope with the given
// key material. Tampered ciphertext, IV, or tag all surface as
// ErrInvalidCiphertext.
func openSymmetric(key *types.KeyMaterial, env *envelope.Symmetric) ([]byte, error) {
	raw, err := key.KeyData.ToSymmetricKey()
	if err != nil {
		return nil, fmt.Errorf("%w: unusable symmetric key: %v", ErrParameter, err)
	}
	iv, err := codec.DecodeBase64(env.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable iv", ErrParameter)
	}
	ciphertext, err := codec.DecodeBase64(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable ciphertext", ErrParameter)
	}
	plaintext, err := aesgcm.Decrypt(raw, iv, ciphertext)
	if err != nil {
		if errors.Is(err, aesgcm.ErrAuthentication) {
			return nil, fmt.Errorf("%w: authentication failed", ErrInvalidCiphertext)
		}
		return nil, err
	}
	return plaintext, nil
}

// errorType maps a protocol error to its metrics label.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrKeyMissing):
		return "key_missing"
	case errors.Is(err, ErrKeyDisallowed):
		return "key_disallowed"
	case errors.Is(err, ErrInvalidCiphertext):
		return "invalid_ciphertext"
	case errors.Is(err, ErrParameter):
		return "parameter"
	default:
		return "fault"
	}
}
