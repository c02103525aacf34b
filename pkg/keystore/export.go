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
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-fieldseal/pkg/codec"
	"github.com/jeremyhahn/go-fieldseal/pkg/crypto/aesgcm"
	"github.com/jeremyhahn/go-fieldseal/pkg/crypto/rand"
	"github.com/jeremyhahn/go-fieldseal/pkg/envelope"
	"github.com/jeremyhahn/go-fieldseal/pkg/metrics"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

// ExportSymmetricKey wraps a symmetric key for cross-device transfer:
// the serialized key JSON, minus its id, sealed in a password envelope
// under a transient password-derived key, base64 encoded. The transient
// key is never stored; the password and its salt in the envelope are
// enough to open the export on the other device.
func (s *Store) ExportSymmetricKey(key *types.SymmetricKey, password string) (string, error) {
	start := time.Now()

	if key == nil {
		return "", fmt.Errorf("%w: symmetric key is required", ErrParameter)
	}
	if password == "" {
		return "", fmt.Errorf("%w: password is required", ErrParameter)
	}

	// The id is re-derived on import; exporting it would be redundant
	// and invite trusting an unverified value.
	stripped := *key
	stripped.KeyID = ""
	plaintext, err := json.Marshal(&stripped)
	if err != nil {
		return "", fmt.Errorf("failed to serialize symmetric key: %w", err)
	}

	salt, err := rand.Bytes(pbkdf2SaltSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	transient, err := derivePasswordKey(password, salt, "", nil)
	if err != nil {
		return "", err
	}

	raw, err := transient.RawKey()
	if err != nil {
		return "", fmt.Errorf("%w: unusable transient key: %v", ErrParameter, err)
	}
	env, err := sealWithRaw(raw, transient.KeyID, transient.Salt, plaintext)
	if err != nil {
		return "", err
	}

	blob, err := codec.MarshalBase64(env)
	if err != nil {
		return "", fmt.Errorf("failed to encode export blob: %w", err)
	}

	metrics.RecordOperation(metrics.OpExport, metrics.KindSymmetric,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return blob, nil
}

// ImportSymmetricKey opens an export blob produced by ExportSymmetricKey
// on another device. The transient key is re-derived from the password
// and the envelope's salt and must re-derive to the envelope's key id; a
// mismatch means the password is wrong. The imported key's id is
// re-derived from its raw material, never taken from the blob. The key
// is stored under the given description, origins, and distribution mode.
func (s *Store) ImportSymmetricKey(blob, password, description string,
	allowedOrigins []string, mode types.DistributionMode) (*types.SymmetricKey, error) {

	start := time.Now()

	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrParameter)
	}

	var env envelope.Password
	if err := codec.UnmarshalBase64(blob, &env); err != nil {
		return nil, fmt.Errorf("%w: undecodable export blob", ErrParameter)
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParameter, err)
	}

	salt, err := codec.DecodeBase64(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable salt", ErrParameter)
	}
	transient, err := derivePasswordKey(password, salt, "", nil)
	if err != nil {
		return nil, err
	}
	if transient.KeyID != env.KeyID {
		metrics.RecordError(metrics.OpImport, metrics.KindSymmetric, "parameter")
		return nil, fmt.Errorf("%w: password does not match export blob", ErrParameter)
	}

	plaintext, err := openSymmetric(transient.Key, &env.Symmetric)
	if err != nil {
		metrics.RecordError(metrics.OpImport, metrics.KindSymmetric, errorType(err))
		return nil, err
	}

	var imported types.SymmetricKey
	if err := json.Unmarshal(plaintext, &imported); err != nil {
		return nil, fmt.Errorf("%w: malformed exported key", ErrParameter)
	}
	raw, err := imported.RawKey()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed exported key: %v", ErrParameter, err)
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

	metrics.RecordOperation(metrics.OpImport, metrics.KindSymmetric,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return key, nil
}

// ExportRecipientPublicIdentity serializes a recipient key with both
// private halves stripped, base64 encoded for handing to another party.
func (s *Store) ExportRecipientPublicIdentity(key *types.RecipientKey) (string, error) {
	start := time.Now()

	if key == nil {
		return "", fmt.Errorf("%w: recipient key is required", ErrParameter)
	}
	if err := validateRecipientKey(key); err != nil {
		return "", err
	}

	blob, err := codec.MarshalBase64(key.PublicIdentity())
	if err != nil {
		return "", fmt.Errorf("failed to encode recipient identity: %w", err)
	}

	metrics.RecordOperation(metrics.OpExport, metrics.KindRecipient,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return blob, nil
}

// ImportRecipientPublicKey decodes another party's exported identity,
// enforces the dual binding before anything is stored, and persists the
// public-only recipient key under the given description and origins.
func (s *Store) ImportRecipientPublicKey(blob, description string,
	allowedOrigins []string) (*types.RecipientKey, error) {

	start := time.Now()

	var imported types.RecipientKey
	if err := codec.UnmarshalBase64(blob, &imported); err != nil {
		return nil, fmt.Errorf("%w: undecodable recipient identity", ErrParameter)
	}
	if err := validateRecipientKey(&imported); err != nil {
		metrics.RecordError(metrics.OpImport, metrics.KindRecipient, errorType(err))
		return nil, err
	}

	key := &types.RecipientKey{
		Metadata: types.NewMetadata(imported.KeyID, description, allowedOrigins),
		Signing:  &types.SigningKeyPair{PublicKey: imported.Signing.PublicKey},
		Encryption: &types.EncryptionKeyPair{
			PublicKey: imported.Encryption.PublicKey,
			Signature: imported.Encryption.Signature,
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipientKeys[key.KeyID] = key
	if err := s.save(); err != nil {
		return nil, err
	}

	metrics.RecordOperation(metrics.OpImport, metrics.KindRecipient,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return key, nil
}

// sealWithRaw builds a password envelope from raw key bytes without a
// stored key object.
func sealWithRaw(raw []byte, keyID, salt string, plaintext []byte) (*envelope.Password, error) {
	iv, ciphertext, err := aesgcm.Encrypt(raw, plaintext)
	if err != nil {
		return nil, fmt.Errorf("export encryption failed: %w", err)
	}
	return &envelope.Password{
		Symmetric: envelope.Symmetric{
			KeyID:      keyID,
			IV:         codec.EncodeBase64(iv),
			Ciphertext: codec.EncodeBase64(ciphertext),
		},
		Salt: salt,
	}, nil
}
