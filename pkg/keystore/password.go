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
	"crypto/sha512"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-fieldseal/pkg/codec"
	"github.com/jeremyhahn/go-fieldseal/pkg/crypto/aesgcm"
	"github.com/jeremyhahn/go-fieldseal/pkg/crypto/rand"
	"github.com/jeremyhahn/go-fieldseal/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-fieldseal/pkg/envelope"
	"github.com/jeremyhahn/go-fieldseal/pkg/metrics"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. Derivation is deterministic: the same password and
// salt always yield the same key and therefore the same key id.
const (
	pbkdf2Iterations = 250000
	pbkdf2SaltSize   = 30
)

// GeneratePasswordKey derives an AES-256-GCM key from the password with
// a fresh random salt, persists it, and returns it.
func (s *Store) GeneratePasswordKey(description, password string,
	allowedOrigins []string) (*types.PasswordKey, error) {

	start := time.Now()

	salt, err := rand.Bytes(pbkdf2SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := derivePasswordKey(password, salt, description, allowedOrigins)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwordKeys[key.KeyID] = key
	if err := s.save(); err != nil {
		return nil, err
	}

	metrics.RecordOperation(metrics.OpGenerate, metrics.KindPassword,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return key, nil
}

// EncryptWithPasswordKey seals plaintext under the given password key.
// The envelope carries the salt so the key can later be re-derived from
// the password alone.
func (s *Store) EncryptWithPasswordKey(plaintext []byte, key *types.PasswordKey,
	origin string) (*envelope.Password, error) {

	start := time.Now()

	if key == nil {
		return nil, fmt.Errorf("%w: password key is required", ErrParameter)
	}

	raw, err := key.RawKey()
	if err != nil {
		return nil, fmt.Errorf("%w: unusable password key: %v", ErrParameter, err)
	}
	iv, ciphertext, err := aesgcm.Encrypt(raw, plaintext)
	if err != nil {
		return nil, fmt.Errorf("password encryption failed: %w", err)
	}
	env := &envelope.Password{
		Symmetric: envelope.Symmetric{
			KeyID:      key.KeyID,
			IV:         codec.EncodeBase64(iv),
			Ciphertext: codec.EncodeBase64(ciphertext),
		},
		Salt: key.Salt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.passwordKeys[key.KeyID]; ok {
		stored.RecordUse(origin, time.Now())
		if err := s.save(); err != nil {
			return nil, err
		}
	}

	metrics.RecordOperation(metrics.OpEncrypt, metrics.KindPassword,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return env, nil
}

// DecryptWithPasswordKey opens a password envelope. The key is resolved
// by id from the stored collection; when absent and a password is given,
// the key is re-derived from the envelope's salt and must re-derive to
// the envelope's key id. A wrong password is detected by that id
// mismatch, not by an AEAD failure.
//
// A key re-derived from the password is persisted, bound to the
// requesting origin, so subsequent decrypts resolve it by id.
func (s *Store) DecryptWithPasswordKey(env *envelope.Password, origin,
	password string) (*types.PasswordKey, []byte, error) {

	start := time.Now()

	if env == nil {
		return nil, nil, fmt.Errorf("%w: envelope is required", ErrParameter)
	}
	if err := env.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParameter, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.passwordKeys[env.KeyID]
	if !ok {
		if password == "" {
			metrics.RecordError(metrics.OpDecrypt, metrics.KindPassword, "key_missing")
			return nil, nil, fmt.Errorf("%w: password key %s", ErrKeyMissing, env.KeyID)
		}
		salt, err := codec.DecodeBase64(env.Salt)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: undecodable salt", ErrParameter)
		}
		rederived, err := derivePasswordKey(password, salt, "", []string{origin})
		if err != nil {
			return nil, nil, err
		}
		if rederived.KeyID != env.KeyID {
			metrics.RecordError(metrics.OpDecrypt, metrics.KindPassword, "parameter")
			return nil, nil, fmt.Errorf("%w: password does not match envelope key", ErrParameter)
		}
		key = rederived
	}

	if !key.OriginAllowed(origin) {
		metrics.RecordError(metrics.OpDecrypt, metrics.KindPassword, "key_disallowed")
		return nil, nil, fmt.Errorf("%w: password key %s on origin %s",
			ErrKeyDisallowed, env.KeyID, origin)
	}

	plaintext, err := openSymmetric(key.Key, &env.Symmetric)
	if err != nil {
		metrics.RecordError(metrics.OpDecrypt, metrics.KindPassword, errorType(err))
		return nil, nil, err
	}

	// A re-derived key is only adopted once it has opened the envelope,
	// so the collection never holds an entry the matching save skipped.
	s.passwordKeys[key.KeyID] = key
	key.RecordUse(origin, time.Now())
	if err := s.save(); err != nil {
		return nil, nil, err
	}

	metrics.RecordOperation(metrics.OpDecrypt, metrics.KindPassword,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return key, plaintext, nil
}

// derivePasswordKey runs PBKDF2-SHA-512 over the password and salt and
// builds the PasswordKey with its content-derived id.
func derivePasswordKey(password string, salt []byte, description string,
	allowedOrigins []string) (*types.PasswordKey, error) {

	raw := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesgcm.KeySize, sha512.New)

	keyJWK, err := jwk.FromSymmetricKey(raw, types.AlgorithmAES256GCM)
	if err != nil {
		return nil, fmt.Errorf("failed to encode derived key: %w", err)
	}
	keyID, err := keyJWK.ThumbprintSHA256()
	if err != nil {
		return nil, fmt.Errorf("failed to derive key id: %w", err)
	}

	return &types.PasswordKey{
		Metadata: types.NewMetadata(keyID, description, allowedOrigins),
		Salt:     codec.EncodeBase64(salt),
		Key:      types.NewKeyMaterial(types.AlgorithmAES256GCM, keyJWK),
	}, nil
}
