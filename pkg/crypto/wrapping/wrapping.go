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

// Package wrapping provides RSA-OAEP (SHA-256) wrapping of serialized key
// material. Recipient-mode envelopes wrap each message's ephemeral AES key
// once per party so that either side can unwrap it later.
package wrapping

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
)

// MinKeyBits is the smallest RSA modulus accepted for wrapping keys.
// Recipient identities are generated at 4096 bits.
const MinKeyBits = 2048

// ErrUnwrap indicates the wrapped key material could not be decrypted,
// typically because it was tampered with or wrapped for a different key.
var ErrUnwrap = errors.New("wrapping: failed to unwrap key material")

// Wrap encrypts key material using RSA-OAEP with SHA-256.
// The key material must fit within the RSA modulus minus OAEP overhead;
// serialized symmetric keys are well under the limit for 4096-bit keys.
func Wrap(keyMaterial []byte, publicKey *rsa.PublicKey) ([]byte, error) {
	if len(keyMaterial) == 0 {
		return nil, fmt.Errorf("key material cannot be nil or empty")
	}
	if publicKey == nil {
		return nil, fmt.Errorf("public key cannot be nil")
	}
	if publicKey.Size()*8 < MinKeyBits {
		return nil, fmt.Errorf("RSA key too small: %d bits", publicKey.Size()*8)
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, keyMaterial, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key material with RSA-OAEP: %w", err)
	}

	return wrapped, nil
}

// Unwrap decrypts key material that was encrypted with Wrap.
func Unwrap(wrappedKey []byte, privateKey *rsa.PrivateKey) ([]byte, error) {
	if len(wrappedKey) == 0 {
		return nil, fmt.Errorf("wrapped key cannot be nil or empty")
	}
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}

	unwrapped, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, privateKey, wrappedKey, nil)
	if err != nil {
		return nil, ErrUnwrap
	}

	return unwrapped, nil
}
