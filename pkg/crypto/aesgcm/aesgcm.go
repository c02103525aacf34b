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

// Package aesgcm provides the AES-256-GCM primitive used by every
// protection mode. The envelope wire format fixes the algorithm and the
// 12-byte IV size; the authentication tag is appended to the ciphertext.
package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-fieldseal/pkg/crypto/rand"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32

	// IVSize is the GCM IV size in bytes.
	IVSize = 12
)

// ErrAuthentication indicates the ciphertext, IV, or tag failed
// authentication during decryption.
var ErrAuthentication = errors.New("aesgcm: message authentication failed")

// GenerateKey returns a fresh random AES-256 key.
func GenerateKey() ([]byte, error) {
	return rand.Bytes(KeySize)
}

// Encrypt seals plaintext under the given AES-256 key with a fresh random
// 12-byte IV. It returns the IV and the ciphertext with the tag appended.
func Encrypt(key, plaintext []byte) (iv, ciphertext []byte, err error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, err
	}

	iv, err = rand.Bytes(IVSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	ciphertext = aead.Seal(nil, iv, plaintext, nil)
	return iv, ciphertext, nil
}

// Decrypt opens ciphertext (with appended tag) under the given key and IV.
// Any tampering with the ciphertext, IV, or tag yields ErrAuthentication.
func Decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: invalid IV size %d", ErrAuthentication, len(iv))
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aesgcm: key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aesgcm: failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aesgcm: failed to create GCM: %w", err)
	}
	return aead, nil
}
