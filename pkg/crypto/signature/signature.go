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

// Package signature implements ECDSA signing and verification over
// key-identifier strings. Signatures bind an encryption key to the
// signing identity that vouches for it, so a tampered key id or a
// swapped signing key is detected before any ciphertext is trusted.
//
// Keys use the NIST P-521 curve with SHA-512 digests and ASN.1 DER
// encoded signatures.
package signature

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
)

// ErrVerification is returned by Verify when a signature does not match
// the message under the given public key.
var ErrVerification = errors.New("signature: verification failed")

// Sign signs the UTF-8 bytes of message with the ECDSA private key,
// hashing with SHA-512. The returned signature is ASN.1 DER encoded.
func Sign(privateKey *ecdsa.PrivateKey, message string) ([]byte, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}

	digest := sha512.Sum512([]byte(message))

	sig, err := ecdsa.SignASN1(rand.Reader, privateKey, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	return sig, nil
}

// Verify checks an ASN.1 DER encoded ECDSA signature over the UTF-8
// bytes of message. Returns ErrVerification when the signature is
// invalid for the message and public key.
func Verify(publicKey *ecdsa.PublicKey, message string, sig []byte) error {
	if publicKey == nil {
		return fmt.Errorf("public key cannot be nil")
	}
	if len(sig) == 0 {
		return ErrVerification
	}

	digest := sha512.Sum512([]byte(message))

	if !ecdsa.VerifyASN1(publicKey, digest[:], sig) {
		return ErrVerification
	}

	return nil
}
