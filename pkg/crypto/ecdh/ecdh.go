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

// Package ecdh provides Elliptic Curve Diffie-Hellman key agreement for
// establishing shared symmetric keys between two parties.
//
// Agreement pairs use the NIST P-521 curve. The raw shared secret is
// expanded with HKDF-SHA256 into an AES-256-GCM key; both parties run the
// same derivation, so the resulting key bytes (and thus the derived key's
// content-derived id) are identical on both sides.
package ecdh

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveSharedSecret performs ECDH key agreement between a private key and
// a public key, returning the raw shared secret.
//
// Both keys must use the same elliptic curve. For actual encryption keys,
// use DeriveKey() with the returned shared secret.
func DeriveSharedSecret(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) ([]byte, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	if publicKey == nil {
		return nil, fmt.Errorf("public key cannot be nil")
	}

	if privateKey.Curve != publicKey.Curve {
		return nil, fmt.Errorf("curve mismatch: private key uses %s, public key uses %s",
			privateKey.Curve.Params().Name, publicKey.Curve.Params().Name)
	}

	ecdhPriv, err := ecdsaToECDH(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key: %w", err)
	}

	ecdhPub, err := ecdsaPublicToECDH(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert public key: %w", err)
	}

	sharedSecret, err := ecdhPriv.ECDH(ecdhPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH operation failed: %w", err)
	}

	return sharedSecret, nil
}

// DeriveKey derives a key of the specified length from a shared secret
// using HKDF-SHA256. The info parameter separates keys by purpose;
// different info values produce independent keys from the same secret.
func DeriveKey(sharedSecret, salt, info []byte, keyLength int) ([]byte, error) {
	if sharedSecret == nil {
		return nil, fmt.Errorf("shared secret cannot be nil")
	}
	if keyLength <= 0 {
		return nil, fmt.Errorf("key length must be positive, got %d", keyLength)
	}

	hkdfReader := hkdf.New(sha256.New, sharedSecret, salt, info)

	derivedKey := make([]byte, keyLength)
	if _, err := io.ReadFull(hkdfReader, derivedKey); err != nil {
		return nil, fmt.Errorf("HKDF derivation failed: %w", err)
	}

	return derivedKey, nil
}

// ecdsaToECDH converts an ECDSA private key to a crypto/ecdh private key.
func ecdsaToECDH(key *ecdsa.PrivateKey) (*ecdh.PrivateKey, error) {
	curve, err := curveToECDH(key.Curve)
	if err != nil {
		return nil, err
	}

	keyBytes := key.D.Bytes()

	// Pad to the correct size for the curve
	curveByteLen := (key.Curve.Params().BitSize + 7) / 8
	if len(keyBytes) < curveByteLen {
		padded := make([]byte, curveByteLen)
		copy(padded[curveByteLen-len(keyBytes):], keyBytes)
		keyBytes = padded
	}

	return curve.NewPrivateKey(keyBytes)
}

// ecdsaPublicToECDH converts an ECDSA public key to a crypto/ecdh public key.
func ecdsaPublicToECDH(key *ecdsa.PublicKey) (*ecdh.PublicKey, error) {
	curve, err := curveToECDH(key.Curve)
	if err != nil {
		return nil, err
	}

	// Serialize public key in uncompressed form
	keyBytes := elliptic.Marshal(key.Curve, key.X, key.Y) //nolint:staticcheck // SA1019: TODO refactor to crypto/ecdh

	return curve.NewPublicKey(keyBytes)
}

// curveToECDH maps elliptic.Curve to ecdh.Curve
func curveToECDH(curve elliptic.Curve) (ecdh.Curve, error) {
	switch curve.Params().Name {
	case "P-256":
		return ecdh.P256(), nil
	case "P-384":
		return ecdh.P384(), nil
	case "P-521":
		return ecdh.P521(), nil
	default:
		return nil, fmt.Errorf("unsupported curve: %s", curve.Params().Name)
	}
}
