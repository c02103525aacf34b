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

// Package types defines the key variants, protection and distribution modes,
// and serialized key-material representation shared across fieldseal.
//
// Stored keys form a closed set of kinds: symmetric, password, recipient,
// and key-agreement. Every operation that depends on the kind dispatches
// exhaustively over this set.
package types

import (
	"crypto"
	"time"

	"github.com/jeremyhahn/go-fieldseal/pkg/codec"
	"github.com/jeremyhahn/go-fieldseal/pkg/encoding/jwk"
)

// ProtectionMode is the top-level cryptographic scheme a protected field uses.
type ProtectionMode string

const (
	// ProtectionSymmetric encrypts under a stored AES-256-GCM key.
	ProtectionSymmetric ProtectionMode = "symmetric"

	// ProtectionPassword encrypts under a PBKDF2-derived AES-256-GCM key.
	ProtectionPassword ProtectionMode = "password"

	// ProtectionRecipient encrypts to a recipient identity using the
	// hybrid signed-ephemeral-key scheme.
	ProtectionRecipient ProtectionMode = "recipient"
)

// DistributionMode classifies how a symmetric key is meant to be shared.
// It is a UI-level convention, not enforced by the protocol.
type DistributionMode string

const (
	// DistributionUserOnly keys are never exported to other parties.
	DistributionUserOnly DistributionMode = "user-only"

	// DistributionExternal keys may be exported to another device or user.
	DistributionExternal DistributionMode = "external"

	// DistributionKeyAgreement keys were derived via ECDH key agreement.
	DistributionKeyAgreement DistributionMode = "key-agreement"
)

// Algorithm identifiers carried in serialized key material.
const (
	// AlgorithmAES256GCM is AES-256 in Galois/Counter Mode.
	AlgorithmAES256GCM = "A256GCM"

	// AlgorithmECDSAP521 is ECDSA over P-521 with SHA-512 (signing pairs).
	AlgorithmECDSAP521 = "ES512"

	// AlgorithmRSAOAEP is RSA-OAEP with SHA-256 (encryption pairs).
	AlgorithmRSAOAEP = "RSA-OAEP-256"

	// AlgorithmECDH is ephemeral-static ECDH over P-521 (agreement pairs).
	AlgorithmECDH = "ECDH-ES"
)

// OriginWildcard in an allow-list permits use of a key on any origin.
const OriginWildcard = "*"

// KeyMaterial is the canonical serialized form of a cryptographic key:
// an algorithm identifier plus the exported key material in JWK form.
// All key material round-trips through storage and crosses party
// boundaries in this representation.
type KeyMaterial struct {
	Algorithm string   `json:"algorithm"`
	KeyData   *jwk.JWK `json:"keyData"`
}

// NewKeyMaterial wraps a JWK with its algorithm identifier.
func NewKeyMaterial(algorithm string, keyData *jwk.JWK) *KeyMaterial {
	return &KeyMaterial{Algorithm: algorithm, KeyData: keyData}
}

// KeyID returns the content-derived identity of the key material: the
// SHA-256 JWK thumbprint of the (public, for asymmetric keys) JWK.
func (m *KeyMaterial) KeyID() (string, error) {
	return m.KeyData.ThumbprintSHA256()
}

// Public returns a copy with private key parameters stripped.
func (m *KeyMaterial) Public() (*KeyMaterial, error) {
	pub, err := m.KeyData.Public()
	if err != nil {
		return nil, err
	}
	return &KeyMaterial{Algorithm: m.Algorithm, KeyData: pub}, nil
}

// PublicKey parses the JWK into a crypto.PublicKey.
func (m *KeyMaterial) PublicKey() (crypto.PublicKey, error) {
	return m.KeyData.ToPublicKey()
}

// PrivateKey parses the JWK into a crypto.PrivateKey.
func (m *KeyMaterial) PrivateKey() (crypto.PrivateKey, error) {
	return m.KeyData.ToPrivateKey()
}

// Metadata carries the fields common to every stored key variant.
//
// KeyID is always a deterministic hash of the key's public or raw material,
// never chosen by a client; a forged identity would fail re-derivation.
type Metadata struct {
	KeyID                   string           `json:"keyId"`
	ShortDescription        string           `json:"shortDescription"`
	Created                 codec.Timestamp  `json:"created"`
	LastUsed                *codec.Timestamp `json:"lastUsed"`
	AllowedOrigins          []string         `json:"allowedOrigins"`
	PreviouslyUsedOnOrigins []string         `json:"previouslyUsedOnOrigins"`
}

// NewMetadata initializes metadata for a freshly generated key.
func NewMetadata(keyID, description string, allowedOrigins []string) Metadata {
	origins := make([]string, len(allowedOrigins))
	copy(origins, allowedOrigins)
	return Metadata{
		KeyID:                   keyID,
		ShortDescription:        description,
		Created:                 codec.Now(),
		AllowedOrigins:          origins,
		PreviouslyUsedOnOrigins: []string{},
	}
}

// OriginAllowed reports whether the key may be used on the given origin,
// either directly or via the wildcard entry.
func (m *Metadata) OriginAllowed(origin string) bool {
	for _, allowed := range m.AllowedOrigins {
		if allowed == OriginWildcard || allowed == origin {
			return true
		}
	}
	return false
}

// RecordUse stamps lastUsed and appends the origin to the set of origins
// the key was actually used on. The caller is responsible for persisting
// the mutation.
func (m *Metadata) RecordUse(origin string, now time.Time) {
	ts := codec.NewTimestamp(now)
	m.LastUsed = &ts
	for _, used := range m.PreviouslyUsedOnOrigins {
		if used == origin {
			return
		}
	}
	m.PreviouslyUsedOnOrigins = append(m.PreviouslyUsedOnOrigins, origin)
}

// SymmetricKey is a stored AES-256-GCM key with a distribution mode.
type SymmetricKey struct {
	Metadata
	DistributionMode DistributionMode `json:"distributionMode"`
	Key              *KeyMaterial     `json:"key"`
}

// RawKey returns the raw AES key bytes.
func (k *SymmetricKey) RawKey() ([]byte, error) {
	return k.Key.KeyData.ToSymmetricKey()
}

// PasswordKey is an AES-256-GCM key derived from a password via
// PBKDF2-SHA-512. Derivation is deterministic: the same password and salt
// always produce the same key and therefore the same keyId.
type PasswordKey struct {
	Metadata
	Salt string       `json:"salt"` // base64
	Key  *KeyMaterial `json:"key"`
}

// RawKey returns the derived AES key bytes.
func (k *PasswordKey) RawKey() ([]byte, error) {
	return k.Key.KeyData.ToSymmetricKey()
}

// SigningKeyPair is the ECDSA P-521 half of a recipient identity.
// PrivateKey is nil for imported public identities.
type SigningKeyPair struct {
	PublicKey  *KeyMaterial `json:"publicKey"`
	PrivateKey *KeyMaterial `json:"privateKey,omitempty"`
}

// EncryptionKeyPair is the RSA-OAEP-4096 half of a recipient identity.
// Signature is the base64 ECDSA signature, under the identity's signing
// private key, over the encryption public key's own content-derived id.
// PrivateKey is nil for imported public identities.
type EncryptionKeyPair struct {
	PublicKey  *KeyMaterial `json:"publicKey"`
	PrivateKey *KeyMaterial `json:"privateKey,omitempty"`
	Signature  string       `json:"signature"`
}

// RecipientKey is a dual key pair forming a recipient identity: an ECDSA
// signing pair whose public key defines the keyId, plus an RSA encryption
// pair bound to that identity by the encryption-key signature.
//
// The dual binding prevents an attacker from attaching their own encryption
// key to a victim's signing identity: the keyId must re-derive from the
// signing public key, and the encryption key must carry a valid signature
// under that signing key.
type RecipientKey struct {
	Metadata
	Signing    *SigningKeyPair    `json:"signing"`
	Encryption *EncryptionKeyPair `json:"encryption"`
}

// HasPrivateKey reports whether this identity carries its private halves
// (as opposed to an imported, public-only recipient).
func (k *RecipientKey) HasPrivateKey() bool {
	return k.Signing != nil && k.Signing.PrivateKey != nil &&
		k.Encryption != nil && k.Encryption.PrivateKey != nil
}

// PublicIdentity returns a deep copy with both private keys stripped,
// suitable for export to other parties.
func (k *RecipientKey) PublicIdentity() *RecipientKey {
	pub := &RecipientKey{
		Metadata: Metadata{
			KeyID:                   k.KeyID,
			ShortDescription:        k.ShortDescription,
			Created:                 k.Created,
			AllowedOrigins:          append([]string{}, k.AllowedOrigins...),
			PreviouslyUsedOnOrigins: append([]string{}, k.PreviouslyUsedOnOrigins...),
		},
	}
	if k.LastUsed != nil {
		lastUsed := *k.LastUsed
		pub.LastUsed = &lastUsed
	}
	if k.Signing != nil {
		pub.Signing = &SigningKeyPair{PublicKey: k.Signing.PublicKey}
	}
	if k.Encryption != nil {
		pub.Encryption = &EncryptionKeyPair{
			PublicKey: k.Encryption.PublicKey,
			Signature: k.Encryption.Signature,
		}
	}
	return pub
}

// KeyAgreementKeyPair is an ephemeral ECDH P-521 pair bound to a single
// origin. A pair ceases to exist once consumed by a successful derivation.
// Pairs loaded from the other party carry only the public key.
type KeyAgreementKeyPair struct {
	KeyID      string          `json:"keyId"`
	Origin     string          `json:"origin"`
	Created    codec.Timestamp `json:"created"`
	PublicKey  *KeyMaterial    `json:"publicKey"`
	PrivateKey *KeyMaterial    `json:"privateKey,omitempty"`
}

// HasPrivateKey reports whether this is a locally generated pair.
func (p *KeyAgreementKeyPair) HasPrivateKey() bool {
	return p.PrivateKey != nil
}
