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
	"crypto/ecdsa"
	"crypto/elliptic"
	cryptorand "crypto/rand"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-fieldseal/pkg/codec"
	"github.com/jeremyhahn/go-fieldseal/pkg/crypto/aesgcm"
	"github.com/jeremyhahn/go-fieldseal/pkg/crypto/ecdh"
	"github.com/jeremyhahn/go-fieldseal/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-fieldseal/pkg/envelope"
	"github.com/jeremyhahn/go-fieldseal/pkg/metrics"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

// hkdfInfo separates keys derived from agreement secrets by purpose.
var hkdfInfo = []byte("aes-256-gcm")

// GenerateKeyAgreementKeyPair creates an ephemeral ECDH P-521 pair bound
// to the origin, persists it keyed by its content-derived id, and returns
// it together with the base64 transfer blob for the other party.
func (s *Store) GenerateKeyAgreementKeyPair(origin string) (*types.KeyAgreementKeyPair, string, error) {
	start := time.Now()

	if origin == "" {
		return nil, "", fmt.Errorf("%w: origin is required", ErrParameter)
	}

	priv, err := ecdsa.GenerateKey(elliptic.P521(), cryptorand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate agreement key: %w", err)
	}
	pubJWK, err := jwk.FromPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, "", err
	}
	privJWK, err := jwk.FromPrivateKey(priv)
	if err != nil {
		return nil, "", err
	}
	keyID, err := pubJWK.ThumbprintSHA256()
	if err != nil {
		return nil, "", fmt.Errorf("failed to derive key id: %w", err)
	}

	pair := &types.KeyAgreementKeyPair{
		KeyID:      keyID,
		Origin:     origin,
		Created:    codec.Now(),
		PublicKey:  types.NewKeyMaterial(types.AlgorithmECDH, pubJWK),
		PrivateKey: types.NewKeyMaterial(types.AlgorithmECDH, privJWK),
	}

	blob, err := (&envelope.AgreementPublicKey{
		PublicKey: pair.PublicKey,
		Origin:    origin,
	}).Marshal()
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.agreementPairs[keyID] = pair
	if err := s.save(); err != nil {
		return nil, "", err
	}

	metrics.RecordOperation(metrics.OpGenerate, metrics.KindKeyAgreement,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return pair, blob, nil
}

// LoadOthersKeyAgreementPublicKey parses the other party's transfer blob
// into a public-only agreement pair.
//
// The blob comes from an untrusted remote party: a malformed blob is
// logged as a warning and surfaces as ErrParameter rather than a fault.
// A blob whose derived id matches one of the caller's own stored pairs
// is rejected; agreeing with oneself would let a reflected blob
// short-circuit the handshake.
func (s *Store) LoadOthersKeyAgreementPublicKey(blob string) (*types.KeyAgreementKeyPair, error) {
	parsed, err := envelope.ParseAgreementPublicKey(blob)
	if err != nil {
		s.logger.Warn("rejecting invalid key-agreement blob", "error", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrParameter, err)
	}

	keyID, err := parsed.PublicKey.KeyID()
	if err != nil {
		s.logger.Warn("rejecting undecodable key-agreement public key", "error", err.Error())
		return nil, fmt.Errorf("%w: unusable agreement public key", ErrParameter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agreementPairs[keyID]; ok {
		return nil, fmt.Errorf("%w: key agreement with own key %s", ErrParameter, keyID)
	}

	return &types.KeyAgreementKeyPair{
		KeyID:     keyID,
		Origin:    parsed.Origin,
		Created:   codec.Now(),
		PublicKey: parsed.PublicKey,
	}, nil
}

// DeriveSymmetricKeyFromKeyAgreement runs ECDH between the caller's own
// pair and the other party's public key and expands the shared secret
// into an AES-256-GCM key tagged with the key-agreement distribution
// mode. Both pairs must be bound to the given origin and the own pair
// must carry a private key.
//
// The own pair is consumed: a successful derivation deletes it in the
// same persist, so a second derivation with the same pair fails with
// ErrKeyMissing. Both parties run the identical derivation, so the
// resulting key bytes and key id match on both sides.
func (s *Store) DeriveSymmetricKeyFromKeyAgreement(own, other *types.KeyAgreementKeyPair,
	origin string) (*types.SymmetricKey, error) {

	start := time.Now()

	if own == nil || other == nil {
		return nil, fmt.Errorf("%w: both agreement pairs are required", ErrParameter)
	}
	if own.Origin != origin || other.Origin != origin {
		return nil, fmt.Errorf("%w: agreement pairs not bound to origin %s", ErrParameter, origin)
	}
	if !own.HasPrivateKey() {
		return nil, fmt.Errorf("%w: own agreement pair has no private key", ErrParameter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.agreementPairs[own.KeyID]
	if !ok {
		metrics.RecordError(metrics.OpDerive, metrics.KindKeyAgreement, "key_missing")
		return nil, fmt.Errorf("%w: key-agreement pair %s", ErrKeyMissing, own.KeyID)
	}

	priv, err := agreementPrivateKey(stored)
	if err != nil {
		return nil, err
	}
	pub, err := agreementPublicKey(other)
	if err != nil {
		return nil, err
	}

	sharedSecret, err := ecdh.DeriveSharedSecret(priv, pub)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}
	raw, err := ecdh.DeriveKey(sharedSecret, nil, hkdfInfo, aesgcm.KeySize)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	key, err := newSymmetricKey(raw, "Key agreement with another party",
		[]string{origin}, types.DistributionKeyAgreement)
	if err != nil {
		return nil, err
	}

	// Consume the ephemeral pair in the same persist as the new key.
	s.symmetricKeys[key.KeyID] = key
	delete(s.agreementPairs, own.KeyID)
	if err := s.save(); err != nil {
		return nil, err
	}

	metrics.RecordOperation(metrics.OpDerive, metrics.KindKeyAgreement,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return key, nil
}

// agreementPrivateKey extracts the ECDSA private key from a locally
// generated agreement pair.
func agreementPrivateKey(pair *types.KeyAgreementKeyPair) (*ecdsa.PrivateKey, error) {
	priv, err := pair.PrivateKey.PrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: unusable agreement private key: %v", ErrParameter, err)
	}
	ecdsaPriv, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: agreement private key is not EC", ErrParameter)
	}
	return ecdsaPriv, nil
}

// agreementPublicKey extracts the ECDSA public key from an agreement
// pair, typically the other party's.
func agreementPublicKey(pair *types.KeyAgreementKeyPair) (*ecdsa.PublicKey, error) {
	if pair.PublicKey == nil {
		return nil, fmt.Errorf("%w: agreement pair has no public key", ErrParameter)
	}
	pub, err := pair.PublicKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("%w: unusable agreement public key: %v", ErrParameter, err)
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: agreement public key is not EC", ErrParameter)
	}
	return ecdsaPub, nil
}
