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
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-fieldseal/pkg/codec"
	"github.com/jeremyhahn/go-fieldseal/pkg/crypto/aesgcm"
	"github.com/jeremyhahn/go-fieldseal/pkg/crypto/signature"
	"github.com/jeremyhahn/go-fieldseal/pkg/crypto/wrapping"
	"github.com/jeremyhahn/go-fieldseal/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-fieldseal/pkg/envelope"
	"github.com/jeremyhahn/go-fieldseal/pkg/metrics"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

// rsaKeyBits is the modulus size of recipient encryption key pairs.
const rsaKeyBits = 4096

// GenerateRecipientKey creates a recipient identity: an ECDSA P-521
// signing pair whose public key defines the key id, plus an RSA-OAEP-4096
// encryption pair whose public key carries a signature, under the signing
// private key, over the encryption key's own content-derived id. The key
// is persisted and returned.
func (s *Store) GenerateRecipientKey(description string,
	allowedOrigins []string) (*types.RecipientKey, error) {

	start := time.Now()

	key, err := newRecipientKey(description, allowedOrigins)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipientKeys[key.KeyID] = key
	if err := s.save(); err != nil {
		return nil, err
	}

	metrics.RecordOperation(metrics.OpGenerate, metrics.KindRecipient,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return key, nil
}

// EncryptWithRecipientKey seals plaintext to a recipient using the hybrid
// signed-ephemeral-key scheme:
//
// A fresh ephemeral AES key encrypts the plaintext. The serialized
// ephemeral key is RSA-OAEP wrapped under both the recipient's and the
// sender's encryption public keys, so either party can decrypt later.
// The ephemeral key's id is signed under the sender's per-origin signing
// key, authenticating who sealed the value.
//
// Both key pairs are dual-binding validated before any wrapping; an
// inconsistent recipient key is rejected with ErrParameter before a
// single byte is encrypted to it.
//
// Returns the sender's per-origin key pair alongside the envelope.
func (s *Store) EncryptWithRecipientKey(plaintext []byte, recipient *types.RecipientKey,
	origin string) (*types.RecipientKey, *envelope.Recipient, error) {

	start := time.Now()

	if recipient == nil {
		return nil, nil, fmt.Errorf("%w: recipient key is required", ErrParameter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sender, err := s.perOriginPair(origin)
	if err != nil {
		return nil, nil, err
	}

	// Ephemeral key, never persisted; origin-bound so the later decrypt
	// enforces the same origin policy as the symmetric path.
	rawEphemeral, err := aesgcm.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	ephemeral, err := newSymmetricKey(rawEphemeral, "", []string{origin},
		types.DistributionUserOnly)
	if err != nil {
		return nil, nil, err
	}

	encryptedValue, err := sealSymmetric(ephemeral, plaintext)
	if err != nil {
		return nil, nil, err
	}

	signingPriv, err := signingPrivateKey(sender)
	if err != nil {
		return nil, nil, err
	}
	sig, err := signature.Sign(signingPriv, ephemeral.KeyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign ephemeral key id: %w", err)
	}
	signedKeyID := &envelope.SignedKeyID{
		Value:     ephemeral.KeyID,
		Signature: codec.EncodeBase64(sig),
	}
	signedKeyIDJSON, err := signedKeyID.Marshal()
	if err != nil {
		return nil, nil, err
	}

	serializedEphemeral, err := json.Marshal(ephemeral)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize ephemeral key: %w", err)
	}

	encryptedEphemeralKey := make(map[string]string, 2)
	for _, party := range []*types.RecipientKey{recipient, sender} {
		if err := validateRecipientKey(party); err != nil {
			metrics.RecordError(metrics.OpEncrypt, metrics.KindRecipient, errorType(err))
			return nil, nil, err
		}
		if !party.OriginAllowed(origin) {
			metrics.RecordError(metrics.OpEncrypt, metrics.KindRecipient, "key_disallowed")
			return nil, nil, fmt.Errorf("%w: recipient key %s on origin %s",
				ErrKeyDisallowed, party.KeyID, origin)
		}
		wrapped, err := wrapEphemeralKey(serializedEphemeral, party)
		if err != nil {
			return nil, nil, err
		}
		encryptedEphemeralKey[party.KeyID] = wrapped
	}

	env := &envelope.Recipient{
		EncryptedEphemeralKey:  encryptedEphemeralKey,
		SignedEphemeralKeyID:   signedKeyIDJSON,
		SenderSigningPublicKey: sender.Signing.PublicKey,
		SenderKeyID:            sender.KeyID,
		RecipientKeyID:         recipient.KeyID,
		EncryptedValue:         encryptedValue,
	}

	if stored, ok := s.recipientKeys[recipient.KeyID]; ok {
		stored.RecordUse(origin, time.Now())
	}
	sender.RecordUse(origin, time.Now())
	if err := s.save(); err != nil {
		return nil, nil, err
	}

	metrics.RecordOperation(metrics.OpEncrypt, metrics.KindRecipient,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return sender, env, nil
}

// DecryptWithRecipientKey opens a recipient envelope:
//
// A usable decryption pair is selected, preferring the caller's own
// per-origin pair when its id appears in the envelope, otherwise the
// first stored recipient key whose id appears, carries a private key,
// and is allowed for the origin. The ephemeral key is unwrapped under
// that pair, the sender identity and ephemeral-key signature are
// verified, and the value is opened under the ephemeral key with the
// same origin check as the symmetric path.
//
// When recipientKeyID is non-empty the envelope must name that
// recipient. Returns the sender's key id, the nominal recipient key
// when known locally, and the plaintext.
func (s *Store) DecryptWithRecipientKey(env *envelope.Recipient, origin,
	recipientKeyID string) (string, *types.RecipientKey, []byte, error) {

	start := time.Now()

	if env == nil {
		return "", nil, nil, fmt.Errorf("%w: envelope is required", ErrParameter)
	}
	if err := env.Validate(); err != nil {
		return "", nil, nil, fmt.Errorf("%w: %v", ErrParameter, err)
	}
	if recipientKeyID != "" && env.RecipientKeyID != recipientKeyID {
		return "", nil, nil, fmt.Errorf("%w: envelope recipient %s does not match %s",
			ErrParameter, env.RecipientKeyID, recipientKeyID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pair := s.selectDecryptionPair(env, origin)
	if pair == nil {
		metrics.RecordError(metrics.OpDecrypt, metrics.KindRecipient, "parameter")
		return "", nil, nil, fmt.Errorf("%w: no decryption key available", ErrParameter)
	}

	ephemeral, err := unwrapEphemeralKey(env.EncryptedEphemeralKey[pair.KeyID], pair)
	if err != nil {
		metrics.RecordError(metrics.OpDecrypt, metrics.KindRecipient, errorType(err))
		return "", nil, nil, err
	}

	senderPub, err := verifySenderIdentity(env)
	if err != nil {
		metrics.RecordError(metrics.OpDecrypt, metrics.KindRecipient, errorType(err))
		return "", nil, nil, err
	}

	if err := verifyEphemeralSignature(env, senderPub, ephemeral); err != nil {
		metrics.RecordError(metrics.OpDecrypt, metrics.KindRecipient, errorType(err))
		return "", nil, nil, err
	}

	if !ephemeral.OriginAllowed(origin) {
		metrics.RecordError(metrics.OpDecrypt, metrics.KindRecipient, "key_disallowed")
		return "", nil, nil, fmt.Errorf("%w: ephemeral key on origin %s",
			ErrKeyDisallowed, origin)
	}
	plaintext, err := openSymmetric(ephemeral.Key, env.EncryptedValue)
	if err != nil {
		metrics.RecordError(metrics.OpDecrypt, metrics.KindRecipient, errorType(err))
		return "", nil, nil, err
	}

	// Nominal recipient for the caller; its origin policy is only
	// relevant if the caller subsequently re-encrypts.
	recipient := s.resolveRecipient(env.RecipientKeyID)

	pair.RecordUse(origin, time.Now())
	if err := s.save(); err != nil {
		return "", nil, nil, err
	}

	metrics.RecordOperation(metrics.OpDecrypt, metrics.KindRecipient,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return env.SenderKeyID, recipient, plaintext, nil
}

// selectDecryptionPair picks the key pair used to unwrap the ephemeral
// key. Caller holds the lock.
func (s *Store) selectDecryptionPair(env *envelope.Recipient, origin string) *types.RecipientKey {
	if own, ok := s.perOriginPairs[origin]; ok {
		if _, present := env.EncryptedEphemeralKey[own.KeyID]; present {
			return own
		}
	}
	for _, key := range s.recipientKeys {
		if _, present := env.EncryptedEphemeralKey[key.KeyID]; !present {
			continue
		}
		if !key.HasPrivateKey() || !key.OriginAllowed(origin) {
			continue
		}
		return key
	}
	return nil
}

// resolveRecipient finds the locally known key object the envelope names
// as recipient, either a stored recipient key or one of the store's own
// per-origin identities. Caller holds the lock.
func (s *Store) resolveRecipient(keyID string) *types.RecipientKey {
	if key, ok := s.recipientKeys[keyID]; ok {
		return key
	}
	for _, pair := range s.perOriginPairs {
		if pair.KeyID == keyID {
			return pair
		}
	}
	return nil
}

// verifySenderIdentity reconstructs the sender's signing public key and
// checks the envelope's sender id re-derives from it. A key that does
// not hash to the claimed id is a spoofed sender.
func verifySenderIdentity(env *envelope.Recipient) (*ecdsa.PublicKey, error) {
	derived, err := env.SenderSigningPublicKey.KeyID()
	if err != nil {
		return nil, fmt.Errorf("%w: unusable sender signing key", ErrParameter)
	}
	if derived != env.SenderKeyID {
		return nil, fmt.Errorf("%w: sender identity mismatch", ErrInvalidCiphertext)
	}
	pub, err := env.SenderSigningPublicKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("%w: unusable sender signing key", ErrParameter)
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: sender signing key is not ECDSA", ErrParameter)
	}
	return ecdsaPub, nil
}

// verifyEphemeralSignature checks the signed ephemeral key id against
// the sender's signing key and against the unwrapped ephemeral key
// itself. The id is re-derived from the raw key bytes: the wrapped blob
// comes from whoever built the envelope, so its embedded keyId field is
// never trusted. Without the re-derivation a replayed signed key id
// plus a substituted key would decrypt and be attributed to the
// original sender.
func verifyEphemeralSignature(env *envelope.Recipient, senderPub *ecdsa.PublicKey,
	ephemeral *types.SymmetricKey) error {

	signed, err := envelope.ParseSignedKeyID(env.SignedEphemeralKeyID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParameter, err)
	}
	sig, err := codec.DecodeBase64(signed.Signature)
	if err != nil {
		return fmt.Errorf("%w: undecodable ephemeral key signature", ErrParameter)
	}
	if err := signature.Verify(senderPub, signed.Value, sig); err != nil {
		return fmt.Errorf("%w: invalid signature", ErrInvalidCiphertext)
	}

	raw, err := ephemeral.RawKey()
	if err != nil {
		return fmt.Errorf("%w: malformed ephemeral key", ErrParameter)
	}
	keyJWK, err := jwk.FromSymmetricKey(raw, types.AlgorithmAES256GCM)
	if err != nil {
		return fmt.Errorf("%w: malformed ephemeral key", ErrParameter)
	}
	derived, err := keyJWK.ThumbprintSHA256()
	if err != nil {
		return fmt.Errorf("%w: malformed ephemeral key", ErrParameter)
	}
	if derived != signed.Value {
		return fmt.Errorf("%w: invalid signature", ErrInvalidCiphertext)
	}
	return nil
}

// wrapEphemeralKey RSA-OAEP encrypts the serialized ephemeral key under
// a party's encryption public key.
func wrapEphemeralKey(serializedEphemeral []byte, party *types.RecipientKey) (string, error) {
	pub, err := party.Encryption.PublicKey.PublicKey()
	if err != nil {
		return "", fmt.Errorf("%w: unusable encryption key for %s: %v",
			ErrParameter, party.KeyID, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return "", fmt.Errorf("%w: encryption key for %s is not RSA", ErrParameter, party.KeyID)
	}
	wrapped, err := wrapping.Wrap(serializedEphemeral, rsaPub)
	if err != nil {
		return "", fmt.Errorf("failed to wrap ephemeral key for %s: %w", party.KeyID, err)
	}
	return codec.EncodeBase64(wrapped), nil
}

// unwrapEphemeralKey reverses wrapEphemeralKey with the pair's private
// key. A tampered wrapping surfaces as ErrInvalidCiphertext.
func unwrapEphemeralKey(entry string, pair *types.RecipientKey) (*types.SymmetricKey, error) {
	priv, err := pair.Encryption.PrivateKey.PrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: unusable encryption private key: %v", ErrParameter, err)
	}
	rsaPriv, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: encryption private key is not RSA", ErrParameter)
	}
	wrapped, err := codec.DecodeBase64(entry)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable ephemeral key entry", ErrParameter)
	}
	serialized, err := wrapping.Unwrap(wrapped, rsaPriv)
	if err != nil {
		return nil, fmt.Errorf("%w: ephemeral key unwrap failed", ErrInvalidCiphertext)
	}
	var ephemeral types.SymmetricKey
	if err := json.Unmarshal(serialized, &ephemeral); err != nil {
		return nil, fmt.Errorf("%w: malformed ephemeral key", ErrParameter)
	}
	return &ephemeral, nil
}

// newRecipientKey generates the signing and encryption pairs and binds
// them: the key id re-derives from the signing public key, and the
// encryption public key's own id is signed under the signing private key.
func newRecipientKey(description string, allowedOrigins []string) (*types.RecipientKey, error) {
	signingPriv, err := ecdsa.GenerateKey(elliptic.P521(), cryptorand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	encryptionPriv, err := rsa.GenerateKey(cryptorand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}

	signingPubJWK, err := jwk.FromPublicKey(&signingPriv.PublicKey)
	if err != nil {
		return nil, err
	}
	signingPrivJWK, err := jwk.FromPrivateKey(signingPriv)
	if err != nil {
		return nil, err
	}
	encryptionPubJWK, err := jwk.FromPublicKey(&encryptionPriv.PublicKey)
	if err != nil {
		return nil, err
	}
	encryptionPrivJWK, err := jwk.FromPrivateKey(encryptionPriv)
	if err != nil {
		return nil, err
	}

	keyID, err := signingPubJWK.ThumbprintSHA256()
	if err != nil {
		return nil, fmt.Errorf("failed to derive key id: %w", err)
	}
	encryptionKeyID, err := encryptionPubJWK.ThumbprintSHA256()
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key id: %w", err)
	}
	sig, err := signature.Sign(signingPriv, encryptionKeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign encryption key id: %w", err)
	}

	return &types.RecipientKey{
		Metadata: types.NewMetadata(keyID, description, allowedOrigins),
		Signing: &types.SigningKeyPair{
			PublicKey:  types.NewKeyMaterial(types.AlgorithmECDSAP521, signingPubJWK),
			PrivateKey: types.NewKeyMaterial(types.AlgorithmECDSAP521, signingPrivJWK),
		},
		Encryption: &types.EncryptionKeyPair{
			PublicKey:  types.NewKeyMaterial(types.AlgorithmRSAOAEP, encryptionPubJWK),
			PrivateKey: types.NewKeyMaterial(types.AlgorithmRSAOAEP, encryptionPrivJWK),
			Signature:  codec.EncodeBase64(sig),
		},
	}, nil
}

// validateRecipientKey enforces the dual binding that makes a recipient
// identity trustworthy: the key id must re-derive from the signing
// public key, and the encryption public key must carry a valid signature
// under that signing key over exactly its own content-derived id.
// Without this an attacker could attach an arbitrary encryption key to a
// victim's signing identity.
func validateRecipientKey(key *types.RecipientKey) error {
	if key == nil || key.Signing == nil || key.Signing.PublicKey == nil ||
		key.Encryption == nil || key.Encryption.PublicKey == nil {
		return fmt.Errorf("%w: incomplete recipient key", ErrParameter)
	}

	derived, err := key.Signing.PublicKey.KeyID()
	if err != nil {
		return fmt.Errorf("%w: unusable signing key: %v", ErrParameter, err)
	}
	if derived != key.KeyID {
		return fmt.Errorf("%w: recipient key id does not match signing key", ErrParameter)
	}

	encryptionKeyID, err := key.Encryption.PublicKey.KeyID()
	if err != nil {
		return fmt.Errorf("%w: unusable encryption key: %v", ErrParameter, err)
	}
	pub, err := key.Signing.PublicKey.PublicKey()
	if err != nil {
		return fmt.Errorf("%w: unusable signing key: %v", ErrParameter, err)
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: signing key is not ECDSA", ErrParameter)
	}
	sig, err := codec.DecodeBase64(key.Encryption.Signature)
	if err != nil {
		return fmt.Errorf("%w: undecodable encryption key signature", ErrParameter)
	}
	if err := signature.Verify(ecdsaPub, encryptionKeyID, sig); err != nil {
		return fmt.Errorf("%w: inconsistent recipient key-pair signature", ErrParameter)
	}
	return nil
}

// signingPrivateKey extracts the ECDSA private key from a recipient
// identity that carries its private halves.
func signingPrivateKey(key *types.RecipientKey) (*ecdsa.PrivateKey, error) {
	if !key.HasPrivateKey() {
		return nil, fmt.Errorf("%w: recipient key %s has no private key", ErrParameter, key.KeyID)
	}
	priv, err := key.Signing.PrivateKey.PrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: unusable signing private key: %v", ErrParameter, err)
	}
	ecdsaPriv, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: signing private key is not ECDSA", ErrParameter)
	}
	return ecdsaPriv, nil
}
