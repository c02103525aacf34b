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

// Package envelope defines the wire formats that bind a ciphertext to a
// key, an origin policy, and (for recipient mode) a signed sender identity.
//
// Envelopes travel as JSON between parties and through the hosting page,
// so both halves of the boundary are covered here: marshaling for
// outbound values and structural validation for inbound ones. Validation
// is shape-only; cryptographic checks belong to the keystore protocols.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

// ErrMalformed is returned when an envelope or transfer blob fails
// structural validation. The keystore surfaces it as a parameter error.
var ErrMalformed = errors.New("envelope: malformed")

// Symmetric is the envelope produced by symmetric-key encryption:
// the id of the key that sealed the value, the 12-byte GCM IV, and the
// ciphertext including the authentication tag. IV and ciphertext are
// base64 encoded.
type Symmetric struct {
	KeyID      string `json:"keyId"`
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
}

// Validate checks the envelope carries every required field.
func (e *Symmetric) Validate() error {
	if e.KeyID == "" {
		return fmt.Errorf("%w: symmetric envelope missing keyId", ErrMalformed)
	}
	if e.IV == "" {
		return fmt.Errorf("%w: symmetric envelope missing iv", ErrMalformed)
	}
	if e.Ciphertext == "" {
		return fmt.Errorf("%w: symmetric envelope missing ciphertext", ErrMalformed)
	}
	return nil
}

// Marshal serializes the envelope to its JSON wire form.
func (e *Symmetric) Marshal() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal symmetric envelope: %w", err)
	}
	return string(data), nil
}

// ParseSymmetric parses and structurally validates a symmetric envelope.
func ParseSymmetric(data string) (*Symmetric, error) {
	var env Symmetric
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Password is the envelope produced by password-key encryption. It extends
// the symmetric envelope with the base64 PBKDF2 salt so the key can be
// re-derived from the password alone.
type Password struct {
	Symmetric
	Salt string `json:"salt"`
}

// Validate checks the envelope carries every required field.
func (e *Password) Validate() error {
	if err := e.Symmetric.Validate(); err != nil {
		return err
	}
	if e.Salt == "" {
		return fmt.Errorf("%w: password envelope missing salt", ErrMalformed)
	}
	return nil
}

// Marshal serializes the envelope to its JSON wire form.
func (e *Password) Marshal() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal password envelope: %w", err)
	}
	return string(data), nil
}

// ParsePassword parses and structurally validates a password envelope.
func ParsePassword(data string) (*Password, error) {
	var env Password
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// SignedKeyID binds a key identifier to a signing identity: Value is the
// content-derived id of the ephemeral key, Signature the base64 ECDSA
// signature over it. It travels inside the recipient envelope as a nested
// JSON string.
type SignedKeyID struct {
	Value     string `json:"value"`
	Signature string `json:"signature"`
}

// Marshal serializes the signed key id to its nested JSON string form.
func (s *SignedKeyID) Marshal() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal signed key id: %w", err)
	}
	return string(data), nil
}

// ParseSignedKeyID parses the nested JSON string carried in a recipient
// envelope's signedEphemeralKeyId field.
func ParseSignedKeyID(data string) (*SignedKeyID, error) {
	var signed SignedKeyID
	if err := json.Unmarshal([]byte(data), &signed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if signed.Value == "" || signed.Signature == "" {
		return nil, fmt.Errorf("%w: signed key id missing value or signature", ErrMalformed)
	}
	return &signed, nil
}

// Recipient is the hybrid envelope produced by recipient-mode encryption.
//
// The plaintext is sealed under a fresh ephemeral symmetric key
// (EncryptedValue). The serialized ephemeral key is RSA-OAEP wrapped once
// per party able to decrypt, keyed by that party's key id in
// EncryptedEphemeralKey; both the recipient and the sender get an entry,
// which is what lets a sender reopen their own past ciphertexts.
// SignedEphemeralKeyID and SenderSigningPublicKey authenticate who sealed
// the value.
type Recipient struct {
	EncryptedEphemeralKey  map[string]string  `json:"encryptedEphemeralKey"`
	SignedEphemeralKeyID   string             `json:"signedEphemeralKeyId"`
	SenderSigningPublicKey *types.KeyMaterial `json:"senderSigningPublicKey"`
	SenderKeyID            string             `json:"senderKeyId"`
	RecipientKeyID         string             `json:"recipientKeyId"`
	EncryptedValue         *Symmetric         `json:"encryptedValue"`
}

// Validate checks the envelope carries every required field and at least
// one wrapped ephemeral key entry.
func (e *Recipient) Validate() error {
	if len(e.EncryptedEphemeralKey) == 0 {
		return fmt.Errorf("%w: recipient envelope has no encrypted ephemeral key entries", ErrMalformed)
	}
	for keyID, ct := range e.EncryptedEphemeralKey {
		if keyID == "" || ct == "" {
			return fmt.Errorf("%w: recipient envelope has an empty ephemeral key entry", ErrMalformed)
		}
	}
	if e.SignedEphemeralKeyID == "" {
		return fmt.Errorf("%w: recipient envelope missing signedEphemeralKeyId", ErrMalformed)
	}
	if e.SenderSigningPublicKey == nil || e.SenderSigningPublicKey.KeyData == nil {
		return fmt.Errorf("%w: recipient envelope missing senderSigningPublicKey", ErrMalformed)
	}
	if e.SenderKeyID == "" {
		return fmt.Errorf("%w: recipient envelope missing senderKeyId", ErrMalformed)
	}
	if e.RecipientKeyID == "" {
		return fmt.Errorf("%w: recipient envelope missing recipientKeyId", ErrMalformed)
	}
	if e.EncryptedValue == nil {
		return fmt.Errorf("%w: recipient envelope missing encryptedValue", ErrMalformed)
	}
	return e.EncryptedValue.Validate()
}

// Marshal serializes the envelope to its JSON wire form.
func (e *Recipient) Marshal() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal recipient envelope: %w", err)
	}
	return string(data), nil
}

// ParseRecipient parses and structurally validates a recipient envelope.
func ParseRecipient(data string) (*Recipient, error) {
	var env Recipient
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}
