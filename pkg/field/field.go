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

// Package field binds one logical input field to a protection-mode
// configuration and the envelope currently sealing its value. A field
// session performs no cryptography itself; every operation dispatches
// into the key store by protection mode.
package field

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-fieldseal/pkg/envelope"
	"github.com/jeremyhahn/go-fieldseal/pkg/keystore"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

// ErrReadOnly is returned when an inbound value change is applied to a
// read-only field.
var ErrReadOnly = errors.New("field: read-only")

// UpdateMode controls how an envelope set on the field reaches the
// registered propagation callback.
type UpdateMode string

const (
	// UpdateAutomatic propagates each new envelope as soon as it is set.
	UpdateAutomatic UpdateMode = "automatic"

	// UpdateManual holds new envelopes until PropagateNewValue is called.
	UpdateManual UpdateMode = "manual"
)

// Options configures a protected field.
type Options struct {
	ProtectionMode   types.ProtectionMode
	DistributionMode types.DistributionMode
	UpdateMode       UpdateMode
	ReadOnly         bool
}

// PropagateFunc receives the field id and the envelope wire form when a
// new value propagates out of the session.
type PropagateFunc func(fieldID, value string)

// ProtectedField is the session state for one protected input: its
// identity, origin, configuration, the envelope currently holding its
// value, and the key-agreement material for multi-party flows.
type ProtectedField struct {
	FieldID string
	Origin  string
	Options Options

	currentValue string
	propagate    PropagateFunc

	// Other-party material for key-agreement and recipient flows.
	otherPartyPublicKey string
	ownPublicKeyID      string
}

// New creates a field session bound to an origin.
func New(origin string, opts Options) *ProtectedField {
	if opts.UpdateMode == "" {
		opts.UpdateMode = UpdateAutomatic
	}
	return &ProtectedField{
		FieldID: uuid.NewString(),
		Origin:  origin,
		Options: opts,
	}
}

// OnPropagate registers the callback invoked when a new envelope leaves
// the session.
func (f *ProtectedField) OnPropagate(fn PropagateFunc) {
	f.propagate = fn
}

// CurrentValue returns the envelope currently sealing the field's value,
// or the empty string when none is set.
func (f *ProtectedField) CurrentValue() string {
	return f.currentValue
}

// EncryptNewValue seals a new plaintext under the key matching the
// field's protection mode and makes the resulting envelope the field's
// current value. The key's concrete type must match the mode.
func (f *ProtectedField) EncryptNewValue(store *keystore.Store, plaintext []byte,
	key any) (string, error) {

	var wire string

	switch f.Options.ProtectionMode {
	case types.ProtectionSymmetric:
		symKey, ok := key.(*types.SymmetricKey)
		if !ok {
			return "", fmt.Errorf("%w: symmetric mode requires a symmetric key",
				keystore.ErrParameter)
		}
		env, err := store.EncryptWithSymmetricKey(plaintext, symKey, f.Origin)
		if err != nil {
			return "", err
		}
		wire, err = env.Marshal()
		if err != nil {
			return "", err
		}

	case types.ProtectionPassword:
		pwKey, ok := key.(*types.PasswordKey)
		if !ok {
			return "", fmt.Errorf("%w: password mode requires a password key",
				keystore.ErrParameter)
		}
		env, err := store.EncryptWithPasswordKey(plaintext, pwKey, f.Origin)
		if err != nil {
			return "", err
		}
		wire, err = env.Marshal()
		if err != nil {
			return "", err
		}

	case types.ProtectionRecipient:
		recipient, ok := key.(*types.RecipientKey)
		if !ok {
			return "", fmt.Errorf("%w: recipient mode requires a recipient key",
				keystore.ErrParameter)
		}
		sender, env, err := store.EncryptWithRecipientKey(plaintext, recipient, f.Origin)
		if err != nil {
			return "", err
		}
		f.ownPublicKeyID = sender.KeyID
		wire, err = env.Marshal()
		if err != nil {
			return "", err
		}

	default:
		return "", fmt.Errorf("%w: unknown protection mode %q",
			keystore.ErrParameter, f.Options.ProtectionMode)
	}

	f.currentValue = wire
	if f.Options.UpdateMode == UpdateAutomatic {
		f.PropagateNewValue()
	}
	return wire, nil
}

// SetCiphertextValue applies an inbound envelope to the field, e.g. a
// value arriving from the hosting page or another party. The envelope is
// shape-checked against the field's protection mode before it is
// accepted; ReadOnly fields reject all inbound changes.
func (f *ProtectedField) SetCiphertextValue(env string) error {
	if f.Options.ReadOnly {
		return ErrReadOnly
	}

	var err error
	switch f.Options.ProtectionMode {
	case types.ProtectionSymmetric:
		_, err = envelope.ParseSymmetric(env)
	case types.ProtectionPassword:
		_, err = envelope.ParsePassword(env)
	case types.ProtectionRecipient:
		_, err = envelope.ParseRecipient(env)
	default:
		return fmt.Errorf("%w: unknown protection mode %q",
			keystore.ErrParameter, f.Options.ProtectionMode)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", keystore.ErrParameter, err)
	}

	f.currentValue = env
	if f.Options.UpdateMode == UpdateAutomatic {
		f.PropagateNewValue()
	}
	return nil
}

// PropagateNewValue pushes the current envelope to the registered
// callback. A no-op when no callback is registered or no value is set.
func (f *ProtectedField) PropagateNewValue() {
	if f.propagate == nil || f.currentValue == "" {
		return
	}
	f.propagate(f.FieldID, f.currentValue)
}

// DecryptCurrentValue opens the field's current envelope through the key
// store, e.g. for display to the user. The password is only consulted in
// password mode and may be empty when the derived key is already stored.
func (f *ProtectedField) DecryptCurrentValue(store *keystore.Store,
	password string) ([]byte, error) {

	if f.currentValue == "" {
		return nil, fmt.Errorf("%w: field has no value", keystore.ErrParameter)
	}

	switch f.Options.ProtectionMode {
	case types.ProtectionSymmetric:
		env, err := envelope.ParseSymmetric(f.currentValue)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", keystore.ErrParameter, err)
		}
		_, plaintext, err := store.DecryptWithSymmetricKey(env, f.Origin)
		return plaintext, err

	case types.ProtectionPassword:
		env, err := envelope.ParsePassword(f.currentValue)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", keystore.ErrParameter, err)
		}
		_, plaintext, err := store.DecryptWithPasswordKey(env, f.Origin, password)
		return plaintext, err

	case types.ProtectionRecipient:
		env, err := envelope.ParseRecipient(f.currentValue)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", keystore.ErrParameter, err)
		}
		_, _, plaintext, err := store.DecryptWithRecipientKey(env, f.Origin, "")
		return plaintext, err

	default:
		return nil, fmt.Errorf("%w: unknown protection mode %q",
			keystore.ErrParameter, f.Options.ProtectionMode)
	}
}

// SetOtherPartyPublicKey stores the other party's transfer blob for an
// in-progress key agreement or recipient exchange.
func (f *ProtectedField) SetOtherPartyPublicKey(blob string) {
	f.otherPartyPublicKey = blob
}

// OtherPartyPublicKey returns the stored other-party transfer blob.
func (f *ProtectedField) OtherPartyPublicKey() string {
	return f.otherPartyPublicKey
}

// SetOwnPublicKeyID records the id of the field's own public key so the
// UI can display it for verification.
func (f *ProtectedField) SetOwnPublicKeyID(keyID string) {
	f.ownPublicKeyID = keyID
}

// OwnPublicKeyID returns the id of the field's own public key.
func (f *ProtectedField) OwnPublicKeyID() string {
	return f.ownPublicKeyID
}
