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

package envelope

import (
	"fmt"

	"github.com/jeremyhahn/go-fieldseal/pkg/codec"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

// AgreementPublicKey is the key-agreement transfer blob exchanged between
// parties, out-of-band or via a relay: the local ephemeral public key and
// the origin the agreement is bound to. On the wire it is base64 of the
// JSON form.
type AgreementPublicKey struct {
	PublicKey *types.KeyMaterial `json:"publicKey"`
	Origin    string             `json:"origin"`
}

// Validate checks the blob carries a public key and an origin.
func (a *AgreementPublicKey) Validate() error {
	if a.PublicKey == nil || a.PublicKey.KeyData == nil {
		return fmt.Errorf("%w: agreement blob missing publicKey", ErrMalformed)
	}
	if a.Origin == "" {
		return fmt.Errorf("%w: agreement blob missing origin", ErrMalformed)
	}
	return nil
}

// Marshal serializes the blob to its base64 transfer form.
func (a *AgreementPublicKey) Marshal() (string, error) {
	blob, err := codec.MarshalBase64(a)
	if err != nil {
		return "", fmt.Errorf("failed to marshal agreement blob: %w", err)
	}
	return blob, nil
}

// ParseAgreementPublicKey decodes and structurally validates a base64
// key-agreement transfer blob received from the other party.
func ParseAgreementPublicKey(blob string) (*AgreementPublicKey, error) {
	var a AgreementPublicKey
	if err := codec.UnmarshalBase64(blob, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}
