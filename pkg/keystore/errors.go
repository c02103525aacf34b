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
	"errors"
	"fmt"
)

// ErrParameter is the root of the protocol error taxonomy: malformed
// envelopes, invalid public-key blobs, self key-agreement attempts,
// mismatched recipient ids, wrong passwords, and inconsistent recipient
// key-pair signatures. The subtype sentinels below wrap it, so
// errors.Is(err, ErrParameter) holds for every expected, recoverable
// protocol failure. Anything not in this taxonomy is a fault.
var ErrParameter = errors.New("keystore: invalid parameter")

var (
	// ErrKeyMissing indicates a referenced keyId was not found locally.
	// For password mode this is the trigger to prompt for re-derivation.
	ErrKeyMissing = fmt.Errorf("%w: key not found", ErrParameter)

	// ErrKeyDisallowed indicates the key exists but its allow-list does
	// not permit the requesting origin.
	ErrKeyDisallowed = fmt.Errorf("%w: key not allowed for origin", ErrParameter)

	// ErrInvalidCiphertext indicates AEAD authentication failure or, in
	// recipient mode, a failed signature or identity-binding check.
	ErrInvalidCiphertext = fmt.Errorf("%w: invalid ciphertext", ErrParameter)
)
