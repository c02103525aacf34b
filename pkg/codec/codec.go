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

// Package codec provides the buffer and interchange conversions shared by the
// fieldseal wire formats: standard base64 and hex for binary envelope fields,
// and base64-wrapped JSON for structures that travel between parties as a
// single opaque string (key-agreement transfer blobs, exported keys).
package codec

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EncodeBase64 encodes binary data using standard base64 encoding.
// All binary envelope fields (IVs, ciphertexts, salts, signatures) use
// this encoding on the wire.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes a standard base64 string.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, nil
}

// EncodeHex encodes binary data as lowercase hex.
func EncodeHex(data []byte) string {
	return hex.EncodeToString(data)
}

// DecodeHex decodes a hex string.
func DecodeHex(s string) ([]byte, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex: %w", err)
	}
	return data, nil
}

// MarshalBase64 serializes a value to JSON and wraps it in standard base64.
// This is the transfer-blob representation used for structures exchanged
// out-of-band between parties.
func MarshalBase64(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transfer blob: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// UnmarshalBase64 decodes a base64-wrapped JSON transfer blob into v.
func UnmarshalBase64(blob string, v any) error {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return fmt.Errorf("failed to decode transfer blob: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal transfer blob: %w", err)
	}
	return nil
}
