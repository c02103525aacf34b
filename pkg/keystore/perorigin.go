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
	"fmt"
	"time"

	"github.com/jeremyhahn/go-fieldseal/pkg/metrics"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

// PerOriginKeyPair returns the store's own sender identity for the
// origin, creating and persisting one on first use. The identity is a
// full recipient key restricted to that origin; it is not listed among
// user-managed recipient keys, but its id can be displayed for
// verification.
func (s *Store) PerOriginKeyPair(origin string) (*types.RecipientKey, error) {
	if origin == "" {
		return nil, fmt.Errorf("%w: origin is required", ErrParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perOriginPair(origin)
}

// perOriginPair is PerOriginKeyPair without the lock. Caller holds the
// lock.
func (s *Store) perOriginPair(origin string) (*types.RecipientKey, error) {
	if pair, ok := s.perOriginPairs[origin]; ok {
		return pair, nil
	}

	start := time.Now()
	pair, err := newRecipientKey(fmt.Sprintf("Sender identity for %s", origin),
		[]string{origin})
	if err != nil {
		return nil, err
	}

	s.perOriginPairs[origin] = pair
	if err := s.save(); err != nil {
		return nil, err
	}
	s.logger.Debug("created per-origin key pair", "origin", origin, "keyId", pair.KeyID)

	metrics.RecordOperation(metrics.OpGenerate, metrics.KindPerOrigin,
		metrics.StatusSuccess, time.Since(start).Seconds())
	return pair, nil
}
