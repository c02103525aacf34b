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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-fieldseal/pkg/metrics"
	"github.com/jeremyhahn/go-fieldseal/pkg/storage"
	"github.com/jeremyhahn/go-fieldseal/pkg/types"
)

// storageKey is the single blob key all five collections persist under.
const storageKey = "fieldseal/keystore"

// storeDocument is the persisted form of the whole store. Every save
// writes all five collections as one storage write; every load replaces
// the in-memory collections wholesale.
type storeDocument struct {
	SymmetricKeys  map[string]*types.SymmetricKey        `json:"symmetricKeys"`
	PasswordKeys   map[string]*types.PasswordKey         `json:"passwordKeys"`
	RecipientKeys  map[string]*types.RecipientKey        `json:"recipientKeys"`
	AgreementPairs map[string]*types.KeyAgreementKeyPair `json:"keyAgreementPairs"`
	PerOriginPairs map[string]*types.RecipientKey        `json:"perOriginPairs"`
}

// Load replaces the in-memory collections with the persisted state, or
// clears them when nothing is persisted. No partial merge.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load is Load without the lock. Caller holds the lock.
func (s *Store) load() error {
	data, err := s.backend.Get(storageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.symmetricKeys = make(map[string]*types.SymmetricKey)
			s.passwordKeys = make(map[string]*types.PasswordKey)
			s.recipientKeys = make(map[string]*types.RecipientKey)
			s.agreementPairs = make(map[string]*types.KeyAgreementKeyPair)
			s.perOriginPairs = make(map[string]*types.RecipientKey)
			return nil
		}
		return fmt.Errorf("failed to read persisted keystore: %w", err)
	}

	var doc storeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse persisted keystore: %w", err)
	}

	s.symmetricKeys = doc.SymmetricKeys
	s.passwordKeys = doc.PasswordKeys
	s.recipientKeys = doc.RecipientKeys
	s.agreementPairs = doc.AgreementPairs
	s.perOriginPairs = doc.PerOriginPairs

	if s.symmetricKeys == nil {
		s.symmetricKeys = make(map[string]*types.SymmetricKey)
	}
	if s.passwordKeys == nil {
		s.passwordKeys = make(map[string]*types.PasswordKey)
	}
	if s.recipientKeys == nil {
		s.recipientKeys = make(map[string]*types.RecipientKey)
	}
	if s.agreementPairs == nil {
		s.agreementPairs = make(map[string]*types.KeyAgreementKeyPair)
	}
	if s.perOriginPairs == nil {
		s.perOriginPairs = make(map[string]*types.RecipientKey)
	}

	s.updateKeyGauges()
	return nil
}

// save serializes all five collections and writes them as a single
// storage write. Caller holds the lock; every mutating operation calls
// save before returning.
func (s *Store) save() error {
	doc := storeDocument{
		SymmetricKeys:  s.symmetricKeys,
		PasswordKeys:   s.passwordKeys,
		RecipientKeys:  s.recipientKeys,
		AgreementPairs: s.agreementPairs,
		PerOriginPairs: s.perOriginPairs,
	}
	data, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to serialize keystore: %w", err)
	}
	if err := s.backend.Put(storageKey, data, nil); err != nil {
		return fmt.Errorf("failed to persist keystore: %w", err)
	}
	s.updateKeyGauges()
	return nil
}

// updateKeyGauges refreshes the per-kind key-count gauges. Caller holds
// the lock.
func (s *Store) updateKeyGauges() {
	metrics.SetKeysTotal(metrics.KindSymmetric, float64(len(s.symmetricKeys)))
	metrics.SetKeysTotal(metrics.KindPassword, float64(len(s.passwordKeys)))
	metrics.SetKeysTotal(metrics.KindRecipient, float64(len(s.recipientKeys)))
	metrics.SetKeysTotal(metrics.KindKeyAgreement, float64(len(s.agreementPairs)))
	metrics.SetKeysTotal(metrics.KindPerOrigin, float64(len(s.perOriginPairs)))
}
