// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/archlens/services/analysis/datatypes"
)

// DocumentStore persists raw diagram documents between the submit
// phase and the processing phase. The processing phase re-reads the
// document rather than trusting anything derived at submit time.
type DocumentStore interface {
	// Put stores the document bytes for analysisID.
	Put(ctx context.Context, analysisID string, data []byte) error

	// Get loads the document bytes for analysisID. Returns
	// ErrNotFound when no document exists.
	Get(ctx context.Context, analysisID string) ([]byte, error)

	// Delete removes the document for analysisID. Deleting a missing
	// document is not an error.
	Delete(ctx context.Context, analysisID string) error
}

const documentPrefix = "document:"

func documentKey(analysisID string) []byte {
	return []byte(documentPrefix + analysisID)
}

// BadgerDocumentStore stores documents in the embedded database
// alongside the records. Documents inherit the record TTL so a record
// never outlives its source document.
type BadgerDocumentStore struct {
	db *DB
}

// NewBadgerDocumentStore returns a document store backed by db.
func NewBadgerDocumentStore(db *DB) *BadgerDocumentStore {
	return &BadgerDocumentStore{db: db}
}

var _ DocumentStore = (*BadgerDocumentStore)(nil)

func (s *BadgerDocumentStore) Put(ctx context.Context, analysisID string, data []byte) error {
	if len(data) == 0 {
		return errors.New("document is empty")
	}
	if len(data) > datatypes.MaxDocumentBytes {
		return fmt.Errorf("document exceeds %d bytes", datatypes.MaxDocumentBytes)
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		entry := badger.NewEntry(documentKey(analysisID), data).
			WithTTL(datatypes.RecordTTL)
		return txn.SetEntry(entry)
	})
}

func (s *BadgerDocumentStore) Get(ctx context.Context, analysisID string) ([]byte, error) {
	var data []byte
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey(analysisID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: document for %s", ErrNotFound, analysisID)
			}
			return fmt.Errorf("read document: %w", err)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *BadgerDocumentStore) Delete(ctx context.Context, analysisID string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(documentKey(analysisID))
	})
}
