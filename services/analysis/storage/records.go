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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/archlens/services/analysis/datatypes"
)

// ErrNotFound is returned when no record exists for an analysis ID.
var ErrNotFound = errors.New("analysis record not found")

const recordPrefix = "analysis:"

func recordKey(analysisID string) []byte {
	return []byte(recordPrefix + analysisID)
}

// RecordStore persists analysis records. All writes commit before
// returning, so a record observed by a client is always on disk.
type RecordStore struct {
	db *DB
}

// NewRecordStore returns a record store backed by db.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Create persists a new record. The caller must not respond to the
// submitting client until this returns nil: status polling is only
// meaningful if the pending record is durable first.
func (s *RecordStore) Create(ctx context.Context, rec *datatypes.AnalysisRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid analysis record: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal analysis record: %w", err)
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		entry := badger.NewEntry(recordKey(rec.AnalysisID), data).
			WithTTL(datatypes.RecordTTL)
		return txn.SetEntry(entry)
	})
}

// Get loads the record for analysisID. Returns ErrNotFound when the
// ID is unknown or the record has expired.
func (s *RecordStore) Get(ctx context.Context, analysisID string) (*datatypes.AnalysisRecord, error) {
	var rec datatypes.AnalysisRecord
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(analysisID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, analysisID)
			}
			return fmt.Errorf("read analysis record: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// update applies mutate to the stored record inside a single
// read-modify-write transaction and rewrites it with ttl.
//
// Terminal records are never mutated: the first completion or failure
// wins and every later call is a no-op, which keeps stored results
// byte-identical no matter how often the processing phase retries.
func (s *RecordStore) update(ctx context.Context, analysisID string, ttl time.Duration, mutate func(*datatypes.AnalysisRecord)) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(analysisID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, analysisID)
			}
			return fmt.Errorf("read analysis record: %w", err)
		}

		var rec datatypes.AnalysisRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return fmt.Errorf("decode analysis record: %w", err)
		}

		if rec.Status.Terminal() {
			return nil
		}

		mutate(&rec)
		rec.TTL = time.Now().UTC().Add(ttl).Unix()

		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("marshal analysis record: %w", err)
		}
		entry := badger.NewEntry(recordKey(analysisID), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// MarkProcessing transitions a pending record to processing with
// half-done progress. No-op if the record is already terminal.
func (s *RecordStore) MarkProcessing(ctx context.Context, analysisID string) error {
	return s.update(ctx, analysisID, datatypes.RecordTTL, func(rec *datatypes.AnalysisRecord) {
		rec.Status = datatypes.StatusProcessing
		rec.Progress = 0.5
	})
}

// CompleteWithResults transitions a record to completed with its
// final results. The completed state covers both oracle-backed and
// fallback-backed results; a client cannot distinguish them by
// status.
func (s *RecordStore) CompleteWithResults(ctx context.Context, analysisID string, results *datatypes.AnalysisResults) error {
	if err := results.Validate(); err != nil {
		return fmt.Errorf("invalid analysis results: %w", err)
	}
	return s.update(ctx, analysisID, datatypes.RecordTTL, func(rec *datatypes.AnalysisRecord) {
		rec.Status = datatypes.StatusCompleted
		rec.Progress = 1.0
		rec.Results = results
		rec.ErrorMessage = ""
	})
}

// Fail transitions a record to failed with an operator-facing error
// message. Failed records carry a shorter TTL; they exist for
// debugging, not for serving results.
func (s *RecordStore) Fail(ctx context.Context, analysisID string, message string) error {
	return s.update(ctx, analysisID, datatypes.FailedRecordTTL, func(rec *datatypes.AnalysisRecord) {
		rec.Status = datatypes.StatusFailed
		rec.Progress = 1.0
		rec.ErrorMessage = message
	})
}

// ListIncomplete returns the IDs of records that have not reached a
// terminal state. Used on startup to requeue work that was in flight
// when the previous process stopped.
func (s *RecordStore) ListIncomplete(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec datatypes.AnalysisRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode analysis record: %w", err)
			}
			if !rec.Status.Terminal() {
				ids = append(ids, rec.AnalysisID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
