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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/archlens/services/analysis/datatypes"
)

// ============================================================================
// Test Helpers
// ============================================================================

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testResults(score float64) *datatypes.AnalysisResults {
	return &datatypes.AnalysisResults{
		OverallScore: score,
		Security: datatypes.SecurityAnalysis{
			Score: score,
			Issues: []datatypes.SecurityIssue{{
				Severity:       datatypes.SeverityHigh,
				Component:      "S3 Bucket",
				Issue:          "Bucket allows public read access",
				Recommendation: "Enable Block Public Access",
			}},
			Recommendations: []string{"Review IAM policies"},
		},
		Patterns: []string{"load-balanced-web-application"},
	}
}

// ============================================================================
// RecordStore Tests
// ============================================================================

func TestRecordStore_CreateAndGet(t *testing.T) {
	store := NewRecordStore(testDB(t))
	ctx := context.Background()

	rec := datatypes.NewAnalysisRecord("web-app.xml", "A three tier web application.")
	require.NoError(t, store.Create(ctx, rec))

	got, err := store.Get(ctx, rec.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, rec.AnalysisID, got.AnalysisID)
	assert.Equal(t, datatypes.StatusPending, got.Status)
	assert.Equal(t, "web-app.xml", got.FileName)
	assert.Equal(t, "A three tier web application.", got.Description)
	assert.Equal(t, 0.0, got.Progress)
	assert.Nil(t, got.Results)
}

func TestRecordStore_GetUnknownID(t *testing.T) {
	store := NewRecordStore(testDB(t))

	_, err := store.Get(context.Background(), "analysis_deadbeef")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordStore_CreateRejectsInvalidRecord(t *testing.T) {
	store := NewRecordStore(testDB(t))

	rec := datatypes.NewAnalysisRecord("web-app.xml", "desc")
	rec.Status = datatypes.AnalysisStatus("exploded")

	err := store.Create(context.Background(), rec)
	require.Error(t, err)

	_, err = store.Get(context.Background(), rec.AnalysisID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordStore_MarkProcessing(t *testing.T) {
	store := NewRecordStore(testDB(t))
	ctx := context.Background()

	rec := datatypes.NewAnalysisRecord("web-app.xml", "desc")
	require.NoError(t, store.Create(ctx, rec))
	require.NoError(t, store.MarkProcessing(ctx, rec.AnalysisID))

	got, err := store.Get(ctx, rec.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusProcessing, got.Status)
	assert.Equal(t, 0.5, got.Progress)
}

func TestRecordStore_CompleteWithResults(t *testing.T) {
	store := NewRecordStore(testDB(t))
	ctx := context.Background()

	rec := datatypes.NewAnalysisRecord("web-app.xml", "desc")
	require.NoError(t, store.Create(ctx, rec))
	require.NoError(t, store.MarkProcessing(ctx, rec.AnalysisID))
	require.NoError(t, store.CompleteWithResults(ctx, rec.AnalysisID, testResults(7.5)))

	got, err := store.Get(ctx, rec.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
	assert.Empty(t, got.ErrorMessage)
	require.NotNil(t, got.Results)
	assert.Equal(t, 7.5, got.Results.OverallScore)
	require.Len(t, got.Results.Security.Issues, 1)
	assert.Equal(t, "S3 Bucket", got.Results.Security.Issues[0].Component)
}

// The first terminal write wins. Re-running the processing phase for an
// already completed analysis must not change the stored results.
func TestRecordStore_CompleteIsIdempotent(t *testing.T) {
	store := NewRecordStore(testDB(t))
	ctx := context.Background()

	rec := datatypes.NewAnalysisRecord("web-app.xml", "desc")
	require.NoError(t, store.Create(ctx, rec))
	require.NoError(t, store.CompleteWithResults(ctx, rec.AnalysisID, testResults(7.5)))

	first, err := store.Get(ctx, rec.AnalysisID)
	require.NoError(t, err)

	require.NoError(t, store.CompleteWithResults(ctx, rec.AnalysisID, testResults(2.0)))
	require.NoError(t, store.Fail(ctx, rec.AnalysisID, "late failure"))

	second, err := store.Get(ctx, rec.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 7.5, second.Results.OverallScore)
	assert.Equal(t, datatypes.StatusCompleted, second.Status)
}

func TestRecordStore_CompleteRejectsInvalidResults(t *testing.T) {
	store := NewRecordStore(testDB(t))
	ctx := context.Background()

	rec := datatypes.NewAnalysisRecord("web-app.xml", "desc")
	require.NoError(t, store.Create(ctx, rec))

	bad := testResults(15.0)
	err := store.CompleteWithResults(ctx, rec.AnalysisID, bad)
	require.Error(t, err)

	got, err := store.Get(ctx, rec.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusPending, got.Status)
}

func TestRecordStore_FailSetsMessageAndShortTTL(t *testing.T) {
	store := NewRecordStore(testDB(t))
	ctx := context.Background()

	rec := datatypes.NewAnalysisRecord("web-app.xml", "desc")
	require.NoError(t, store.Create(ctx, rec))
	require.NoError(t, store.Fail(ctx, rec.AnalysisID, "storage write failed"))

	got, err := store.Get(ctx, rec.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusFailed, got.Status)
	assert.Equal(t, "storage write failed", got.ErrorMessage)

	expiry := time.Unix(got.TTL, 0)
	assert.WithinDuration(t, time.Now().Add(datatypes.FailedRecordTTL), expiry, time.Minute)
}

func TestRecordStore_ListIncomplete(t *testing.T) {
	store := NewRecordStore(testDB(t))
	ctx := context.Background()

	pending := datatypes.NewAnalysisRecord("a.xml", "desc")
	processing := datatypes.NewAnalysisRecord("b.xml", "desc")
	done := datatypes.NewAnalysisRecord("c.xml", "desc")
	failed := datatypes.NewAnalysisRecord("d.xml", "desc")
	for _, rec := range []*datatypes.AnalysisRecord{pending, processing, done, failed} {
		require.NoError(t, store.Create(ctx, rec))
	}
	require.NoError(t, store.MarkProcessing(ctx, processing.AnalysisID))
	require.NoError(t, store.CompleteWithResults(ctx, done.AnalysisID, testResults(5.0)))
	require.NoError(t, store.Fail(ctx, failed.AnalysisID, "boom"))

	ids, err := store.ListIncomplete(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{pending.AnalysisID, processing.AnalysisID}, ids)
}

func TestRecordStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = 0

	db, err := OpenDB(cfg)
	require.NoError(t, err)

	store := NewRecordStore(db)
	ctx := context.Background()
	rec := datatypes.NewAnalysisRecord("web-app.xml", "desc")
	require.NoError(t, store.Create(ctx, rec))
	require.NoError(t, db.Close())

	db, err = OpenDB(cfg)
	require.NoError(t, err)
	defer db.Close()

	got, err := NewRecordStore(db).Get(ctx, rec.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusPending, got.Status)
	assert.Equal(t, "web-app.xml", got.FileName)
}

func TestRecordStore_CancelledContext(t *testing.T) {
	store := NewRecordStore(testDB(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Create(ctx, datatypes.NewAnalysisRecord("a.xml", "desc"))
	require.Error(t, err)
}
