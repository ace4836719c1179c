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
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/archlens/services/analysis/datatypes"
)

const sampleDiagram = `<mxfile><diagram><mxGraphModel><root>
<mxCell id="0"/><mxCell id="1"/>
<mxCell id="n1" value="EC2 Instance" vertex="1" parent="1"/>
</root></mxGraphModel></diagram></mxfile>`

func TestBadgerDocumentStore_PutAndGet(t *testing.T) {
	store := NewBadgerDocumentStore(testDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "analysis_1a2b3c4d", []byte(sampleDiagram)))

	got, err := store.Get(ctx, "analysis_1a2b3c4d")
	require.NoError(t, err)
	assert.Equal(t, []byte(sampleDiagram), got)
}

func TestBadgerDocumentStore_GetMissing(t *testing.T) {
	store := NewBadgerDocumentStore(testDB(t))

	_, err := store.Get(context.Background(), "analysis_deadbeef")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerDocumentStore_RejectsEmptyDocument(t *testing.T) {
	store := NewBadgerDocumentStore(testDB(t))

	err := store.Put(context.Background(), "analysis_1a2b3c4d", nil)
	require.Error(t, err)
}

func TestBadgerDocumentStore_RejectsOversizedDocument(t *testing.T) {
	store := NewBadgerDocumentStore(testDB(t))

	big := bytes.Repeat([]byte("x"), datatypes.MaxDocumentBytes+1)
	err := store.Put(context.Background(), "analysis_1a2b3c4d", big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestBadgerDocumentStore_Delete(t *testing.T) {
	store := NewBadgerDocumentStore(testDB(t))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "analysis_1a2b3c4d", []byte(sampleDiagram)))
	require.NoError(t, store.Delete(ctx, "analysis_1a2b3c4d"))

	_, err := store.Get(ctx, "analysis_1a2b3c4d")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is not an error.
	require.NoError(t, store.Delete(ctx, "analysis_1a2b3c4d"))
}

func TestBadgerDocumentStore_DocumentsAreIsolatedFromRecords(t *testing.T) {
	db := testDB(t)
	records := NewRecordStore(db)
	documents := NewBadgerDocumentStore(db)
	ctx := context.Background()

	rec := datatypes.NewAnalysisRecord("web-app.xml", "desc")
	require.NoError(t, records.Create(ctx, rec))
	require.NoError(t, documents.Put(ctx, rec.AnalysisID, []byte(sampleDiagram)))

	got, err := records.Get(ctx, rec.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, "web-app.xml", got.FileName)

	doc, err := documents.Get(ctx, rec.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, []byte(sampleDiagram), doc)
}
