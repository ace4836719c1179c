// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/archlens/services/analysis/datatypes"
	"github.com/AleutianAI/archlens/services/analysis/diagram"
	"github.com/AleutianAI/archlens/services/analysis/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ============================================================================
// Fixtures
// ============================================================================

const emptyDiagramXML = `<mxfile host="app.diagrams.net">
  <diagram id="d1" name="Page-1">
    <mxGraphModel><root>
      <mxCell id="0"/>
      <mxCell id="1" parent="0"/>
    </root></mxGraphModel>
  </diagram>
</mxfile>`

const minimalDiagramXML = `<mxfile host="app.diagrams.net">
  <diagram id="d1" name="Page-1">
    <mxGraphModel><root>
      <mxCell id="0"/>
      <mxCell id="1" parent="0"/>
      <mxCell id="s3" value="S3 Bucket" style="sketch=0;shape=mxgraph.aws4.s3;" vertex="1" parent="1"/>
      <mxCell id="ec2" value="EC2 Instance" style="sketch=0;shape=mxgraph.aws4.ec2;" vertex="1" parent="1"/>
    </root></mxGraphModel>
  </diagram>
</mxfile>`

// Ten services across the catalog, five edges. The web tier hangs off
// a load balancer and the serverless tier serves an API gateway.
const richDiagramXML = `<mxfile host="app.diagrams.net">
  <diagram id="d1" name="Page-1">
    <mxGraphModel><root>
      <mxCell id="0"/>
      <mxCell id="1" parent="0"/>
      <mxCell id="igw" value="Internet Gateway" style="sketch=0;shape=mxgraph.aws4.internet_gateway;" vertex="1" parent="1"/>
      <mxCell id="lb" value="Load Balancer" style="sketch=0;shape=mxgraph.aws4.elastic_load_balancing;" vertex="1" parent="1"/>
      <mxCell id="web1" value="EC2 Instance" style="sketch=0;shape=mxgraph.aws4.ec2;" vertex="1" parent="1"/>
      <mxCell id="web2" value="EC2 Instance 2" style="sketch=0;shape=mxgraph.aws4.ec2;" vertex="1" parent="1"/>
      <mxCell id="db" value="RDS Database" style="sketch=0;shape=mxgraph.aws4.rds;" vertex="1" parent="1"/>
      <mxCell id="s3" value="Public S3 Bucket" style="sketch=0;shape=mxgraph.aws4.s3;fillColor=#E05243;" vertex="1" parent="1"/>
      <mxCell id="fn" value="Lambda Function" style="sketch=0;shape=mxgraph.aws4.lambda;" vertex="1" parent="1"/>
      <mxCell id="api" value="API Gateway" style="sketch=0;shape=mxgraph.aws4.api_gateway;" vertex="1" parent="1"/>
      <mxCell id="ddb" value="DynamoDB" style="sketch=0;shape=mxgraph.aws4.dynamodb;" vertex="1" parent="1"/>
      <mxCell id="cw" value="CloudWatch" style="sketch=0;shape=mxgraph.aws4.cloudwatch_2;" vertex="1" parent="1"/>
      <mxCell id="e1" edge="1" source="igw" target="lb" parent="1"/>
      <mxCell id="e2" edge="1" source="lb" target="web1" parent="1"/>
      <mxCell id="e3" edge="1" source="lb" target="web2" parent="1"/>
      <mxCell id="e4" edge="1" source="web1" target="db" parent="1"/>
      <mxCell id="e5" edge="1" source="api" target="fn" parent="1"/>
      <mxCell id="e6" edge="1" source="fn" target="ddb" parent="1"/>
    </root></mxGraphModel>
  </diagram>
</mxfile>`

type captureQueue struct {
	ids []string
}

func (q *captureQueue) Enqueue(analysisID string) bool {
	q.ids = append(q.ids, analysisID)
	return true
}

type env struct {
	records   *storage.RecordStore
	documents storage.DocumentStore
	queue     *captureQueue
	router    *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{
		records:   storage.NewRecordStore(db),
		documents: storage.NewBadgerDocumentStore(db),
		queue:     &captureQueue{},
	}

	e.router = gin.New()
	e.router.GET("/health", HealthCheck)
	e.router.POST("/api/analyze", SubmitAnalysis(e.records, e.documents, e.queue, nil))
	e.router.GET("/api/analysis/:id", GetAnalysisResult(e.records))
	e.router.GET("/api/analysis/:id/status", GetAnalysisStatus(e.records))
	return e
}

func multipartBody(t *testing.T, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e *env) submit(t *testing.T, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, fileName, content)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// ============================================================================
// HealthCheck Tests
// ============================================================================

func TestHealthCheck_ReturnsOK(t *testing.T) {
	e := newEnv(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	e.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
}

// ============================================================================
// SubmitAnalysis Tests
// ============================================================================

func TestSubmitAnalysis_EmptyDiagramIsAccepted(t *testing.T) {
	e := newEnv(t)

	w := e.submit(t, "empty.drawio", emptyDiagramXML)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp datatypes.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AnalysisID)
	assert.Equal(t, datatypes.StatusPending, resp.Status)
	assert.Equal(t, diagram.EmptyDiagramMessage, resp.Description)
}

func TestSubmitAnalysis_MinimalDiagram(t *testing.T) {
	e := newEnv(t)

	w := e.submit(t, "two-services.xml", minimalDiagramXML)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp datatypes.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Description, "2 detected services")
	assert.Contains(t, resp.Description, "S3 Bucket")
	assert.Contains(t, resp.Description, "EC2 Instance")
	assert.Contains(t, resp.Description, "pattern detection is limited")

	// The pending record is durable before the response is written.
	rec, err := e.records.Get(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusPending, rec.Status)
	assert.Equal(t, "two-services.xml", rec.FileName)

	doc, err := e.documents.Get(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, []byte(minimalDiagramXML), doc)

	assert.Equal(t, []string{resp.AnalysisID}, e.queue.ids)
}

func TestSubmitAnalysis_RichDiagramEnumeratesAllServices(t *testing.T) {
	e := newEnv(t)

	w := e.submit(t, "web-app.xml", richDiagramXML)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp datatypes.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Description, "10 detected services")

	for _, label := range []string{
		"Internet Gateway", "Load Balancer", "EC2 Instance", "EC2 Instance 2",
		"RDS Database", "Public S3 Bucket", "Lambda Function", "API Gateway",
		"DynamoDB", "CloudWatch",
	} {
		assert.Contains(t, resp.Description, label)
	}

	assert.Contains(t, resp.Description, "**Architecture Patterns Detected:**")
	assert.Contains(t, resp.Description, "load-balanced-web-application")
	assert.Contains(t, resp.Description, "serverless-api")
}

func TestSubmitAnalysis_NonMarkupIsRejectedWithoutRecord(t *testing.T) {
	e := newEnv(t)

	w := e.submit(t, "notes.xml", "This is just plain text, not a diagram.")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "not a valid diagram")

	// No record, no document, no queue entry.
	ids, err := e.records.ListIncomplete(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, e.queue.ids)
}

func TestSubmitAnalysis_JSONBodyIsRejected(t *testing.T) {
	e := newEnv(t)

	w := e.submit(t, "payload.xml", `{"nodes": ["web", "db"]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitAnalysis_UnsupportedExtension(t *testing.T) {
	e := newEnv(t)

	w := e.submit(t, "diagram.pdf", minimalDiagramXML)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "Unsupported file type")
	assert.Empty(t, e.queue.ids)
}

func TestSubmitAnalysis_OversizedDocument(t *testing.T) {
	e := newEnv(t)

	big := strings.Repeat("x", datatypes.MaxDocumentBytes+1)
	w := e.submit(t, "huge.xml", big)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, e.queue.ids)
}

func TestSubmitAnalysis_RawBodyWithFilenameQuery(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze?filename=raw.drawio",
		strings.NewReader(minimalDiagramXML))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp datatypes.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	rec, err := e.records.Get(context.Background(), resp.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, "raw.drawio", rec.FileName)
}

func TestSubmitAnalysis_DanglingEdgesDoNotBreakSubmission(t *testing.T) {
	e := newEnv(t)

	withDangling := strings.Replace(minimalDiagramXML,
		`</root>`,
		`<mxCell id="e9" edge="1" source="s3" target="ghost" parent="1"/></root>`, 1)

	w := e.submit(t, "dangling.xml", withDangling)
	require.Equal(t, http.StatusAccepted, w.Code)
}

// ============================================================================
// Status and Result Tests
// ============================================================================

func TestGetAnalysisStatus_LifecycleProgression(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	w := e.submit(t, "two-services.xml", minimalDiagramXML)
	require.Equal(t, http.StatusAccepted, w.Code)

	var submitted datatypes.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))

	status := func() datatypes.StatusResponse {
		sw := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/analysis/"+submitted.AnalysisID+"/status", nil)
		e.router.ServeHTTP(sw, req)
		require.Equal(t, http.StatusOK, sw.Code)

		var resp datatypes.StatusResponse
		require.NoError(t, json.Unmarshal(sw.Body.Bytes(), &resp))
		return resp
	}

	got := status()
	assert.Equal(t, datatypes.StatusPending, got.Status)
	assert.Equal(t, 0.0, got.Progress)

	require.NoError(t, e.records.MarkProcessing(ctx, submitted.AnalysisID))
	got = status()
	assert.Equal(t, datatypes.StatusProcessing, got.Status)
	assert.Equal(t, 0.5, got.Progress)
}

func TestGetAnalysisStatus_UnknownID(t *testing.T) {
	e := newEnv(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analysis/analysis_deadbeef/status", nil)
	e.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAnalysisResult_CompletedRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	w := e.submit(t, "two-services.xml", minimalDiagramXML)
	var submitted datatypes.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))

	results := &datatypes.AnalysisResults{
		OverallScore: 3.0,
		Security: datatypes.SecurityAnalysis{
			Score: 3.0,
			Issues: []datatypes.SecurityIssue{{
				Severity:       datatypes.SeverityMedium,
				Component:      "Architecture",
				Issue:          "Limited services detected (2) - may not represent complete architecture",
				Recommendation: "Include all components in the diagram for a complete review",
			}},
		},
	}
	require.NoError(t, e.records.CompleteWithResults(ctx, submitted.AnalysisID, results))

	rw := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analysis/"+submitted.AnalysisID, nil)
	e.router.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)

	var detail datatypes.DetailResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &detail))
	assert.Equal(t, datatypes.StatusCompleted, detail.Status)
	assert.Equal(t, 1.0, detail.Progress)
	assert.Equal(t, "two-services.xml", detail.FileName)
	require.NotNil(t, detail.Results)
	assert.Equal(t, 3.0, detail.Results.OverallScore)
}

func TestGetAnalysisResult_UnknownID(t *testing.T) {
	e := newEnv(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analysis/analysis_deadbeef", nil)
	e.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
