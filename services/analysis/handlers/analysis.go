// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP surface of the analysis
// service: diagram submission plus status and result polling.
//
// Submission is synchronous only up to the pending record: the
// diagram is parsed, described, and persisted before the response is
// written, so a client that polls immediately always finds its
// record. Scoring happens afterwards in the processor.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/archlens/services/analysis/datatypes"
	"github.com/AleutianAI/archlens/services/analysis/diagram"
	"github.com/AleutianAI/archlens/services/analysis/observability"
	"github.com/AleutianAI/archlens/services/analysis/storage"
)

// Enqueuer hands accepted analyses to the background workers.
type Enqueuer interface {
	Enqueue(analysisID string) bool
}

var allowedExtensions = map[string]bool{
	".xml":    true,
	".drawio": true,
}

const malformedDocumentMessage = "The uploaded file is not a valid diagram document. " +
	"Export the diagram as XML from draw.io and try again."

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "analysis"})
}

// SubmitAnalysis accepts a diagram document and creates a pending
// analysis. The response carries the immediate tier-aware description;
// scores arrive later through the result endpoint.
//
// A document that is not parseable markup is the only submission that
// produces no record at all.
func SubmitAnalysis(records *storage.RecordStore, documents storage.DocumentStore, queue Enqueuer, catalog func() *diagram.Catalog) gin.HandlerFunc {
	if catalog == nil {
		catalog = diagram.DefaultCatalog
	}

	return func(c *gin.Context) {
		fileName, data, err := readDiagram(c)
		if err != nil {
			slog.Error("Failed to read uploaded diagram", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read the uploaded file"})
			return
		}

		if !allowedExtensions[strings.ToLower(filepath.Ext(fileName))] {
			recordSubmission(observability.SubmissionUnsupportedType)
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Unsupported file type. Upload a .xml or .drawio export.",
			})
			return
		}

		if len(data) > datatypes.MaxDocumentBytes {
			recordSubmission(observability.SubmissionTooLarge)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Diagram exceeds the 10 MiB upload limit",
			})
			return
		}

		graph, err := diagram.Parse(data)
		if err != nil {
			if errors.Is(err, diagram.ErrMalformedDocument) {
				recordSubmission(observability.SubmissionMalformed)
				slog.Info("Rejected malformed diagram upload", "file_name", fileName)
				c.JSON(http.StatusBadRequest, gin.H{"error": malformedDocumentMessage})
				return
			}
			slog.Error("Diagram parse failed", "file_name", fileName, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": malformedDocumentMessage})
			return
		}

		cat := catalog()
		summary := cat.ClassifyGraph(graph)
		findings := diagram.DetectPatterns(graph, summary)
		description := diagram.Describe(graph, summary, findings)

		rec := datatypes.NewAnalysisRecord(fileName, description)

		// The pending record must be durable before the client hears
		// the analysis ID, otherwise an immediate status poll 404s.
		if err := records.Create(c.Request.Context(), rec); err != nil {
			slog.Error("Failed to persist analysis record", "file_name", fileName, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start analysis"})
			return
		}
		if err := documents.Put(c.Request.Context(), rec.AnalysisID, data); err != nil {
			slog.Error("Failed to persist diagram document",
				"analysis_id", rec.AnalysisID, "error", err)
			if ferr := records.Fail(c.Request.Context(), rec.AnalysisID, "diagram document could not be stored"); ferr != nil {
				slog.Error("Failed to mark analysis failed", "analysis_id", rec.AnalysisID, "error", ferr)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start analysis"})
			return
		}

		queue.Enqueue(rec.AnalysisID)
		recordSubmission(observability.SubmissionAccepted)

		slog.Info("Accepted diagram for analysis",
			"analysis_id", rec.AnalysisID,
			"file_name", fileName,
			"nodes", len(graph.Nodes),
			"edges", len(graph.Edges),
			"tier", summary.Tier.String())

		c.JSON(http.StatusAccepted, datatypes.SubmitResponse{
			AnalysisID:  rec.AnalysisID,
			Status:      datatypes.StatusPending,
			Message:     "Analysis started. Poll the status endpoint for progress.",
			Description: description,
		})
	}
}

// GetAnalysisStatus returns the lightweight polling view of a record.
func GetAnalysisStatus(records *storage.RecordStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		analysisID := c.Param("id")

		rec, err := records.Get(c.Request.Context(), analysisID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
				return
			}
			slog.Error("Failed to load analysis record", "analysis_id", analysisID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analysis"})
			return
		}

		c.JSON(http.StatusOK, datatypes.StatusResponse{
			AnalysisID: rec.AnalysisID,
			Status:     rec.Status,
			Progress:   rec.Progress,
		})
	}
}

// GetAnalysisResult returns the full record including results once the
// analysis is complete.
func GetAnalysisResult(records *storage.RecordStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		analysisID := c.Param("id")

		rec, err := records.Get(c.Request.Context(), analysisID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
				return
			}
			slog.Error("Failed to load analysis record", "analysis_id", analysisID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analysis"})
			return
		}

		c.JSON(http.StatusOK, datatypes.DetailFromRecord(rec))
	}
}

// readDiagram extracts the document from either a multipart "file"
// field or the raw request body. Reads are capped one byte past the
// limit so oversized uploads are detected without buffering them.
func readDiagram(c *gin.Context) (string, []byte, error) {
	if fileHeader, err := c.FormFile("file"); err == nil {
		f, err := fileHeader.Open()
		if err != nil {
			return "", nil, err
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, int64(datatypes.MaxDocumentBytes)+1))
		if err != nil {
			return "", nil, err
		}
		return fileHeader.Filename, data, nil
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(datatypes.MaxDocumentBytes)+1))
	if err != nil {
		return "", nil, err
	}
	fileName := c.Query("filename")
	if fileName == "" {
		fileName = "diagram.xml"
	}
	return fileName, data, nil
}

func recordSubmission(result observability.SubmissionResult) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordSubmission(result)
	}
}
