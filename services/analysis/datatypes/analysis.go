// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the analysis service.
//
// This file contains the persisted analysis record, its nested result
// types, and the API response shapes. The record is the only channel
// between the submit phase and the processor phase: everything the
// processor needs is read back from storage, never handed over in
// memory.
package datatypes

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxDocumentBytes is the maximum accepted diagram upload size.
	MaxDocumentBytes = 10 * 1024 * 1024 // 10 MiB

	// RecordTTL is how long completed analysis records are retained.
	RecordTTL = 7 * 24 * time.Hour

	// FailedRecordTTL is how long failed analysis records are retained.
	// Failures are kept shorter; they exist for operator inspection only.
	FailedRecordTTL = 24 * time.Hour
)

// =============================================================================
// Status and Severity Enums
// =============================================================================

// AnalysisStatus is the lifecycle state of an analysis record.
//
// Transitions: pending -> processing -> completed | failed.
// A record never moves backwards, and results are only present on
// completed records.
type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// Valid reports whether s is one of the four lifecycle states.
func (s AnalysisStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the record will not change again.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IssueSeverity ranks a security issue.
type IssueSeverity string

const (
	SeverityHigh   IssueSeverity = "HIGH"
	SeverityMedium IssueSeverity = "MEDIUM"
	SeverityLow    IssueSeverity = "LOW"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// analysisValidate is the validator instance for analysis datatypes.
var analysisValidate *validator.Validate

func init() {
	analysisValidate = validator.New()
}

// =============================================================================
// Result Types
// =============================================================================

// SecurityIssue is a single finding in a security analysis.
//
// # Fields
//
//   - Severity: HIGH, MEDIUM, or LOW.
//   - Component: The diagram component the issue refers to. For
//     diagram-wide findings this is a synthetic name such as "Diagram"
//     or "Architecture".
//   - Issue: Human-readable statement of the problem.
//   - Recommendation: Actionable remediation guidance.
//   - AWSService: Optional canonical service name (e.g. "s3", "ec2")
//     when the issue is tied to a recognized service type.
type SecurityIssue struct {
	Severity       IssueSeverity `json:"severity" validate:"required,oneof=HIGH MEDIUM LOW"`
	Component      string        `json:"component" validate:"required"`
	Issue          string        `json:"issue" validate:"required"`
	Recommendation string        `json:"recommendation" validate:"required"`
	AWSService     string        `json:"aws_service,omitempty"`
}

// SecurityAnalysis is the security portion of an analysis result.
//
// Score is on a 0-10 scale where 10 is the most secure. The score and
// the issue list always come from the same scoring pass, so a low
// score is always accompanied by issues explaining it.
type SecurityAnalysis struct {
	Score           float64         `json:"score" validate:"gte=0,lte=10"`
	Issues          []SecurityIssue `json:"issues" validate:"dive"`
	Recommendations []string        `json:"recommendations"`
}

// AnalysisResults is the complete result payload of a completed
// analysis.
type AnalysisResults struct {
	OverallScore float64          `json:"overall_score" validate:"gte=0,lte=10"`
	Security     SecurityAnalysis `json:"security"`
	Patterns     []string         `json:"patterns,omitempty"`
}

// Validate checks result invariants (score ranges, issue fields).
func (r *AnalysisResults) Validate() error {
	return analysisValidate.Struct(r)
}

// =============================================================================
// Analysis Record
// =============================================================================

// AnalysisRecord is the persisted state of one diagram analysis.
//
// # Description
//
// The record is created with status "pending" during submission,
// BEFORE the submit response is sent, and is the sole hand-off channel
// to the processor phase. The processor flips it to "processing",
// then writes results and "completed" in a single transaction (or
// "failed" with ErrorMessage on internal errors).
//
// # Fields
//
//   - AnalysisID: "analysis_" + 8 hex chars, unique per submission.
//   - Status: Lifecycle state (see AnalysisStatus).
//   - Timestamp: Submission time (UTC).
//   - FileName: Original upload file name, for display only.
//   - Description: Tiered architecture description, generated during
//     submission and available immediately.
//   - Progress: 0.0 pending, 0.5 processing, 1.0 terminal.
//   - Results: Present only when Status is completed.
//   - ErrorMessage: Present only when Status is failed.
//   - TTL: Unix seconds after which the record expires.
type AnalysisRecord struct {
	AnalysisID   string           `json:"analysis_id" validate:"required"`
	Status       AnalysisStatus   `json:"status" validate:"required,oneof=pending processing completed failed"`
	Timestamp    time.Time        `json:"timestamp"`
	FileName     string           `json:"file_name"`
	Description  string           `json:"description"`
	Progress     float64          `json:"progress" validate:"gte=0,lte=1"`
	Results      *AnalysisResults `json:"results,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	TTL          int64            `json:"ttl,omitempty"`
}

// NewAnalysisRecord creates a pending record for a fresh submission.
//
// The analysis ID is "analysis_" followed by the first 8 hex digits of
// a UUIDv4, matching the public ID format clients already rely on.
func NewAnalysisRecord(fileName, description string) *AnalysisRecord {
	now := time.Now().UTC()
	return &AnalysisRecord{
		AnalysisID:  NewAnalysisID(),
		Status:      StatusPending,
		Timestamp:   now,
		FileName:    fileName,
		Description: description,
		Progress:    0.0,
		TTL:         now.Add(RecordTTL).Unix(),
	}
}

// NewAnalysisID returns a fresh "analysis_XXXXXXXX" identifier.
func NewAnalysisID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "analysis_" + hex[:8]
}

// Validate validates the record fields.
func (r *AnalysisRecord) Validate() error {
	return analysisValidate.Struct(r)
}

// =============================================================================
// API Response Types
// =============================================================================

// SubmitResponse is returned by POST /api/analyze.
//
// Status is always "pending": the record write happens before this
// response is produced, so a client that immediately polls the status
// endpoint will find the record.
type SubmitResponse struct {
	AnalysisID  string         `json:"analysis_id"`
	Status      AnalysisStatus `json:"status"`
	Message     string         `json:"message"`
	Description string         `json:"description,omitempty"`
}

// StatusResponse is returned by GET /api/analysis/:id/status.
type StatusResponse struct {
	AnalysisID string         `json:"analysis_id"`
	Status     AnalysisStatus `json:"status"`
	Progress   float64        `json:"progress"`
}

// DetailResponse is returned by GET /api/analysis/:id. It is the
// client-facing projection of the full record.
type DetailResponse struct {
	AnalysisID   string           `json:"analysis_id"`
	Status       AnalysisStatus   `json:"status"`
	Timestamp    time.Time        `json:"timestamp"`
	FileName     string           `json:"file_name"`
	Description  string           `json:"description"`
	Progress     float64          `json:"progress"`
	Results      *AnalysisResults `json:"results,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// DetailFromRecord projects a stored record into its API view.
func DetailFromRecord(rec *AnalysisRecord) DetailResponse {
	return DetailResponse{
		AnalysisID:   rec.AnalysisID,
		Status:       rec.Status,
		Timestamp:    rec.Timestamp,
		FileName:     rec.FileName,
		Description:  rec.Description,
		Progress:     rec.Progress,
		Results:      rec.Results,
		ErrorMessage: rec.ErrorMessage,
	}
}
