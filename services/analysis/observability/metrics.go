// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics for the diagram analysis service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the two-phase
// analysis pipeline. Metrics include:
//   - Submission counters (accepted vs. rejected, by rejection reason)
//   - Analysis completion counters and duration histograms
//   - Oracle outcome counters (success, throttled, unauthorized, unavailable)
//   - Fallback counters by diagram detail tier
//   - Active analysis gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting. The oracle outcome counter is the
// one to alert on: a sustained unavailable rate means every client is
// receiving fallback scores.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for analysis pipeline metrics
const analysisSubsystem = "analysis"

// AnalysisMetrics holds all Prometheus metrics for the analysis pipeline.
//
// Initialize once at startup via InitMetrics().
type AnalysisMetrics struct {
	// SubmissionsTotal counts diagram submissions by outcome.
	// Labels: result (accepted, malformed, too_large, unsupported_type)
	SubmissionsTotal *prometheus.CounterVec

	// AnalysesTotal counts finished processing runs by terminal status.
	// Labels: status (completed, failed)
	AnalysesTotal *prometheus.CounterVec

	// AnalysisDurationSeconds measures processing phase duration.
	// Labels: status (completed, failed)
	AnalysisDurationSeconds *prometheus.HistogramVec

	// OracleOutcomesTotal counts oracle invocations by final outcome.
	// Labels: outcome (success, throttled, unauthorized, unavailable)
	OracleOutcomesTotal *prometheus.CounterVec

	// OracleAttemptsTotal counts individual oracle calls, including
	// retries. The ratio against OracleOutcomesTotal shows how often
	// the single retry is being spent.
	OracleAttemptsTotal prometheus.Counter

	// FallbacksTotal counts fallback-scored analyses by detail tier.
	// Labels: tier (empty, minimal, rich)
	FallbacksTotal *prometheus.CounterVec

	// ActiveAnalyses tracks analyses currently in the processing phase.
	ActiveAnalyses prometheus.Gauge
}

// DefaultMetrics is the singleton instance of AnalysisMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AnalysisMetrics

// InitMetrics creates and registers all Prometheus metrics with the
// default registry. Call once at application startup; a second call
// panics on duplicate registration.
func InitMetrics() *AnalysisMetrics {
	DefaultMetrics = &AnalysisMetrics{
		SubmissionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "submissions_total",
				Help:      "Total diagram submissions by outcome",
			},
			[]string{"result"},
		),

		AnalysesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "analyses_total",
				Help:      "Total finished analyses by terminal status",
			},
			[]string{"status"},
		),

		AnalysisDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "analysis_duration_seconds",
				Help:      "Processing phase duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		OracleOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "oracle_outcomes_total",
				Help:      "Oracle invocations by final outcome",
			},
			[]string{"outcome"},
		),

		OracleAttemptsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "oracle_attempts_total",
				Help:      "Individual oracle calls including retries",
			},
		),

		FallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "fallbacks_total",
				Help:      "Fallback-scored analyses by detail tier",
			},
			[]string{"tier"},
		),

		ActiveAnalyses: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "active_analyses",
				Help:      "Analyses currently in the processing phase",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Submission Results
// =============================================================================

// SubmissionResult categorizes a submission for metrics labeling.
type SubmissionResult string

const (
	// SubmissionAccepted indicates a pending record was created.
	SubmissionAccepted SubmissionResult = "accepted"

	// SubmissionMalformed indicates the document was not parseable markup.
	SubmissionMalformed SubmissionResult = "malformed"

	// SubmissionTooLarge indicates the document exceeded the size cap.
	SubmissionTooLarge SubmissionResult = "too_large"

	// SubmissionUnsupportedType indicates a disallowed file extension.
	SubmissionUnsupportedType SubmissionResult = "unsupported_type"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordSubmission records the outcome of one submit request.
func (m *AnalysisMetrics) RecordSubmission(result SubmissionResult) {
	m.SubmissionsTotal.WithLabelValues(string(result)).Inc()
}

// AnalysisStarted increments the active analyses gauge.
func (m *AnalysisMetrics) AnalysisStarted() {
	m.ActiveAnalyses.Inc()
}

// AnalysisEnded decrements the active analyses gauge.
func (m *AnalysisMetrics) AnalysisEnded() {
	m.ActiveAnalyses.Dec()
}

// RecordAnalysis records a finished processing run.
//
// # Inputs
//
//   - completed: true when the record reached completed status, false
//     when it failed with an internal error.
//   - seconds: Wall time of the processing phase.
func (m *AnalysisMetrics) RecordAnalysis(completed bool, seconds float64) {
	status := "completed"
	if !completed {
		status = "failed"
	}
	m.AnalysesTotal.WithLabelValues(status).Inc()
	m.AnalysisDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordOracleOutcome records the final outcome of an oracle
// invocation and how many calls it took.
func (m *AnalysisMetrics) RecordOracleOutcome(outcome string, attempts int) {
	m.OracleOutcomesTotal.WithLabelValues(outcome).Inc()
	m.OracleAttemptsTotal.Add(float64(attempts))
}

// RecordFallback records a fallback-scored analysis. The tier label is
// normalized to lowercase.
func (m *AnalysisMetrics) RecordFallback(tier string) {
	m.FallbacksTotal.WithLabelValues(strings.ToLower(tier)).Inc()
}
