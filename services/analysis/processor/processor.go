// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package processor runs the asynchronous half of the analysis
// pipeline. Submissions hand off an analysis ID; workers load the
// stored document, re-derive the graph view, consult the oracle, and
// persist the result.
//
// Every oracle failure still produces a completed record: fallback
// scoring plus a user-facing explanation of why the AI review was
// skipped. A record only fails on internal errors such as a missing
// document or a storage write fault.
//
// Duplicate deliveries of the same ID are harmless. Terminal records
// are never rewritten, so reprocessing stops at the first status
// check and stored results stay byte-identical.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/archlens/services/analysis/datatypes"
	"github.com/AleutianAI/archlens/services/analysis/diagram"
	"github.com/AleutianAI/archlens/services/analysis/fallback"
	"github.com/AleutianAI/archlens/services/analysis/observability"
	"github.com/AleutianAI/archlens/services/analysis/oracle"
	"github.com/AleutianAI/archlens/services/analysis/storage"
)

// Package-level tracer for analysis pipeline spans.
var tracer = otel.Tracer("aleutian.analysis")

// Config controls worker parallelism and timing.
type Config struct {
	// Workers is the number of concurrent analysis workers.
	Workers int

	// QueueSize bounds the in-process handoff queue. A full queue is
	// not an error; the sweep picks up anything that was deferred.
	QueueSize int

	// OracleTimeout bounds one whole oracle invocation including the
	// retry and its backoff.
	OracleTimeout time.Duration

	// SweepInterval is how often to scan for incomplete records that
	// are not in the queue, e.g. work orphaned by a restart.
	SweepInterval time.Duration

	// Retry is the oracle retry policy.
	Retry oracle.Policy
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		QueueSize:     64,
		OracleTimeout: 90 * time.Second,
		SweepInterval: 10 * time.Minute,
		Retry:         oracle.DefaultPolicy(),
	}
}

// Option customizes a Processor.
type Option func(*Processor)

// WithCatalog sets the provider for the service catalog. The provider
// is called once per analysis, so a hot-reloaded catalog takes effect
// on the next run.
func WithCatalog(provider func() *diagram.Catalog) Option {
	return func(p *Processor) { p.catalog = provider }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *observability.AnalysisMetrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// Processor consumes analysis IDs and drives each one to a terminal
// record state.
type Processor struct {
	cfg       Config
	records   *storage.RecordStore
	documents storage.DocumentStore
	oracle    oracle.Oracle
	catalog   func() *diagram.Catalog
	metrics   *observability.AnalysisMetrics
	logger    *slog.Logger

	queue chan string

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// New creates a Processor. Zero or negative Config fields fall back to
// the defaults.
func New(cfg Config, records *storage.RecordStore, documents storage.DocumentStore, orc oracle.Oracle, opts ...Option) *Processor {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = def.OracleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}

	p := &Processor{
		cfg:       cfg,
		records:   records,
		documents: documents,
		oracle:    orc,
		catalog:   diagram.DefaultCatalog,
		logger:    slog.Default(),
		queue:     make(chan string, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers and the orphan sweep. Safe to call once;
// later calls are no-ops.
func (p *Processor) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel

		g, gCtx := errgroup.WithContext(runCtx)
		p.group = g

		for i := 0; i < p.cfg.Workers; i++ {
			g.Go(func() error {
				p.workerLoop(gCtx)
				return nil
			})
		}
		g.Go(func() error {
			p.sweepLoop(gCtx)
			return nil
		})

		p.logger.Info("analysis processor started",
			slog.Int("workers", p.cfg.Workers),
			slog.Int("queue_size", p.cfg.QueueSize))
	})
}

// Stop cancels the workers and waits for in-flight analyses to finish.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel == nil {
			return
		}
		p.cancel()
		_ = p.group.Wait()
		p.logger.Info("analysis processor stopped")
	})
}

// Enqueue hands an analysis ID to the workers. Returns false when the
// queue is full; the record stays pending and the sweep requeues it.
func (p *Processor) Enqueue(analysisID string) bool {
	select {
	case p.queue <- analysisID:
		return true
	default:
		p.logger.Warn("analysis queue full, deferring to sweep",
			slog.String("analysis_id", analysisID))
		return false
	}
}

func (p *Processor) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			if err := p.process(ctx, id); err != nil {
				p.logger.Error("analysis processing failed",
					slog.String("analysis_id", id),
					slog.String("error", err.Error()))
			}
		}
	}
}

func (p *Processor) sweepLoop(ctx context.Context) {
	// Recover anything left over from a previous run before waiting
	// out the first interval.
	p.sweep(ctx)

	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Processor) sweep(ctx context.Context) {
	ids, err := p.records.ListIncomplete(ctx)
	if err != nil {
		p.logger.Warn("sweep could not list incomplete analyses",
			slog.String("error", err.Error()))
		return
	}

	requeued := 0
	for _, id := range ids {
		if p.Enqueue(id) {
			requeued++
		}
	}
	if requeued > 0 {
		p.logger.Info("requeued incomplete analyses", slog.Int("count", requeued))
	}
}

// process drives one analysis to a terminal state.
func (p *Processor) process(ctx context.Context, analysisID string) (err error) {
	ctx, span := tracer.Start(ctx, "Processor.process",
		trace.WithAttributes(attribute.String("analysis.id", analysisID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	start := time.Now()
	if p.metrics != nil {
		p.metrics.AnalysisStarted()
		defer p.metrics.AnalysisEnded()
	}

	rec, err := p.records.Get(ctx, analysisID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			p.logger.Debug("queued analysis no longer exists",
				slog.String("analysis_id", analysisID))
			return nil
		}
		return fmt.Errorf("load analysis record: %w", err)
	}
	if rec.Status.Terminal() {
		return nil
	}

	if err := p.records.MarkProcessing(ctx, analysisID); err != nil {
		return fmt.Errorf("mark analysis processing: %w", err)
	}

	doc, err := p.documents.Get(ctx, analysisID)
	if err != nil {
		return p.fail(ctx, analysisID, start, "stored diagram document is missing", err)
	}

	graph, err := diagram.Parse(doc)
	if err != nil {
		// Submission already parsed this document once, so hitting
		// this means the stored copy is corrupt.
		return p.fail(ctx, analysisID, start, "stored diagram document could not be parsed", err)
	}

	catalog := p.catalog()
	summary := catalog.ClassifyGraph(graph)
	findings := diagram.DetectPatterns(graph, summary)
	patterns := diagram.PatternNames(findings)

	span.SetAttributes(
		attribute.String("analysis.tier", summary.Tier.String()),
		attribute.Int("diagram.node_count", len(graph.Nodes)),
		attribute.Int("diagram.edge_count", len(graph.Edges)),
	)

	req := oracle.Request{
		FileName:    rec.FileName,
		Tier:        summary.Tier.String(),
		Description: rec.Description,
		Services:    summary.ServiceCounts,
		Patterns:    patterns,
	}

	oracleCtx, cancel := context.WithTimeout(ctx, p.cfg.OracleTimeout)
	outcome := oracle.Invoke(oracleCtx, p.oracle, req, p.cfg.Retry)
	cancel()

	span.SetAttributes(
		attribute.String("oracle.outcome", outcome.Kind.String()),
		attribute.Int("oracle.attempts", outcome.Attempts),
	)
	if p.metrics != nil {
		p.metrics.RecordOracleOutcome(outcome.Kind.String(), outcome.Attempts)
	}

	var results *datatypes.AnalysisResults
	if outcome.Kind == oracle.OutcomeSuccess {
		results = outcome.Results
	} else {
		p.logger.Warn("oracle failed, using fallback scoring",
			slog.String("analysis_id", analysisID),
			slog.String("outcome", outcome.Kind.String()),
			slog.Int("attempts", outcome.Attempts),
			slog.String("error", outcome.Err.Error()))

		results = fallback.Generate(graph, summary)
		if msg := outcome.Kind.UserMessage(); msg != "" {
			results.Security.Recommendations = append(results.Security.Recommendations, msg)
		}
		if p.metrics != nil {
			p.metrics.RecordFallback(summary.Tier.String())
		}
	}

	// Detected patterns on the record always come from local
	// detection, whichever path produced the scores.
	results.Patterns = patterns

	if err := p.records.CompleteWithResults(ctx, analysisID, results); err != nil {
		return p.fail(ctx, analysisID, start, "failed to persist analysis results", err)
	}

	if p.metrics != nil {
		p.metrics.RecordAnalysis(true, time.Since(start).Seconds())
	}
	p.logger.Info("analysis completed",
		slog.String("analysis_id", analysisID),
		slog.String("tier", summary.Tier.String()),
		slog.String("oracle_outcome", outcome.Kind.String()),
		slog.Float64("overall_score", results.OverallScore),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// fail marks the record failed and reports the internal cause to the
// worker loop.
func (p *Processor) fail(ctx context.Context, analysisID string, start time.Time, message string, cause error) error {
	if err := p.records.Fail(ctx, analysisID, message); err != nil {
		p.logger.Error("could not mark analysis failed",
			slog.String("analysis_id", analysisID),
			slog.String("error", err.Error()))
	}
	if p.metrics != nil {
		p.metrics.RecordAnalysis(false, time.Since(start).Seconds())
	}
	return fmt.Errorf("%s: %w", message, cause)
}
