// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.level.String()
			if got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo}, // Unknown defaults to Info
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			got := tt.level.toSlogLevel()
			if got != tt.want {
				t.Errorf("Level.toSlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logger Constructor Tests
// =============================================================================

func TestNew_DefaultConfig(t *testing.T) {
	logger := New(Config{})
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.slog == nil {
		t.Error("logger.slog is nil")
	}
	defer logger.Close()
}

func TestNew_WithService(t *testing.T) {
	logger := New(Config{
		Service: "analysis",
		Quiet:   true,
	})
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.config.Service != "analysis" {
		t.Errorf("Service = %v, want analysis", logger.config.Service)
	}
	defer logger.Close()
}

func TestNew_QuietMode(t *testing.T) {
	logger := New(Config{Quiet: true})
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	// Should still have a handler (fallback to stderr)
	if logger.slog == nil {
		t.Error("logger.slog is nil in quiet mode")
	}
	defer logger.Close()
}

func TestNew_WithLogDir(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{
		LogDir:  tmpDir,
		Service: "analysis",
		Quiet:   true,
	})
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	defer logger.Close()

	if logger.file == nil {
		t.Error("logger.file is nil when LogDir specified")
	}

	files, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("reading log dir: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(files))
	}
	if !strings.HasPrefix(files[0].Name(), "analysis_") {
		t.Errorf("log file name = %v, want analysis_* prefix", files[0].Name())
	}
	if !strings.HasSuffix(files[0].Name(), ".log") {
		t.Errorf("log file name = %v, want .log suffix", files[0].Name())
	}
}

func TestNew_FileOutputIsJSON(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{
		LogDir:  tmpDir,
		Service: "analysis",
		Quiet:   true,
	})
	logger.Info("record completed", "analysis_id", "analysis_deadbeef")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	files, _ := os.ReadDir(tmpDir)
	if len(files) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(files))
	}
	content, err := os.ReadFile(tmpDir + "/" + files[0].Name())
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(content), `"analysis_id":"analysis_deadbeef"`) {
		t.Errorf("log file missing JSON attribute, got: %s", content)
	}
	if !strings.Contains(string(content), `"service":"analysis"`) {
		t.Errorf("log file missing service attribute, got: %s", content)
	}
}

// =============================================================================
// Logging Method Tests
// =============================================================================

func TestLogger_With(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Quiet: true, Exporter: exporter})
	defer logger.Close()

	child := logger.With("analysis_id", "analysis_0badf00d")
	if child == nil {
		t.Fatal("With() returned nil")
	}
	if child == logger {
		t.Error("With() should return a new logger")
	}
	// Parent and child share the exporter
	if child.exporter != logger.exporter {
		t.Error("With() should share the exporter")
	}
}

func TestLogger_ExporterReceivesEntries(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "analysis",
		Quiet:    true,
		Exporter: exporter,
	})
	defer logger.Close()

	logger.Info("analysis submitted", "file_name", "diagram.xml")
	logger.Debug("should be filtered") // Below LevelInfo

	// Export runs async; wait briefly for delivery
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(exporter.Entries()) >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	entries := exporter.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 exported entry, got %d", len(entries))
	}
	if entries[0].Message != "analysis submitted" {
		t.Errorf("Message = %v, want 'analysis submitted'", entries[0].Message)
	}
	if entries[0].Service != "analysis" {
		t.Errorf("Service = %v, want analysis", entries[0].Service)
	}
	if entries[0].Attrs["file_name"] != "diagram.xml" {
		t.Errorf("Attrs[file_name] = %v, want diagram.xml", entries[0].Attrs["file_name"])
	}
}

// =============================================================================
// Exporter Tests
// =============================================================================

func TestNopExporter(t *testing.T) {
	e := &NopExporter{}
	ctx := context.Background()
	if err := e.Export(ctx, LogEntry{}); err != nil {
		t.Errorf("Export() error: %v", err)
	}
	if err := e.Flush(ctx); err != nil {
		t.Errorf("Flush() error: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestBufferedExporter_Concurrent(t *testing.T) {
	e := NewBufferedExporter()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Export(ctx, LogEntry{Message: "concurrent"})
		}()
	}
	wg.Wait()

	if got := len(e.Entries()); got != 50 {
		t.Errorf("Entries() len = %d, want 50", got)
	}
}

func TestBufferedExporter_EntriesReturnsCopy(t *testing.T) {
	e := NewBufferedExporter()
	_ = e.Export(context.Background(), LogEntry{Message: "original"})

	entries := e.Entries()
	entries[0].Message = "mutated"

	if e.Entries()[0].Message != "original" {
		t.Error("Entries() should return a copy")
	}
}

func TestWriterExporter(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterExporter(&buf)

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     LevelWarn,
		Message:   "fallback scoring engaged",
		Attrs:     map[string]any{"tier": "MINIMAL"},
	}
	if err := e.Export(context.Background(), entry); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "WARN") {
		t.Errorf("output missing level: %s", out)
	}
	if !strings.Contains(out, "fallback scoring engaged") {
		t.Errorf("output missing message: %s", out)
	}
}

// =============================================================================
// Multi-Handler Tests
// =============================================================================

func TestMultiHandler_FansOut(t *testing.T) {
	var bufA, bufB bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&bufA, nil),
		slog.NewTextHandler(&bufB, nil),
	}}
	logger := slog.New(h)
	logger.Info("fan out", "key", "value")

	if !strings.Contains(bufA.String(), `"msg":"fan out"`) {
		t.Errorf("JSON handler missed record: %s", bufA.String())
	}
	if !strings.Contains(bufB.String(), "msg=\"fan out\"") {
		t.Errorf("text handler missed record: %s", bufB.String())
	}
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&buf, nil),
	}}
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("service", "analysis")}))
	logger.Info("attributed")

	if !strings.Contains(buf.String(), `"service":"analysis"`) {
		t.Errorf("WithAttrs attribute missing: %s", buf.String())
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir available")
	}

	got := expandPath("~/logs")
	if !strings.HasPrefix(got, home) {
		t.Errorf("expandPath(~/logs) = %v, want prefix %v", got, home)
	}

	unchanged := expandPath("/var/log/archlens")
	if unchanged != "/var/log/archlens" {
		t.Errorf("expandPath(/var/log/archlens) = %v, want unchanged", unchanged)
	}
}

func TestArgsToMap(t *testing.T) {
	got := argsToMap([]any{"key1", "value1", "key2", 123})
	if got["key1"] != "value1" {
		t.Errorf("key1 = %v, want value1", got["key1"])
	}
	if got["key2"] != 123 {
		t.Errorf("key2 = %v, want 123", got["key2"])
	}

	// Odd trailing arg is dropped
	odd := argsToMap([]any{"key1", "value1", "dangling"})
	if len(odd) != 1 {
		t.Errorf("odd args map len = %d, want 1", len(odd))
	}
}
