// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
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

// =============================================================================
// Logger Construction
// =============================================================================

func TestNew_ZeroConfig(t *testing.T) {
	logger := New(Config{})
	defer logger.Close()

	if logger.Slog() == nil {
		t.Fatal("expected non-nil slog logger")
	}
	if logger.file != nil {
		t.Error("no LogDir configured, file should be nil")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	defer logger.Close()

	if logger.config.Service != "transfer-orchestrator" {
		t.Errorf("Default service = %q, want transfer-orchestrator", logger.config.Service)
	}
	if logger.config.Level != LevelInfo {
		t.Errorf("Default level = %v, want LevelInfo", logger.config.Level)
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "transfer-orchestrator",
		Quiet:   true,
	})

	logger.Info("session created", "session_id", "abc-123")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	filename := "transfer-orchestrator_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "session created") {
		t.Errorf("log file missing message, got: %s", content)
	}
	if !strings.Contains(content, `"service":"transfer-orchestrator"`) {
		t.Errorf("log file missing service attribute, got: %s", content)
	}
	if !strings.Contains(content, `"session_id":"abc-123"`) {
		t.Errorf("log file missing attribute, got: %s", content)
	}
}

func TestNew_FileLoggingCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	logger := New(Config{
		LogDir:  dir,
		Service: "transferctl",
		Quiet:   true,
	})
	logger.Info("ping")
	logger.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log directory not created: %v", err)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "transfer-orchestrator",
		Quiet:   true,
	})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	logger.Close()

	filename := "transfer-orchestrator_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "debug message") || strings.Contains(content, "info message") {
		t.Errorf("messages below Warn should be filtered, got: %s", content)
	}
	if !strings.Contains(content, "warn message") || !strings.Contains(content, "error message") {
		t.Errorf("Warn and Error messages missing, got: %s", content)
	}
}

// =============================================================================
// With and Slog
// =============================================================================

func TestWith_AddsAttributes(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		LogDir:  dir,
		Service: "transfer-orchestrator",
		Quiet:   true,
	})

	sessLogger := logger.With("session_id", "sess-42")
	sessLogger.Info("validating transfer")
	logger.Close()

	filename := "transfer-orchestrator_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"session_id":"sess-42"`) {
		t.Errorf("child logger attribute missing, got: %s", data)
	}
}

func TestWith_DoesNotModifyParent(t *testing.T) {
	logger := New(Config{Quiet: true})
	defer logger.Close()

	child := logger.With("key", "value")
	if child == logger {
		t.Error("With() should return a new logger")
	}
	if child.exporter != logger.exporter || child.file != logger.file {
		t.Error("With() should share file handle and exporter")
	}
}

func TestSlog_UsableAsDefault(t *testing.T) {
	logger := New(Config{Quiet: true, Service: "transfer-orchestrator"})
	defer logger.Close()

	if logger.Slog() == nil {
		t.Fatal("Slog() returned nil")
	}
	// Must not panic when installed process-wide.
	prev := slog.Default()
	slog.SetDefault(logger.Slog())
	slog.Info("turn completed", "outcome", "executed")
	slog.SetDefault(prev)
}

// =============================================================================
// Exporter Tests
// =============================================================================

func TestExport_ReceivesEntries(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "transfer-orchestrator",
		Quiet:    true,
		Exporter: exporter,
	})

	logger.Info("transfer executed", "transaction_id", "TXN-7", "amount", 50000)
	logger.Close()

	// Export runs asynchronously
	deadline := time.Now().Add(2 * time.Second)
	var entries []LogEntry
	for time.Now().Before(deadline) {
		entries = exporter.Entries()
		if len(entries) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 exported entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "transfer executed" {
		t.Errorf("Message = %q", entry.Message)
	}
	if entry.Service != "transfer-orchestrator" {
		t.Errorf("Service = %q", entry.Service)
	}
	if entry.Level != LevelInfo {
		t.Errorf("Level = %v", entry.Level)
	}
	if entry.Attrs["transaction_id"] != "TXN-7" {
		t.Errorf("Attrs missing transaction_id: %v", entry.Attrs)
	}
}

func TestExport_RespectsLevel(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelWarn,
		Quiet:    true,
		Exporter: exporter,
	})

	logger.Info("below threshold")
	logger.Warn("at threshold")
	logger.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(exporter.Entries()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	entries := exporter.Entries()
	for _, e := range entries {
		if e.Message == "below threshold" {
			t.Error("entry below configured level should not be exported")
		}
	}
}

// failingExporter fails Flush to exercise Close error paths.
type failingExporter struct {
	NopExporter
}

func (e *failingExporter) Flush(ctx context.Context) error {
	return errors.New("flush failed")
}

func TestClose_PropagatesExporterError(t *testing.T) {
	logger := New(Config{
		Quiet:    true,
		Exporter: &failingExporter{},
	})

	err := logger.Close()
	if err == nil || !strings.Contains(err.Error(), "flush exporter") {
		t.Errorf("Close() = %v, want flush exporter error", err)
	}
}

func TestWriterExporter(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewWriterExporter(&buf)

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     LevelWarn,
		Message:   "retrying validation call",
		Attrs:     map[string]any{"attempt": 2},
	}
	if err := exporter.Export(context.Background(), entry); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "retrying validation call") {
		t.Errorf("unexpected output: %s", out)
	}
}

// =============================================================================
// Concurrency
// =============================================================================

func TestLogger_ConcurrentUse(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Quiet:    true,
		LogDir:   t.TempDir(),
		Service:  "transfer-orchestrator",
		Exporter: exporter,
	})
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Info("turn processed", "worker", n, "turn", j)
			}
		}(i)
	}
	wg.Wait()
}

// =============================================================================
// Helpers
// =============================================================================

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.aleutian/logs", filepath.Join(home, ".aleutian/logs")},
		{"/var/log/transfer", "/var/log/transfer"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestArgsToMap(t *testing.T) {
	got := argsToMap([]any{"phone_present", true, "amount", 50000, "dangling"})
	if got["phone_present"] != true {
		t.Errorf("missing phone_present: %v", got)
	}
	if got["amount"] != 50000 {
		t.Errorf("missing amount: %v", got)
	}
	if len(got) != 2 {
		t.Errorf("dangling key should be dropped, got %v", got)
	}
}
