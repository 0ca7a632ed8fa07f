package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(content)), "\n")
}

// newFileLogger opens a launcher log in dir with the default rotation.
func newFileLogger(t *testing.T, dir, level string) *Logger {
	t.Helper()
	logger, err := NewLoggerWithRotation(dir, level, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLoggerWithRotation failed: %v", err)
	}
	return logger
}

// newBufferLogger returns a Logger writing JSON lines to buf.
func newBufferLogger(buf *bytes.Buffer, level string) *Logger {
	return &Logger{logger: newSlog(buf, level)}
}

func TestLogLevels(t *testing.T) {
	dir := t.TempDir()
	logger := newFileLogger(t, dir, LevelDebug)

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")
	logger.Close()

	lines := readLines(t, filepath.Join(dir, LogFileName))
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(lines))
	}

	wantLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
			continue
		}
		if entry["level"] != wantLevels[i] {
			t.Errorf("line %d: level = %v, want %s", i, entry["level"], wantLevels[i])
		}
		if entry["key"] != "value" {
			t.Errorf("line %d: key = %v", i, entry["key"])
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected WARN and ERROR only, got %d lines: %s", len(lines), buf.String())
	}
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelInfo)

	child := logger.WithOperation("lightmaps_dam").WithStep("worker").WithWorker(3)
	child.Info("worker finished", "exit_code", 0)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry["operation"] != "lightmaps_dam" {
		t.Errorf("operation = %v", entry["operation"])
	}
	if entry["step"] != "worker" {
		t.Errorf("step = %v", entry["step"])
	}
	// JSON numbers are float64
	if entry["worker"] != float64(3) {
		t.Errorf("worker = %v", entry["worker"])
	}
	if entry["exit_code"] != float64(0) {
		t.Errorf("exit_code = %v", entry["exit_code"])
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelInfo)

	logger.With("profile", "mcc", "instances", 4, 99).Info("starting")
	if same := logger.With(); same != logger {
		t.Error("With() without args should return the receiver")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if entry["profile"] != "mcc" || entry["instances"] != float64(4) {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.WithWorker(1).Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	if err := logger.Close(); err != nil {
		t.Errorf("NopLogger.Close() returned error: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"invalid", LevelInfo},
		{"", LevelInfo},
	}

	for _, tc := range tests {
		if got := ParseLevel(tc.input); got != tc.expected {
			t.Errorf("ParseLevel(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestValidLevels(t *testing.T) {
	got := strings.Join(ValidLevels(), ",")
	if got != "DEBUG,INFO,WARN,ERROR" {
		t.Errorf("ValidLevels() = %s", got)
	}
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	logger := newFileLogger(t, dir, LevelInfo)
	logger.Info("test message")

	if err := logger.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() returned error: %v", err)
	}
	if lines := readLines(t, filepath.Join(dir, LogFileName)); len(lines) != 1 {
		t.Errorf("expected 1 line, got %d", len(lines))
	}
}

func TestConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger := newFileLogger(t, dir, LevelInfo)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			l := logger.WithWorker(worker)
			for j := range 100 {
				l.Info("concurrent write", "iteration", j)
			}
		}(i)
	}
	wg.Wait()
	logger.Close()

	lines := readLines(t, filepath.Join(dir, LogFileName))
	if len(lines) != 1000 {
		t.Errorf("expected 1000 log lines, got %d", len(lines))
	}
	for i, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
	}
}
