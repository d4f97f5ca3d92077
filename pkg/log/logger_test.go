// Structured logging tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newTestLogger(format OutputFormat) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New("test")
	logger.SetWriter(&buf)
	logger.SetLevel(DEBUG)
	logger.SetColorize(false)
	logger.SetFormat(format)
	return logger, &buf
}

func TestLoggerBasic(t *testing.T) {
	logger, buf := newTestLogger(FormatText)

	logger.Info("solved %d points", 12)

	output := buf.String()
	if !strings.Contains(output, "[INFO ]") {
		t.Errorf("expected INFO level, got: %s", output)
	}
	if !strings.Contains(output, "test:") {
		t.Errorf("expected prefix 'test:', got: %s", output)
	}
	if !strings.Contains(output, "solved 12 points") {
		t.Errorf("expected formatted message, got: %s", output)
	}
}

func TestLoggerLevels(t *testing.T) {
	logger, buf := newTestLogger(FormatText)
	logger.SetLevel(INFO)

	logger.Debug("debug message")
	if buf.Len() != 0 {
		t.Errorf("expected DEBUG to be filtered, got: %s", buf.String())
	}

	for _, tc := range []struct {
		log func(string, ...interface{})
		msg string
	}{
		{logger.Info, "info message"},
		{logger.Warn, "warn message"},
		{logger.Error, "error message"},
	} {
		buf.Reset()
		tc.log(tc.msg)
		if !strings.Contains(buf.String(), tc.msg) {
			t.Errorf("expected %q to pass, got: %s", tc.msg, buf.String())
		}
	}
}

func TestLoggerJSON(t *testing.T) {
	logger, buf := newTestLogger(FormatJSON)

	logger.Info("json test")

	var entry JSONLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v, output: %s", err, buf.String())
	}
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got: %s", entry.Level)
	}
	if entry.Logger != "test" {
		t.Errorf("expected logger 'test', got: %s", entry.Logger)
	}
	if entry.Message != "json test" {
		t.Errorf("expected message 'json test', got: %s", entry.Message)
	}
}

func TestLoggerWithFields(t *testing.T) {
	logger, buf := newTestLogger(FormatText)

	logger.WithFields(Fields{"x": 0, "y": 200}).Info("inverse")

	output := buf.String()
	if !strings.Contains(output, "{x=0, y=200}") {
		t.Errorf("expected sorted fields, got: %s", output)
	}
}

func TestLoggerPersistentFields(t *testing.T) {
	logger, buf := newTestLogger(FormatJSON)

	solver := logger.With(Fields{"mode": "bent_crank"})
	solver.WithField("outcome", "unreachable").Debug("inverse")

	var entry JSONLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if entry.Fields["mode"] != "bent_crank" || entry.Fields["outcome"] != "unreachable" {
		t.Errorf("expected merged fields, got: %v", entry.Fields)
	}

	// Persistent fields show up in text output too.
	buf.Reset()
	solver.SetFormat(FormatText)
	solver.Info("config applied")
	if !strings.Contains(buf.String(), "mode=bent_crank") {
		t.Errorf("expected persistent field in text output, got: %s", buf.String())
	}
}

func TestLoggerWithError(t *testing.T) {
	logger, buf := newTestLogger(FormatJSON)

	logger.WithError(errors.New("circles do not intersect")).Error("forward failed")

	var entry JSONLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if entry.Fields["error"] != "circles do not intersect" {
		t.Errorf("expected error field, got: %v", entry.Fields)
	}
}

func TestLoggerWithPrefixSharesOutput(t *testing.T) {
	logger, buf := newTestLogger(FormatText)

	child := logger.WithPrefix("kinematics")
	child.Info("child message")
	if !strings.Contains(buf.String(), "kinematics:") {
		t.Errorf("expected prefix 'kinematics:', got: %s", buf.String())
	}

	// Level changes on the parent apply to derived loggers.
	buf.Reset()
	logger.SetLevel(ERROR)
	child.Info("filtered")
	if buf.Len() != 0 {
		t.Errorf("expected child to follow parent level, got: %s", buf.String())
	}
}

func TestLoggerCaller(t *testing.T) {
	logger, buf := newTestLogger(FormatText)
	logger.SetCaller(true)

	logger.Info("caller test")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Errorf("expected caller info 'logger_test.go:', got: %s", buf.String())
	}

	buf.Reset()
	logger.WithField("k", 1).Warn("entry caller")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Errorf("expected entry caller info, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"DEBUG", DEBUG},
		{"debug", DEBUG},
		{"INFO", INFO},
		{" warn ", WARN},
		{"WARNING", WARN},
		{"error", ERROR},
		{"invalid", INFO},
		{"", INFO},
	}
	for _, tt := range tests {
		if result := ParseLevel(tt.input); result != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, result, tt.expected)
		}
	}
}

func TestLogLevelString(t *testing.T) {
	if LogLevel(99).String() != "UNKNOWN" {
		t.Error("unknown level should stringify as UNKNOWN")
	}
	if WARN.String() != "WARN" {
		t.Errorf("WARN.String() = %q", WARN.String())
	}
}

func TestConfigureFromEnv(t *testing.T) {
	t.Setenv("PLOTTER_LOG_LEVEL", "warn")
	t.Setenv("PLOTTER_LOG_FORMAT", "json")
	t.Setenv("PLOTTER_LOG_CALLER", "1")

	logger, buf := newTestLogger(FormatText)
	ConfigureFromEnv(logger)

	if logger.GetLevel() != WARN {
		t.Errorf("level = %v, want WARN", logger.GetLevel())
	}
	logger.Warn("env configured")

	var entry JSONLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output: %v (%s)", err, buf.String())
	}
	if entry.Caller == "" {
		t.Error("expected caller to be enabled")
	}
}

func TestGetLogger(t *testing.T) {
	logger := GetLogger("api")
	if logger == nil {
		t.Fatal("expected logger, got nil")
	}
	if logger.Prefix() != "api" {
		t.Errorf("expected prefix 'api', got %q", logger.Prefix())
	}
}

func BenchmarkLoggerText(b *testing.B) {
	var buf bytes.Buffer
	logger := New("bench")
	logger.SetWriter(&buf)
	logger.SetColorize(false)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		logger.Info("benchmark message %d", i)
	}
}

func BenchmarkLoggerFiltered(b *testing.B) {
	var buf bytes.Buffer
	logger := New("bench")
	logger.SetWriter(&buf)
	logger.SetLevel(ERROR)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Debug("this should be filtered")
	}
}
