// Log rotation tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingFileWriter(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "plotter.log")

	writer, err := NewRotatingFileWriter(RotationConfig{Filename: logFile})
	if err != nil {
		t.Fatalf("failed to create rotating writer: %v", err)
	}
	defer writer.Close()

	msg := "test log message\n"
	n, err := writer.Write([]byte(msg))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n != len(msg) {
		t.Errorf("expected %d bytes written, got %d", len(msg), n)
	}
	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("log file not created: %v", err)
	}
	if writer.CurrentSize() != int64(len(msg)) {
		t.Errorf("expected size %d, got %d", len(msg), writer.CurrentSize())
	}
}

func TestRotatingFileWriterRotation(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "plotter.log")

	writer, err := NewRotatingFileWriter(RotationConfig{
		Filename:   logFile,
		MaxSize:    64,
		MaxBackups: 2,
	})
	if err != nil {
		t.Fatalf("failed to create rotating writer: %v", err)
	}
	defer writer.Close()

	line := []byte(strings.Repeat("x", 40) + "\n")
	for i := 0; i < 6; i++ {
		if _, err := writer.Write(line); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	backups := writer.Backups()
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups after pruning, got %d: %v", len(backups), backups)
	}
	for _, b := range backups {
		if !strings.HasSuffix(b, ".log") || !strings.HasPrefix(filepath.Base(b), "plotter.") {
			t.Errorf("unexpected backup name %s", b)
		}
	}
	if writer.CurrentSize() != int64(len(line)) {
		t.Errorf("active file should hold one line, size %d", writer.CurrentSize())
	}
}

func TestRotatingFileWriterClosed(t *testing.T) {
	writer, err := NewRotatingFileWriter(RotationConfig{Filename: filepath.Join(t.TempDir(), "a.log")})
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := writer.Write([]byte("late")); err == nil {
		t.Error("expected write after close to fail")
	}
	if err := writer.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestRotatingFileWriterRequiresName(t *testing.T) {
	if _, err := NewRotatingFileWriter(RotationConfig{}); err == nil {
		t.Error("expected error for empty filename")
	}
}

func TestNewFileLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "plotterd.log")
	logger, fw, err := NewFileLogger("plotterd", RotationConfig{Filename: logFile}, false)
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Close()

	logger.Info("started")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "plotterd: started") {
		t.Errorf("unexpected file content: %q", data)
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Error("file output must not contain ANSI colors")
	}
}
