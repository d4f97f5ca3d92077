// Log file rotation support for the plotter host
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	// Filename is the path to the log file.
	Filename string

	// MaxSize is the maximum size in bytes before rotation. Default 10 MB.
	MaxSize int64

	// MaxBackups is the number of rotated files kept. Default 5.
	MaxBackups int
}

// RotatingFileWriter implements io.Writer with size based rotation.
// Rotated files are named <base>.<YYYYMMDD-HHMMSS.mmm>-<seq><ext>.
type RotatingFileWriter struct {
	mu          sync.Mutex
	filename    string
	maxSize     int64
	maxBackups  int
	currentSize int64
	seq         int
	file        *os.File
}

// NewRotatingFileWriter creates a new rotating file writer.
func NewRotatingFileWriter(config RotationConfig) (*RotatingFileWriter, error) {
	if config.Filename == "" {
		return nil, fmt.Errorf("log: filename is required")
	}
	w := &RotatingFileWriter{
		filename:   config.Filename,
		maxSize:    config.MaxSize,
		maxBackups: config.MaxBackups,
	}
	if w.maxSize <= 0 {
		w.maxSize = 10 * 1024 * 1024
	}
	if w.maxBackups <= 0 {
		w.maxBackups = 5
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingFileWriter) openFile() error {
	if err := os.MkdirAll(filepath.Dir(w.filename), 0755); err != nil {
		return fmt.Errorf("log: create directory: %w", err)
	}
	f, err := os.OpenFile(w.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("log: open %s: %w", w.filename, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("log: stat %s: %w", w.filename, err)
	}
	w.file = f
	w.currentSize = info.Size()
	return nil
}

// Write implements io.Writer.
func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.currentSize > 0 && w.currentSize+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.currentSize += int64(n)
	return n, err
}

func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("log: close for rotation: %w", err)
	}
	ext := filepath.Ext(w.filename)
	base := strings.TrimSuffix(w.filename, ext)
	w.seq++
	rotated := fmt.Sprintf("%s.%s-%04d%s", base, time.Now().Format("20060102-150405.000"), w.seq, ext)
	if err := os.Rename(w.filename, rotated); err != nil {
		w.openFile()
		return fmt.Errorf("log: rotate: %w", err)
	}
	w.pruneBackups()
	return w.openFile()
}

// Backups lists rotated files, oldest first.
func (w *RotatingFileWriter) Backups() []string {
	ext := filepath.Ext(w.filename)
	pattern := strings.TrimSuffix(w.filename, ext) + ".*" + ext
	matches, _ := filepath.Glob(pattern)
	var out []string
	for _, m := range matches {
		if m != w.filename {
			out = append(out, m)
		}
	}
	// Timestamped names sort chronologically.
	sort.Strings(out)
	return out
}

func (w *RotatingFileWriter) pruneBackups() {
	backups := w.Backups()
	for len(backups) > w.maxBackups {
		os.Remove(backups[0])
		backups = backups[1:]
	}
}

// Close closes the rotating file writer.
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// CurrentSize returns the current file size.
func (w *RotatingFileWriter) CurrentSize() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentSize
}

// NewFileLogger creates a logger writing to a rotating file, optionally
// mirrored to stderr.
func NewFileLogger(prefix string, config RotationConfig, console bool) (*Logger, *RotatingFileWriter, error) {
	fw, err := NewRotatingFileWriter(config)
	if err != nil {
		return nil, nil, err
	}
	logger := New(prefix)
	logger.SetColorize(false)
	if console {
		logger.SetWriter(io.MultiWriter(os.Stderr, fw))
	} else {
		logger.SetWriter(fw)
	}
	return logger, fw, nil
}
