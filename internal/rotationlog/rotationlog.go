// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package rotationlog writes the human readable audit trail of rotation
// sessions. The file is append-only: every session adds a dated header
// followed by one line per operation.
package rotationlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/toeirei/keyrot/internal/clock"
)

// Status tags used in log lines.
const (
	StatusInfo    = "INFO"
	StatusSuccess = "SUCCESS"
	StatusWarning = "WARNING"
	StatusError   = "ERROR"
	StatusDryRun  = "DRY-RUN"
)

// TimestampFormat is used for both the session header and the lines.
const TimestampFormat = "2006-01-02 15:04:05"

// Log is one session of the rotation log.
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	clock  clock.Clock
}

// Open appends a new session header to the file at path, creating it (and
// its directory) when needed.
func Open(path string, c clock.Clock) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create rotation log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open rotation log %s: %w", path, err)
	}
	l := &Log{w: f, closer: f, clock: clock.Or(c)}
	if err := l.header(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

// New starts a session on an arbitrary writer.
func New(w io.Writer, c clock.Clock) (*Log, error) {
	l := &Log{w: w, clock: clock.Or(c)}
	if err := l.header(); err != nil {
		return nil, err
	}
	return l, nil
}

// Discard returns a log that drops everything.
func Discard(c clock.Clock) *Log {
	return &Log{w: io.Discard, clock: clock.Or(c)}
}

func (l *Log) header() error {
	ts := l.clock.Now().Format(TimestampFormat)
	_, err := fmt.Fprintf(l.w, "\n=== Key rotation session %s ===\n", ts)
	return err
}

// Line formats one log line without writing it.
func (l *Log) Line(status, format string, args ...any) string {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	return fmt.Sprintf("[%s] %s - %s", l.clock.Now().Format(TimestampFormat), status, msg)
}

// Record writes a line and returns it so callers can keep a copy.
func (l *Log) Record(status, format string, args ...any) string {
	line := l.Line(status, format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, line+"\n")
	return line
}

// Close closes the underlying file, if any.
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
