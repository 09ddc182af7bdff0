// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package logging holds the process-wide diagnostic logger. User-facing
// output and the rotation audit trail do not go through it.
package logging

import (
	"fmt"
	"os"
	"strings"

	clog "github.com/charmbracelet/log"
)

// L writes diagnostics to stderr. Tests may swap it for a buffer-backed logger.
var L = clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "keyrot"})

// Debugf, Infof, Warnf and Errorf log a formatted message at their level.
func Debugf(format string, v ...any) { L.Debugf(format, v...) }
func Infof(format string, v ...any)  { L.Infof(format, v...) }
func Warnf(format string, v ...any)  { L.Warnf(format, v...) }
func Errorf(format string, v ...any) { L.Errorf(format, v...) }

// With returns a child of L carrying the given key/value pairs on every line.
func With(keyvals ...any) *clog.Logger {
	return L.With(keyvals...)
}

// SetLevel sets the minimum level by name: debug, info, warn or error.
func SetLevel(name string) error {
	lvl, err := clog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	L.SetLevel(lvl)
	return nil
}

// SetDebug switches between debug and info level.
func SetDebug(enabled bool) {
	if enabled {
		L.SetLevel(clog.DebugLevel)
		return
	}
	L.SetLevel(clog.InfoLevel)
}
