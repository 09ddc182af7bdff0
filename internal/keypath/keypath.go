// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package keypath resolves identity references (as written in the SSH client
// configuration or in connection profiles) to filesystem paths and compares
// them. The SSH config and profile synchronisers share this package so both
// stores agree on which references point at a given key.
package keypath

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolver expands identity references relative to a home directory and a
// key root.
type Resolver struct {
	Home string // Directory substituted for a leading "~/".
	Root string // Directory relative references are resolved against.
}

// NewResolver returns a Resolver for the current user's home directory.
func NewResolver(root string) Resolver {
	home, _ := os.UserHomeDir()
	return Resolver{Home: home, Root: root}
}

// Expand turns a reference into an absolute, cleaned path. A leading "~/"
// is expanded against Home; other relative values are resolved against Root.
func (r Resolver) Expand(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	switch {
	case ref == "~":
		return filepath.Clean(r.Home)
	case strings.HasPrefix(ref, "~/"):
		return filepath.Join(r.Home, filepath.FromSlash(ref[2:]))
	case filepath.IsAbs(ref):
		return filepath.Clean(ref)
	default:
		return filepath.Join(r.Root, filepath.FromSlash(ref))
	}
}

// Contract renders an absolute path in "~/" form when it lies below Home.
// Paths outside Home are returned unchanged.
func (r Resolver) Contract(path string) string {
	if r.Home == "" {
		return path
	}
	rel, err := filepath.Rel(r.Home, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return path
	}
	return "~/" + filepath.ToSlash(rel)
}

// Same reports whether ref points at the same file as keyPath.
func (r Resolver) Same(ref, keyPath string) bool {
	if ref == "" || keyPath == "" {
		return false
	}
	return Equal(r.Expand(ref), keyPath)
}

// Canonical returns the absolute, symlink-resolved form of path.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// Normalize returns the absolute, cleaned form of path without touching the
// filesystem beyond the working directory lookup.
func Normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// Equal compares two paths canonically. When either side cannot be
// canonicalised (for example a dangling reference) it falls back to
// comparing normalised strings.
func Equal(a, b string) bool {
	ca, errA := Canonical(a)
	cb, errB := Canonical(b)
	if errA == nil && errB == nil {
		return ca == cb
	}
	return Normalize(a) == Normalize(b)
}
