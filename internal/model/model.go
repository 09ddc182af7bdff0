// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures shared by the key store,
// the archive vault, the reference synchronisers and the rotation workflow.
package model // import "github.com/toeirei/keyrot/internal/model"

import (
	"fmt"
	"strings"
	"time"
)

// Algorithm identifies the key algorithm of a private key.
type Algorithm string

const (
	AlgorithmEd25519 Algorithm = "ed25519"
	AlgorithmRSA     Algorithm = "rsa"
	AlgorithmECDSA   Algorithm = "ecdsa"
	AlgorithmDSA     Algorithm = "dsa"
	AlgorithmUnknown Algorithm = "unknown"
)

// GeneratableAlgorithms lists the algorithms a rotation may target.
var GeneratableAlgorithms = []Algorithm{AlgorithmEd25519, AlgorithmRSA, AlgorithmECDSA}

// ParseAlgorithm validates a user supplied algorithm name against the set of
// algorithms new keys can be generated for.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	for _, g := range GeneratableAlgorithms {
		if a == g {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported key type %q (use ed25519, rsa or ecdsa)", ErrInvalidInput, s)
}

// KeyHandle is the identity of a private key on disk.
type KeyHandle struct {
	Name        string    // Relative, '/'-separated path below the key root.
	Path        string    // Absolute filesystem path of the private key.
	Algorithm   Algorithm // Detected key algorithm.
	HasPublic   bool      // A "<path>.pub" companion exists.
	HasMeta     bool      // A "<path>.meta" companion exists.
	Permissions string    // POSIX permission string, e.g. "-rw-------".
	Encrypted   bool      // The private key is passphrase protected.
	Archived    bool      // The handle lives below the archive root.
}

// PublicPath returns the path of the public-key companion.
func (k KeyHandle) PublicPath() string { return k.Path + PublicSuffix }

// MetaPath returns the path of the metadata companion.
func (k KeyHandle) MetaPath() string { return k.Path + MetaSuffix }

const (
	PublicSuffix = ".pub"
	MetaSuffix   = ".meta"
)

// ArchiveEntry is a key relocated under the archive root at the same relative
// path it held in the active tree.
type ArchiveEntry struct {
	Key          KeyHandle // The handle at its archived location.
	OriginalPath string    // Absolute path the key was moved from.
	ArchivedAt   time.Time
}

// ConfigHostEntry is a Host block of the SSH client configuration together
// with the identity files it references.
type ConfigHostEntry struct {
	Host          string
	IdentityFiles []string // Resolved (expanded, absolute) identity paths.
	RawIdentities []string // Values as written in the file, quotes stripped.
	Line          int      // 1-based line number of the Host directive.
}

// ConnectionProfile is a saved connection record keyed by alias.
type ConnectionProfile struct {
	Alias    string `json:"alias"`
	Hostname string `json:"hostname"`
	Username string `json:"username"`
	Port     int    `json:"port"`
	SSHKey   string `json:"sshKey,omitempty"`
}

// DefaultSSHPort is used when a profile does not specify a port.
const DefaultSSHPort = 22

// EffectivePort returns the profile port, defaulting to 22.
func (p ConnectionProfile) EffectivePort() int {
	if p.Port <= 0 {
		return DefaultSSHPort
	}
	return p.Port
}

// Target renders the profile as a "user@host" destination.
func (p ConnectionProfile) Target() string {
	if p.Username == "" {
		return p.Hostname
	}
	return p.Username + "@" + p.Hostname
}

// Outcome is the final classification of one key in a rotation batch.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeDryRun    Outcome = "dry-run"
)

// RotationRecord captures everything that happened to a single key during a
// rotation invocation. Records are never shared across keys in a batch.
type RotationRecord struct {
	Name            string
	OriginalType    Algorithm
	OriginalComment string
	TargetType      Algorithm
	TargetComment   string
	TargetBits      int
	AffectedHosts   []string
	AffectedAliases []string
	Outcome         Outcome
	Err             error
	Warnings        []string
	Log             []string // Timestamped "[ts] STATUS - message" lines.
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Partial reports whether key material was rotated but some reference
// updates or uploads failed.
func (r *RotationRecord) Partial() bool {
	return r.Outcome == OutcomeSuccess && len(r.Warnings) > 0
}
