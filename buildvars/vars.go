// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package buildvars holds release metadata injected by the linker, e.g.
//
//	go build -ldflags "-X github.com/toeirei/keyrot/buildvars.Version=v1.0.0 \
//	  -X github.com/toeirei/keyrot/buildvars.Commit=$(git rev-parse --short HEAD)"
//
// All values are empty for local or development builds.
package buildvars

var (
	Version string
	Commit  string
	Date    string // RFC3339
)

// VersionOrDefault returns Version if set, otherwise def.
func VersionOrDefault(def string) string { return or(Version, def) }

// CommitOrDefault returns Commit if set, otherwise def.
func CommitOrDefault(def string) string { return or(Commit, def) }

// DateOrDefault returns Date if set, otherwise def.
func DateOrDefault(def string) string { return or(Date, def) }

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
