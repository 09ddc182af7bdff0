// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"runtime/debug"
	"testing"
)

func TestResolveBuildVersion(t *testing.T) {
	const module = "github.com/toeirei/keyrot"
	orig := gitCommit
	defer func() { gitCommit = orig }()

	tests := []struct {
		name   string
		commit string
		info   *debug.BuildInfo
		want   string
	}{
		{
			name: "tagged main module",
			info: &debug.BuildInfo{Main: debug.Module{Path: module, Version: "v0.4.0"}},
			want: "v0.4.0",
		},
		{
			name: "pseudo version from dependency",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/wrapper", Version: "(devel)"},
				Deps: []*debug.Module{{Path: module, Version: "v0.4.1-0.20261019083005-abcdef012345"}},
			},
			want: "v0.4.1-0.20261019083005-abcdef012345",
		},
		{
			name:   "local build reports commit",
			commit: "c0ffee1",
			info:   &debug.BuildInfo{Main: debug.Module{Path: module, Version: "(devel)"}},
			want:   "c0ffee1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gitCommit = orig
			if tt.commit != "" {
				gitCommit = tt.commit
			}
			v, c, d := resolveBuildVersion(tt.info)
			if v != tt.want {
				t.Fatalf("version = %q, want %q", v, tt.want)
			}
			if c != gitCommit || d != buildDate {
				t.Fatalf("commit/date = %q/%q, want package defaults", c, d)
			}
		})
	}
}
