// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package sshtool

import (
	"fmt"
	"strings"
	"time"

	"github.com/toeirei/keyrot/internal/model"
)

// Backend names.
const (
	BackendExec   = "exec"
	BackendNative = "native"
)

// Options configures NewToolset.
type Options struct {
	Backend        string
	Keygen         string // ssh-keygen binary
	SSH            string // ssh binary
	CopyID         string // ssh-copy-id binary
	ConnectTimeout time.Duration
	HostKeys       HostKeys
	Runner         Runner // Defaults to ExecRunner.
}

// Toolset bundles the three external collaborators of a rotation.
type Toolset struct {
	Generator Generator
	Tester    Tester
	Uploader  Uploader
}

// NewToolset builds the toolset for the selected backend.
func NewToolset(o Options) (Toolset, error) {
	switch strings.ToLower(strings.TrimSpace(o.Backend)) {
	case "", BackendExec:
		r := o.Runner
		if r == nil {
			r = ExecRunner{}
		}
		return Toolset{
			Generator: &ExecGenerator{Runner: r, Binary: o.Keygen},
			Tester:    &ExecTester{Runner: r, Binary: o.SSH, Timeout: o.ConnectTimeout},
			Uploader:  &ExecUploader{Runner: r, Binary: o.CopyID},
		}, nil
	case BackendNative:
		return Toolset{
			Generator: NativeGenerator{},
			Tester:    &NativeTester{Timeout: o.ConnectTimeout, HostKeys: o.HostKeys},
			Uploader:  &SFTPUploader{Timeout: o.ConnectTimeout, HostKeys: o.HostKeys},
		}, nil
	default:
		return Toolset{}, fmt.Errorf("%w: unsupported tools backend %q", model.ErrInvalidInput, o.Backend)
	}
}
