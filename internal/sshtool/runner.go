// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshtool wraps the external programs a rotation depends on: key
// generation, connection testing and public-key distribution. Each concern
// has an exec backend driving the OpenSSH tools and a native backend built
// on golang.org/x/crypto/ssh and github.com/pkg/sftp.
package sshtool // import "github.com/toeirei/keyrot/internal/sshtool"

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/toeirei/keyrot/internal/logging"
	"github.com/toeirei/keyrot/internal/model"
)

// Runner executes an external program and returns its combined output.
// A non-zero exit status or a start failure is reported as an error
// matching model.ErrExternalTool.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	logging.Debugf("exec: %s %s", name, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	out := buf.Bytes()
	if err != nil {
		return out, toolError(name, err, out)
	}
	return out, nil
}

func toolError(name string, err error, out []byte) error {
	msg := strings.TrimSpace(string(out))
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg != "" {
			return fmt.Errorf("%w: %s exited with status %d: %s", model.ErrExternalTool, name, exitErr.ExitCode(), msg)
		}
		return fmt.Errorf("%w: %s exited with status %d", model.ErrExternalTool, name, exitErr.ExitCode())
	}
	return fmt.Errorf("%w: %s: %v", model.ErrExternalTool, name, err)
}
