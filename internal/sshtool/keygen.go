// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package sshtool

import (
	"context"
	"fmt"
	"os"
	"strconv"

	cryptossh "github.com/toeirei/keyrot/internal/crypto/ssh"
	"github.com/toeirei/keyrot/internal/model"
)

// KeySpec describes a key pair to generate. Keys are always created
// without a passphrase.
type KeySpec struct {
	Path      string // Private key path; the public key goes to Path+".pub".
	Algorithm model.Algorithm
	Bits      int // Zero selects the algorithm default.
	Comment   string
}

// Generator creates a key pair on disk.
type Generator interface {
	Generate(ctx context.Context, spec KeySpec) error
}

// ExecGenerator drives ssh-keygen.
type ExecGenerator struct {
	Runner Runner
	Binary string
}

// Generate implements Generator.
func (g *ExecGenerator) Generate(ctx context.Context, spec KeySpec) error {
	bits, err := cryptossh.ValidateBits(spec.Algorithm, spec.Bits)
	if err != nil {
		return err
	}
	args := []string{"-t", string(spec.Algorithm), "-f", spec.Path, "-N", "", "-C", spec.Comment, "-q"}
	if bits > 0 {
		args = append(args, "-b", strconv.Itoa(bits))
	}
	if _, err := g.Runner.Run(ctx, binaryOr(g.Binary, "ssh-keygen"), args...); err != nil {
		return err
	}
	for _, p := range []string{spec.Path, spec.Path + model.PublicSuffix} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: ssh-keygen did not produce %s", model.ErrExternalTool, p)
		}
	}
	return nil
}

// NativeGenerator creates keys in-process.
type NativeGenerator struct{}

// Generate implements Generator.
func (NativeGenerator) Generate(_ context.Context, spec KeySpec) error {
	pair, err := cryptossh.GenerateKeyPair(spec.Algorithm, spec.Bits, spec.Comment)
	if err != nil {
		return err
	}
	if err := cryptossh.WriteKeyPair(spec.Path, pair); err != nil {
		return fmt.Errorf("%w: %v", model.ErrExternalTool, err)
	}
	return nil
}

func binaryOr(bin, def string) string {
	if bin == "" {
		return def
	}
	return bin
}
