// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package sshtool

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// Tester checks that keyPath alone authenticates against a target, without
// interaction and within a bounded time.
type Tester interface {
	Test(ctx context.Context, keyPath string, t Target) error
}

// ExecTester runs `ssh ... exit` in batch mode.
type ExecTester struct {
	Runner  Runner
	Binary  string
	Timeout time.Duration
}

// Test implements Tester.
func (e *ExecTester) Test(ctx context.Context, keyPath string, t Target) error {
	_, err := e.Runner.Run(ctx, binaryOr(e.Binary, "ssh"), e.args(keyPath, t)...)
	return err
}

func (e *ExecTester) args(keyPath string, t Target) []string {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	secs := int(timeout.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	args := []string{
		"-i", keyPath,
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=" + strconv.Itoa(secs),
		"-o", "StrictHostKeyChecking=no",
		"-o", "IdentitiesOnly=yes",
	}
	if t.Port != 0 {
		args = append(args, "-p", strconv.Itoa(t.Port))
	}
	return append(args, t.Destination(), "exit")
}

// NativeTester authenticates with x/crypto/ssh using only the given key.
// A completed handshake counts as success; no command is run.
type NativeTester struct {
	Timeout  time.Duration
	HostKeys HostKeys
}

// Test implements Tester.
func (n *NativeTester) Test(ctx context.Context, keyPath string, t Target) error {
	signer, err := signerFromFile(keyPath)
	if err != nil {
		return err
	}
	client, err := dial(ctx, t, []ssh.AuthMethod{ssh.PublicKeys(signer)}, n.HostKeys, n.Timeout)
	if err != nil {
		return err
	}
	return client.Close()
}
