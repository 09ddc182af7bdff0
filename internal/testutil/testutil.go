// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package testutil holds fixtures shared by package tests: an isolated home
// directory and real key pairs written below a key root.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	cryptossh "github.com/toeirei/keyrot/internal/crypto/ssh"
	"github.com/toeirei/keyrot/internal/model"
)

// Isolate points HOME and XDG_CONFIG_HOME at a fresh temporary directory so
// tests never read the developer's keys or configuration. It returns the
// home directory and its .ssh key root, which it creates.
func Isolate(t testing.TB) (home, root string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	root = filepath.Join(home, ".ssh")
	if err := os.MkdirAll(root, 0o700); err != nil {
		t.Fatal(err)
	}
	return home, root
}

// WriteKeyPair generates an unencrypted key pair of the given algorithm
// (default size) at root/name and returns the private key path.
func WriteKeyPair(t testing.TB, root, name string, alg model.Algorithm, comment string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		t.Fatal(err)
	}
	pair, err := cryptossh.GenerateKeyPair(alg, 0, comment)
	if err != nil {
		t.Fatal(err)
	}
	if err := cryptossh.WriteKeyPair(p, pair); err != nil {
		t.Fatal(err)
	}
	return p
}

// WriteFile writes content to p, creating parent directories.
func WriteFile(t testing.TB, p, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
}
