// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Command keyrot archives, restores and rotates the SSH keys of the current
// user.
//
// Usage:
//
//	keyrot list [--archived]
//	keyrot rotate <key> [key...] [--type ed25519] [--dry-run]
//
// See keyrot --help for all commands.
package main

import (
	"os"

	"github.com/toeirei/keyrot/ui/cli"
)

func main() {
	// Cobra has already printed the error.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
