// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the keyrot command-line interface using Cobra.
// It loads configuration, wires the key store, archive vault, reference
// synchronisers and tool backends, and hands the work to the rotation and
// vault packages. CLI code stays thin and only formats results.
package cli
