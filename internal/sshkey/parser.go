// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshkey provides small utilities to parse OpenSSH public key lines
// and to derive the facts the key store reports about them.
package sshkey

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/toeirei/keyrot/internal/model"
	"golang.org/x/crypto/ssh"
)

// Parse splits a raw public key string (like one from a .pub file or an
// authorized_keys line) into its three core components: algorithm, key data,
// and comment. Leading options in the line (e.g., from="...") are skipped.
func Parse(rawKey string) (algorithm, keyData, comment string, err error) {
	fields := strings.Fields(rawKey)
	if len(fields) == 0 {
		err = fmt.Errorf("empty line")
		return
	}

	keyStartIndex := -1
	for i, field := range fields {
		if strings.HasPrefix(field, "ssh-") || strings.HasPrefix(field, "ecdsa-") {
			keyStartIndex = i
			break
		}
	}

	if keyStartIndex == -1 {
		err = fmt.Errorf("no valid SSH key type found in line")
		return
	}

	if len(fields) < keyStartIndex+2 {
		err = fmt.Errorf("invalid public key format: missing key data after algorithm")
		return
	}

	algorithm = fields[keyStartIndex]
	keyData = fields[keyStartIndex+1]
	if len(fields) > keyStartIndex+2 {
		comment = strings.Join(fields[keyStartIndex+2:], " ")
	}

	return
}

// AlgorithmFromKeyType maps an SSH wire key type ("ssh-ed25519", "ssh-rsa",
// "ecdsa-sha2-nistp256", ...) onto a model.Algorithm.
func AlgorithmFromKeyType(keyType string) model.Algorithm {
	switch {
	case keyType == ssh.KeyAlgoED25519:
		return model.AlgorithmEd25519
	case keyType == ssh.KeyAlgoRSA:
		return model.AlgorithmRSA
	case strings.HasPrefix(keyType, "ecdsa-sha2-"):
		return model.AlgorithmECDSA
	case keyType == ssh.KeyAlgoDSA:
		return model.AlgorithmDSA
	default:
		return model.AlgorithmUnknown
	}
}

// Fingerprint returns the SHA256 fingerprint of a public key line.
func Fingerprint(line string) (string, error) {
	pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	return ssh.FingerprintSHA256(pk), nil
}

// BitSize returns the key size in bits for RSA and ECDSA public key lines and
// 0 for algorithms with a fixed size.
func BitSize(line string) (int, error) {
	pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return 0, fmt.Errorf("parse public key: %w", err)
	}
	cpk, ok := pk.(ssh.CryptoPublicKey)
	if !ok {
		return 0, nil
	}
	switch k := cpk.CryptoPublicKey().(type) {
	case *rsa.PublicKey:
		return k.N.BitLen(), nil
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize, nil
	default:
		return 0, nil
	}
}
