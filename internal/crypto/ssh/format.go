// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// package ssh provides convenience wrappers around the golang.org/x/crypto/ssh package
// for generating key pairs and writing them in OpenSSH format.
package ssh // import "github.com/toeirei/keyrot/internal/crypto/ssh"

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/toeirei/keyrot/internal/model"
	"golang.org/x/crypto/ssh"
)

// FingerprintSHA256 returns the SHA256 fingerprint of the public key.
var FingerprintSHA256 = ssh.FingerprintSHA256

// RSA bit size bounds accepted for generation.
const (
	MinRSABits     = 2048
	MaxRSABits     = 16384
	DefaultRSABits = 4096
)

// KeyPair is a freshly generated key in on-disk formats.
type KeyPair struct {
	PrivatePEM []byte // OpenSSH private key, unencrypted.
	PublicKey  string // authorized_keys line including the comment.
}

// ValidateBits checks bits for the algorithm and returns the effective size.
// Zero selects the algorithm default. Ed25519 ignores the value.
func ValidateBits(alg model.Algorithm, bits int) (int, error) {
	switch alg {
	case model.AlgorithmEd25519:
		return 0, nil
	case model.AlgorithmRSA:
		if bits == 0 {
			return DefaultRSABits, nil
		}
		if bits < MinRSABits || bits > MaxRSABits {
			return 0, fmt.Errorf("%w: rsa key size %d out of range (%d-%d)", model.ErrInvalidInput, bits, MinRSABits, MaxRSABits)
		}
		return bits, nil
	case model.AlgorithmECDSA:
		switch bits {
		case 0:
			return 256, nil
		case 256, 384, 521:
			return bits, nil
		}
		return 0, fmt.Errorf("%w: ecdsa key size must be 256, 384 or 521 (got %d)", model.ErrInvalidInput, bits)
	default:
		return 0, fmt.Errorf("%w: cannot generate %q keys", model.ErrInvalidInput, alg)
	}
}

// GenerateKeyPair creates a new unencrypted key pair of the given algorithm.
func GenerateKeyPair(alg model.Algorithm, bits int, comment string) (*KeyPair, error) {
	bits, err := ValidateBits(alg, bits)
	if err != nil {
		return nil, err
	}

	var priv crypto.PrivateKey
	var pub crypto.PublicKey
	switch alg {
	case model.AlgorithmEd25519:
		p, k, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
		}
		priv, pub = k, p
	case model.AlgorithmRSA:
		k, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate rsa key: %w", err)
		}
		priv, pub = k, &k.PublicKey
	case model.AlgorithmECDSA:
		k, err := ecdsa.GenerateKey(curveFor(bits), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ecdsa key: %w", err)
		}
		priv, pub = k, &k.PublicKey
	}

	block, err := MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, err
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to create ssh public key: %w", err)
	}
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	if comment != "" {
		line += " " + comment
	}
	return &KeyPair{PrivatePEM: pem.EncodeToMemory(block), PublicKey: line + "\n"}, nil
}

func curveFor(bits int) elliptic.Curve {
	switch bits {
	case 384:
		return elliptic.P384()
	case 521:
		return elliptic.P521()
	default:
		return elliptic.P256()
	}
}

// MarshalPrivateKey converts a private key to a PEM block in the OpenSSH
// private key format.
func MarshalPrivateKey(key crypto.PrivateKey, comment string) (*pem.Block, error) {
	pemBlock, err := ssh.MarshalPrivateKey(key, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pemBlock, nil
}

// WriteKeyPair writes the private key to path (0600) and the public key to
// path+".pub" (0644).
func WriteKeyPair(path string, pair *KeyPair) error {
	if err := os.WriteFile(path, pair.PrivatePEM, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(path+model.PublicSuffix, []byte(pair.PublicKey), 0o644); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}
