// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package keystore

import (
	"bufio"
	"bytes"
	"crypto/dsa" //nolint:staticcheck // legacy keys are still detected
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/internal/sshkey"
	"golang.org/x/crypto/ssh"
)

const (
	pemBeginMarker     = "-----BEGIN"
	headerProbeLen     = 32
	encryptionProbeLen = 512
)

var encryptionMarkers = []string{"ENCRYPTED", "Proc-Type: 4,ENCRYPTED", "DEK-Info:"}

// IsPrivateKey reports whether the file at p is a private key: it must not
// carry the public-key suffix and its first bytes must equal "-----BEGIN".
func IsPrivateKey(p string) bool {
	if strings.HasSuffix(p, model.PublicSuffix) {
		return false
	}
	head, err := readHead(p, headerProbeLen)
	if err != nil {
		return false
	}
	return bytes.HasPrefix(head, []byte(pemBeginMarker))
}

// DetectType inspects the private-key header. The OpenSSH container does not
// reveal its algorithm, so for it the public-key companion is consulted,
// then the key itself when it is not passphrase protected.
func DetectType(p string) model.Algorithm {
	head, err := readHead(p, encryptionProbeLen)
	if err != nil {
		return model.AlgorithmUnknown
	}
	firstLine := string(head)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	switch {
	case strings.Contains(firstLine, "RSA PRIVATE KEY"):
		return model.AlgorithmRSA
	case strings.Contains(firstLine, "EC PRIVATE KEY"):
		return model.AlgorithmECDSA
	case strings.Contains(firstLine, "DSA PRIVATE KEY"):
		return model.AlgorithmDSA
	case strings.Contains(firstLine, "OPENSSH PRIVATE KEY"):
		if alg := typeFromPublicCompanion(p + model.PublicSuffix); alg != model.AlgorithmUnknown {
			return alg
		}
		return typeFromKeyMaterial(p)
	case strings.Contains(firstLine, "PRIVATE KEY"):
		return typeFromKeyMaterial(p)
	}
	return model.AlgorithmUnknown
}

func typeFromPublicCompanion(pubPath string) model.Algorithm {
	line, err := firstLineOf(pubPath)
	if err != nil {
		return model.AlgorithmUnknown
	}
	alg, _, _, err := sshkey.Parse(line)
	if err != nil {
		return model.AlgorithmUnknown
	}
	return sshkey.AlgorithmFromKeyType(alg)
}

func typeFromKeyMaterial(p string) model.Algorithm {
	data, err := os.ReadFile(p)
	if err != nil {
		return model.AlgorithmUnknown
	}
	key, err := ssh.ParseRawPrivateKey(data)
	if err != nil {
		return model.AlgorithmUnknown
	}
	switch key.(type) {
	case ed25519.PrivateKey, *ed25519.PrivateKey:
		return model.AlgorithmEd25519
	case *rsa.PrivateKey:
		return model.AlgorithmRSA
	case *ecdsa.PrivateKey:
		return model.AlgorithmECDSA
	case *dsa.PrivateKey:
		return model.AlgorithmDSA
	}
	return model.AlgorithmUnknown
}

// IsEncrypted reports whether the private key is passphrase protected. PEM
// keys are recognised by their encryption headers; OpenSSH containers carry
// the cipher inside the encoded body and are probed by parsing.
func IsEncrypted(p string) bool {
	head, err := readHead(p, encryptionProbeLen)
	if err != nil {
		return false
	}
	s := string(head)
	for _, marker := range encryptionMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	if !strings.Contains(s, "OPENSSH PRIVATE KEY") {
		return false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return false
	}
	_, err = ssh.ParseRawPrivateKey(data)
	var missing *ssh.PassphraseMissingError
	return errors.As(err, &missing)
}

// ExtractComment returns the comment of a public key file: the third and later
// whitespace-separated tokens of its key line.
func ExtractComment(pubPath string) (string, bool) {
	line, err := firstLineOf(pubPath)
	if err != nil {
		return "", false
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", false
	}
	return strings.Join(fields[2:], " "), true
}

// ReadPublicKey returns the first key line of a public key file.
func ReadPublicKey(pubPath string) (string, error) {
	return firstLineOf(pubPath)
}

func readHead(p string, n int) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

func firstLineOf(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
