// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"strings"
	"testing"

	"github.com/toeirei/keyrot/internal/model"
	"golang.org/x/crypto/ssh"

	cryptossh "github.com/toeirei/keyrot/internal/crypto/ssh"
)

func TestParse_NormalLine(t *testing.T) {
	line := "ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAABAQC3 test-key@example.com"
	alg, key, comment, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if alg != "ssh-rsa" {
		t.Fatalf("unexpected alg: %s", alg)
	}
	if key == "" {
		t.Fatalf("empty key data")
	}
	if comment != "test-key@example.com" {
		t.Fatalf("unexpected comment: %s", comment)
	}
}

func TestParse_MultiWordComment(t *testing.T) {
	_, _, comment, err := Parse("ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIBk laptop key  2026")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if comment != "laptop key 2026" {
		t.Fatalf("unexpected comment: %q", comment)
	}
}

func TestParse_WithOptions(t *testing.T) {
	line := "no-agent-forwarding,command=\"echo hi\" ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIBk comment"
	alg, _, comment, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if alg != "ssh-ed25519" || comment != "comment" {
		t.Fatalf("unexpected parse result: %s %s", alg, comment)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, _, _, err := Parse(""); err == nil {
		t.Fatalf("expected error for empty line")
	}
	if _, _, _, err := Parse("just-some-text"); err == nil {
		t.Fatalf("expected error for no key type")
	}
	if _, _, _, err := Parse("ssh-rsa"); err == nil {
		t.Fatalf("expected error for missing key data")
	}
}

func TestAlgorithmFromKeyType(t *testing.T) {
	cases := map[string]model.Algorithm{
		"ssh-ed25519":         model.AlgorithmEd25519,
		"ssh-rsa":             model.AlgorithmRSA,
		"ecdsa-sha2-nistp384": model.AlgorithmECDSA,
		"ssh-dss":             model.AlgorithmDSA,
		"sk-ssh-ed25519":      model.AlgorithmUnknown,
	}
	for in, want := range cases {
		if got := AlgorithmFromKeyType(in); got != want {
			t.Errorf("AlgorithmFromKeyType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBitSizeAndFingerprint(t *testing.T) {
	pair, err := cryptossh.GenerateKeyPair(model.AlgorithmECDSA, 384, "bits")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	bits, err := BitSize(pair.PublicKey)
	if err != nil || bits != 384 {
		t.Fatalf("BitSize = %d, %v; want 384", bits, err)
	}
	fp, err := Fingerprint(pair.PublicKey)
	if err != nil || !strings.HasPrefix(fp, "SHA256:") {
		t.Fatalf("Fingerprint = %q, %v", fp, err)
	}

	ed, err := cryptossh.GenerateKeyPair(model.AlgorithmEd25519, 0, "ed")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if bits, _ := BitSize(ed.PublicKey); bits != 0 {
		t.Fatalf("expected 0 bits for ed25519, got %d", bits)
	}
	pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(ed.PublicKey))
	if err != nil || pk.Type() != ssh.KeyAlgoED25519 {
		t.Fatalf("unexpected public key: %v", err)
	}
}
