// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package logging

import (
	"bytes"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"
)

// captureLogger points L at a buffer for the duration of the test.
func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := L
	L = clog.New(&buf)
	t.Cleanup(func() { L = prev })
	return &buf
}

func TestLevelHelpers(t *testing.T) {
	buf := captureLogger(t)
	L.SetLevel(clog.DebugLevel)

	Debugf("scan %s", "root")
	Infof("moved %d file(s)", 2)
	Warnf("profiles unavailable")
	Errorf("rollback failed: %v", "EPERM")

	for _, want := range []string{"scan root", "moved 2 file(s)", "profiles unavailable", "rollback failed: EPERM"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("missing %q in %q", want, buf.String())
		}
	}
}

func TestWithAddsFields(t *testing.T) {
	buf := captureLogger(t)
	With("key", "id_ed25519").Info("archived")
	if !strings.Contains(buf.String(), "key=id_ed25519") {
		t.Fatalf("expected key field, got %q", buf.String())
	}
}

func TestSetLevelAndDebug(t *testing.T) {
	buf := captureLogger(t)

	if err := SetLevel(" WARN "); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	Infof("quiet")
	Warnf("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Fatalf("warn level not applied: %q", buf.String())
	}
	if err := SetLevel("chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}

	SetDebug(true)
	Debugf("trace")
	if !strings.Contains(buf.String(), "trace") {
		t.Fatalf("debug output missing after SetDebug(true)")
	}
	SetDebug(false)
	if L.GetLevel() != clog.InfoLevel {
		t.Fatalf("level = %v, want info", L.GetLevel())
	}
}
