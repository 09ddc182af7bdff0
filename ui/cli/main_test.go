// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/toeirei/keyrot/internal/clock"
	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/internal/testutil"
)

// cliEnv is an isolated home directory with a key root and a profile file.
type cliEnv struct {
	home, root, profiles string
	clock                *clock.Fixed
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	home, root := testutil.Isolate(t)
	return &cliEnv{
		home:     home,
		root:     root,
		profiles: filepath.Join(home, "profiles.json"),
		clock:    &clock.Fixed{T: time.Date(2026, 10, 19, 8, 30, 5, 0, time.UTC)},
	}
}

// run executes the command tree with the environment's key root and
// profile file, feeding stdin to prompts.
func (c *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(&env{clock: c.clock})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--root", c.root, "--profiles", c.profiles, "--tools", "native"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cliEnv) key(t *testing.T, name string, alg model.Algorithm, comment string) string {
	t.Helper()
	return testutil.WriteKeyPair(t, c.root, name, alg, comment)
}

func (c *cliEnv) sshConfig(t *testing.T, text string) string {
	t.Helper()
	p := filepath.Join(c.root, "config")
	testutil.WriteFile(t, p, text, 0o644)
	return p
}

func (c *cliEnv) profilesJSON(t *testing.T, text string) {
	t.Helper()
	testutil.WriteFile(t, c.profiles, text, 0o600)
}

func TestList_ActiveAndArchived(t *testing.T) {
	c := newCLIEnv(t)
	c.key(t, "id_ed25519", model.AlgorithmEd25519, "me@laptop")
	c.key(t, "work/id_deploy", model.AlgorithmECDSA, "deploy")
	c.key(t, "archived/old/id_rsa", model.AlgorithmEd25519, "old")

	out, err := c.run(t, "", "list")
	if err != nil {
		t.Fatalf("list failed: %v\n%s", err, out)
	}
	for _, want := range []string{"id_ed25519", "work/id_deploy", "ed25519", "ecdsa", "-rw-------"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "old/id_rsa") {
		t.Errorf("archived key listed without --archived:\n%s", out)
	}

	out, err = c.run(t, "", "list", "--archived")
	if err != nil {
		t.Fatalf("list --archived failed: %v", err)
	}
	if !strings.Contains(out, "old/id_rsa") || !strings.Contains(out, "archived") {
		t.Errorf("expected archived key in output:\n%s", out)
	}
}

func TestList_Empty(t *testing.T) {
	c := newCLIEnv(t)
	out, err := c.run(t, "", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No keys found") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestShow_PrintsPublicKeyAndCopies(t *testing.T) {
	c := newCLIEnv(t)
	p := c.key(t, "id_ed25519", model.AlgorithmEd25519, "me@laptop")

	var copied string
	prev := clipboardWrite
	clipboardWrite = func(s string) error { copied = s; return nil }
	defer func() { clipboardWrite = prev }()

	out, err := c.run(t, "", "show", "id_ed25519", "--copy")
	if err != nil {
		t.Fatalf("show failed: %v\n%s", err, out)
	}
	pub, _ := os.ReadFile(p + ".pub")
	line := strings.TrimSpace(string(pub))
	if !strings.Contains(out, line) {
		t.Errorf("public key missing from output:\n%s", out)
	}
	if !strings.Contains(out, "SHA256:") || !strings.Contains(out, "me@laptop") {
		t.Errorf("fingerprint or comment missing:\n%s", out)
	}
	if copied != line {
		t.Errorf("clipboard got %q", copied)
	}
}

func TestShow_UnknownKeyListsCandidates(t *testing.T) {
	c := newCLIEnv(t)
	c.key(t, "id_a", model.AlgorithmEd25519, "a")

	_, err := c.run(t, "", "show", "id_missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "id_a") {
		t.Fatalf("expected candidates in error, got %v", err)
	}
}

func TestRefs_HostsAndProfiles(t *testing.T) {
	c := newCLIEnv(t)
	c.key(t, "work/id_x", model.AlgorithmEd25519, "x")
	c.sshConfig(t, "Host prod\n  IdentityFile ~/.ssh/work/id_x\nHost other\n  IdentityFile ~/.ssh/id_other\n")
	c.profilesJSON(t, `[{"alias":"db","hostname":"db.example.com","username":"ops","port":22,"sshKey":"~/.ssh/work/id_x"}]`)

	out, err := c.run(t, "", "refs", "work/id_x")
	if err != nil {
		t.Fatalf("refs failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "prod") || !strings.Contains(out, "ops@db.example.com") {
		t.Fatalf("missing references:\n%s", out)
	}
	if strings.Contains(out, "other") {
		t.Fatalf("unrelated host listed:\n%s", out)
	}
}

func TestConfigShowAndInit(t *testing.T) {
	c := newCLIEnv(t)
	out, err := c.run(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, c.root) || !strings.Contains(out, "archive_dir: archived") {
		t.Fatalf("unexpected config output:\n%s", out)
	}

	target := filepath.Join(c.home, "keyrot.yaml")
	if _, err := c.run(t, "", "config", "init", target); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := c.run(t, "", "config", "init", target); !errors.Is(err, model.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// The written file is picked up by --config.
	out, err = c.run(t, "", "--config", target, "config", "show")
	if err != nil {
		t.Fatalf("config show with file failed: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected config file path in output:\n%s", out)
	}
}

func TestMissingConfigFileFlag(t *testing.T) {
	c := newCLIEnv(t)
	if _, err := c.run(t, "", "--config", filepath.Join(c.home, "nope.yaml"), "list"); err == nil {
		t.Fatalf("expected error for missing --config file")
	}
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	c := newCLIEnv(t)
	t.Setenv("KEYROT_ROTATION_LOG_FILE", "rotations.log")
	out, err := c.run(t, "", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "log_file: rotations.log") {
		t.Fatalf("expected env override in config:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	c := newCLIEnv(t)
	out, err := c.run(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "version: ") || !strings.Contains(out, "commit: ") {
		t.Fatalf("unexpected version output: %s", out)
	}
}

func TestCompleteKeyNames(t *testing.T) {
	c := newCLIEnv(t)
	c.key(t, "id_a", model.AlgorithmEd25519, "a")
	c.key(t, "work/id_b", model.AlgorithmEd25519, "b")

	out, err := c.run(t, "", "__complete", "show", "wo")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "work/id_b") || strings.Contains(out, "id_a\n") {
		t.Fatalf("unexpected completions:\n%s", out)
	}
}
