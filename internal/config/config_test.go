// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	cfg "github.com/toeirei/keyrot/internal/config"
)

func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)
	wd, _ := os.Getwd()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return tmp
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	tmp := isolate(t)

	c, used, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), "", nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if used != "" {
		t.Fatalf("expected no config file, got %s", used)
	}
	if c.Keys.Root != filepath.Join(tmp, ".ssh") {
		t.Errorf("unexpected keys.root %q", c.Keys.Root)
	}
	if c.Tools.ConnectTimeout != 5*time.Second {
		t.Errorf("unexpected connect timeout %v", c.Tools.ConnectTimeout)
	}
	if !c.Rotation.WriteMetadata || c.Profiles.Backend != "json" {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.SSHConfigPath() != filepath.Join(tmp, ".ssh", "config") {
		t.Errorf("unexpected ssh config path %q", c.SSHConfigPath())
	}
	if c.RotationLogPath() != filepath.Join(tmp, ".ssh", "key_rotation.log") {
		t.Errorf("unexpected log path %q", c.RotationLogPath())
	}
}

func TestLoadConfig_ReadsExplicitFile(t *testing.T) {
	tmp := isolate(t)
	yaml := "keys:\n  root: /srv/keys\ntools:\n  backend: native\n  connect_timeout: 2s\nlanguage: de\n"
	file := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	c, used, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), file, nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if used != file {
		t.Errorf("expected %s to be used, got %s", file, used)
	}
	if c.Keys.Root != "/srv/keys" || c.Tools.Backend != "native" || c.Language != "de" {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.Tools.ConnectTimeout != 2*time.Second {
		t.Errorf("unexpected timeout %v", c.Tools.ConnectTimeout)
	}
	if c.Keys.ArchiveDir != "archived" {
		t.Errorf("default not kept for unset key: %q", c.Keys.ArchiveDir)
	}
}

func TestLoadConfig_EnvAndFlagsOverride(t *testing.T) {
	isolate(t)
	t.Setenv("KEYROT_PROFILES_BACKEND", "sqlite")

	cmd := &cobra.Command{}
	cmd.Flags().String("root", "", "")
	if err := cmd.Flags().Set("root", "/from/flag"); err != nil {
		t.Fatal(err)
	}

	c, _, err := cfg.LoadConfig[cfg.Config](cmd, cfg.Defaults(), "", map[string]string{"keys.root": "root", "ssh.config": "missing-flag"})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if c.Profiles.Backend != "sqlite" {
		t.Errorf("env override not applied: %q", c.Profiles.Backend)
	}
	if c.Keys.Root != "/from/flag" {
		t.Errorf("flag override not applied: %q", c.Keys.Root)
	}
}

func TestLoadConfig_MissingExplicitFileFails(t *testing.T) {
	tmp := isolate(t)
	if _, _, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), filepath.Join(tmp, "nope.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestWriteConfigFile_RoundTrip(t *testing.T) {
	isolate(t)

	c, _, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Keys.Root = "/custom/root"
	path, err := cfg.WriteConfigFile(&c, false)
	if err != nil {
		t.Fatalf("WriteConfigFile failed: %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected config file at %s: %v", path, err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("unexpected mode %v", fi.Mode().Perm())
	}

	again, used, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), "", nil)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if used != path || again.Keys.Root != "/custom/root" {
		t.Errorf("round trip lost values: used=%s root=%s", used, again.Keys.Root)
	}
	if again.Tools.ConnectTimeout != c.Tools.ConnectTimeout {
		t.Errorf("timeout changed across round trip: %v vs %v", again.Tools.ConnectTimeout, c.Tools.ConnectTimeout)
	}
}
