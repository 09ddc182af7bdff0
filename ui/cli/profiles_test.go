// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toeirei/keyrot/internal/model"
)

func TestProfileCommands(t *testing.T) {
	c := newCLIEnv(t)

	out, err := c.run(t, "", "profile", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No connection profiles") {
		t.Fatalf("unexpected empty listing: %s", out)
	}

	if _, err := c.run(t, "", "profile", "add", "db", "--host", "db.example.com", "--user", "ops", "--key", "~/.ssh/id_db"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := c.run(t, "", "profile", "add", "backup", "--host", "10.0.0.5", "--port", "2222"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := c.run(t, "", "profile", "add", "db", "--host", "other"); !errors.Is(err, model.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := c.run(t, "", "profile", "add", "bad", "--host", "h", "--port", "70000"); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	out, err = c.run(t, "", "profile", "list")
	if err != nil {
		t.Fatal(err)
	}
	dbAt, backupAt := strings.Index(out, "db.example.com"), strings.Index(out, "10.0.0.5")
	if dbAt < 0 || backupAt < 0 || dbAt > backupAt {
		t.Fatalf("profiles missing or out of order:\n%s", out)
	}

	out, err = c.run(t, "", "profile", "show", "backup")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "2222") {
		t.Fatalf("unexpected show output:\n%s", out)
	}

	if _, err := c.run(t, "", "profile", "rm", "db"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := c.run(t, "", "profile", "show", "db"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfileCommands_SQLiteBackend(t *testing.T) {
	c := newCLIEnv(t)
	dsn := filepath.Join(c.home, "profiles.db")

	args := []string{"--profiles-backend", "sqlite", "--profiles-dsn", dsn}
	if _, err := c.run(t, "", append(args, "profile", "add", "db", "--host", "db.example.com")...); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	out, err := c.run(t, "", append(args, "profile", "list")...)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "db.example.com") {
		t.Fatalf("profile not persisted in sqlite store:\n%s", out)
	}
}
