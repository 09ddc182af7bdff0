// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package sshconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toeirei/keyrot/internal/clock"
	"github.com/toeirei/keyrot/internal/keypath"
	"github.com/toeirei/keyrot/internal/keystore"
	"github.com/toeirei/keyrot/internal/logging"
	"github.com/toeirei/keyrot/internal/model"
)

// Syncer keeps the identity references of an SSH client configuration in
// step with rotated keys.
type Syncer struct {
	Resolver keypath.Resolver
	Clock    clock.Clock
}

// New returns a Syncer resolving relative references against root.
func New(root string) *Syncer {
	return &Syncer{Resolver: keypath.NewResolver(root)}
}

// Load parses the configuration file. A missing file has no hosts.
func (s *Syncer) Load(configPath string) ([]model.ConfigHostEntry, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrConfigIO, configPath, err)
	}
	return Parse(string(data), s.Resolver), nil
}

// FindHostsUsingKey returns the sorted set of hosts whose identity resolves
// to keyPath. Dangling references are compared by normalised path.
func (s *Syncer) FindHostsUsingKey(configPath, keyPath string) ([]string, error) {
	entries, err := s.Load(configPath)
	if err != nil {
		return nil, err
	}
	set := map[string]bool{}
	for _, e := range entries {
		for _, id := range e.IdentityFiles {
			if keypath.Equal(id, keyPath) {
				set[e.Host] = true
				break
			}
		}
	}
	hosts := make([]string, 0, len(set))
	for h := range set {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts, nil
}

// RewriteIdentity points the IdentityFile lines of the given hosts at
// newKeyPath and returns how many lines now reference it. When oldKeyPath is
// set only lines referencing that key are touched, so a host listing several
// identities keeps the others. All other bytes of the file are preserved.
func (s *Syncer) RewriteIdentity(configPath, oldKeyPath, newKeyPath string, hosts []string) (int, error) {
	if len(hosts) == 0 {
		return 0, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", model.ErrConfigIO, configPath, err)
	}
	wanted := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		wanted[h] = true
	}

	lines := strings.SplitAfter(string(data), "\n")
	count, changed := 0, false
	inHost := false
	for i, line := range lines {
		d, ok := splitDirective(line)
		if !ok {
			continue
		}
		switch {
		case isHost(d):
			inHost = wanted[d.value]
		case isMatch(d):
			inHost = false
		case isIdentityFile(d) && inHost:
			if oldKeyPath != "" && !s.Resolver.Same(d.value, oldKeyPath) {
				continue
			}
			count++
			if s.Resolver.Same(d.value, newKeyPath) {
				continue
			}
			lines[i] = line[:d.valueStart] + s.formatValue(newKeyPath, d.quoted) + line[d.valueEnd:]
			changed = true
		}
	}
	if !changed {
		return count, nil
	}
	if err := writeAtomic(configPath, []byte(strings.Join(lines, ""))); err != nil {
		return 0, fmt.Errorf("%w: write %s: %v", model.ErrConfigIO, configPath, err)
	}
	logging.Debugf("sshconfig: rewrote %d identity line(s) in %s", count, configPath)
	return count, nil
}

func (s *Syncer) formatValue(p string, quoted bool) string {
	v := filepath.ToSlash(s.Resolver.Contract(p))
	if quoted || strings.ContainsAny(v, " \t") {
		return `"` + v + `"`
	}
	return v
}

// BackupTimeFormat is the timestamp layout of backup file names.
const BackupTimeFormat = "20060102_150405"

// Backup copies the configuration file unmodified to
// <archiveRoot>/config_backups/config_<yyyyMMdd_HHmmss> and returns the copy's
// path. A missing configuration file has nothing to protect and yields "".
func (s *Syncer) Backup(configPath, archiveRoot string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: read %s: %v", model.ErrConfigIO, configPath, err)
	}
	dir := filepath.Join(archiveRoot, keystore.ConfigBackupDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", model.ErrConfigIO, dir, err)
	}
	base := filepath.Join(dir, "config_"+clock.Or(s.Clock).Now().Format(BackupTimeFormat))
	dst := base
	for n := 1; ; n++ {
		if _, err := os.Lstat(dst); errors.Is(err, fs.ErrNotExist) {
			break
		}
		dst = fmt.Sprintf("%s_%d", base, n)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("%w: write %s: %v", model.ErrConfigIO, dst, err)
	}
	if fi, err := os.Stat(dst); err != nil || fi.Size() != int64(len(data)) {
		_ = os.Remove(dst)
		return "", fmt.Errorf("%w: backup %s is incomplete", model.ErrConfigIO, dst)
	}
	return dst, nil
}

// writeAtomic replaces path with data via a temporary file in the same
// directory, keeping the original permissions.
func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0o600)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".keyrot-config-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
