// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package keystore resolves logical key names to files below a key root,
// classifies private keys and enumerates active and archived keys.
package keystore // import "github.com/toeirei/keyrot/internal/keystore"

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toeirei/keyrot/internal/logging"
	"github.com/toeirei/keyrot/internal/model"
)

// DefaultArchiveDir is the name of the archive subtree below the key root.
const DefaultArchiveDir = "archived"

// TempDirPrefix marks scratch directories created while generating keys.
// Scans never descend into them.
const TempDirPrefix = ".keyrot-"

// excludedNames are well-known files in an SSH directory that are never keys.
var excludedNames = map[string]bool{
	"config":          true,
	"known_hosts":     true,
	"known_hosts.old": true,
	"authorized_keys": true,
}

// Store gives access to the keys below Root.
type Store struct {
	Root       string
	ArchiveDir string   // Top-level directory holding archived keys; skipped by active scans.
	Skip       []string // Additional top-level directory names never scanned.
}

// New returns a Store for root with the default archive directory.
func New(root string) *Store {
	return &Store{Root: filepath.Clean(root), ArchiveDir: DefaultArchiveDir}
}

// ArchiveRoot returns the absolute path of the archive subtree.
func (s *Store) ArchiveRoot() string {
	return filepath.Join(s.Root, s.ArchiveDir)
}

// ValidateName rejects names that are empty, absolute or escape the root.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty key name", model.ErrInvalidInput)
	}
	slashed := filepath.ToSlash(name)
	if path.IsAbs(slashed) || filepath.IsAbs(name) {
		return fmt.Errorf("%w: key name %q must be relative to the key root", model.ErrInvalidInput, name)
	}
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: key name %q must not contain '..'", model.ErrInvalidInput, name)
		}
	}
	return nil
}

// Resolve finds the private key for name. It tries Root/name first and then
// scans the tree (excluding the archive) in lexical order for a file whose
// filename equals the last segment of name. The first match wins.
func (s *Store) Resolve(name string) (model.KeyHandle, error) {
	if err := ValidateName(name); err != nil {
		return model.KeyHandle{}, err
	}
	direct := filepath.Join(s.Root, filepath.FromSlash(name))
	if s.excluded(direct) {
		candidates, _ := s.names()
		return model.KeyHandle{}, &model.KeyNotFoundError{Name: name, Candidates: candidates}
	}
	if IsPrivateKey(direct) {
		return s.Handle(direct)
	}

	base := path.Base(filepath.ToSlash(name))
	var found string
	err := s.walk(func(p string, d fs.DirEntry) error {
		if d.Name() == base && IsPrivateKey(p) {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return model.KeyHandle{}, err
	}
	if found != "" {
		logging.Debugf("keystore: resolved %q to %s by filename scan", name, found)
		return s.Handle(found)
	}

	candidates, _ := s.names()
	return model.KeyHandle{}, &model.KeyNotFoundError{Name: name, Candidates: candidates}
}

// Handle builds a KeyHandle for the private key at p.
func (s *Store) Handle(p string) (model.KeyHandle, error) {
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.KeyHandle{}, fmt.Errorf("%w: %s", model.ErrNotFound, p)
		}
		return model.KeyHandle{}, err
	}
	rel, err := filepath.Rel(s.Root, p)
	if err != nil {
		rel = filepath.Base(p)
	}
	h := model.KeyHandle{
		Name:        filepath.ToSlash(rel),
		Path:        p,
		Algorithm:   DetectType(p),
		Permissions: fi.Mode().Perm().String(),
		Encrypted:   IsEncrypted(p),
	}
	h.HasPublic = fileExists(h.PublicPath())
	h.HasMeta = fileExists(h.MetaPath())
	return h, nil
}

// ListOptions controls List.
type ListOptions struct {
	IncludeArchived bool
}

// List enumerates every private key below Root. Archived keys are returned
// only when requested and are marked as such, with names relative to the
// archive root.
func (s *Store) List(opts ListOptions) ([]model.KeyHandle, error) {
	var keys []model.KeyHandle
	err := s.walk(func(p string, d fs.DirEntry) error {
		if !IsPrivateKey(p) {
			return nil
		}
		h, err := s.Handle(p)
		if err != nil {
			return err
		}
		keys = append(keys, h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opts.IncludeArchived && s.ArchiveDir != "" {
		archived := s.ArchiveStore()
		if _, err := os.Stat(archived.Root); err == nil {
			more, err := archived.List(ListOptions{})
			if err != nil {
				return nil, err
			}
			for i := range more {
				more[i].Archived = true
			}
			keys = append(keys, more...)
		}
	}
	return keys, nil
}

// ConfigBackupDir holds SSH config backups inside the archive root.
const ConfigBackupDir = "config_backups"

// ArchiveStore returns a Store rooted at the archive subtree, used to resolve
// archived keys by name.
func (s *Store) ArchiveStore() *Store {
	return &Store{Root: s.ArchiveRoot(), Skip: []string{ConfigBackupDir}}
}

// ListActiveKeyNames returns the sorted names of active keys below root. It
// holds no state and is safe to call from completion handlers.
func ListActiveKeyNames(root string) []string {
	names, _ := New(root).names()
	return names
}

func (s *Store) names() ([]string, error) {
	var names []string
	err := s.walk(func(p string, d fs.DirEntry) error {
		if !IsPrivateKey(p) {
			return nil
		}
		if rel, err := filepath.Rel(s.Root, p); err == nil {
			names = append(names, filepath.ToSlash(rel))
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}

// walk visits candidate key files below Root in lexical order.
func (s *Store) walk(fn func(p string, d fs.DirEntry) error) error {
	archiveRoot := ""
	if s.ArchiveDir != "" {
		archiveRoot = s.ArchiveRoot()
	}
	err := filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == s.Root {
				return err
			}
			logging.Debugf("keystore: skipping %s: %v", p, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p == s.Root {
				return nil
			}
			if p == archiveRoot || strings.HasPrefix(d.Name(), TempDirPrefix) || s.skipped(p) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || isCompanionOrExcluded(d.Name()) {
			return nil
		}
		return fn(p, d)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// excluded reports whether p lies in a part of the tree that scans skip:
// the archive subtree, a scratch directory or a Skip directory.
func (s *Store) excluded(p string) bool {
	rel, err := filepath.Rel(s.Root, p)
	if err != nil {
		return true
	}
	segs := strings.Split(filepath.ToSlash(rel), "/")
	if s.ArchiveDir != "" && segs[0] == filepath.ToSlash(s.ArchiveDir) {
		return true
	}
	for _, seg := range segs[:len(segs)-1] {
		if strings.HasPrefix(seg, TempDirPrefix) {
			return true
		}
	}
	return len(segs) > 1 && s.skipped(filepath.Join(s.Root, segs[0]))
}

func (s *Store) skipped(p string) bool {
	for _, name := range s.Skip {
		if p == filepath.Join(s.Root, name) {
			return true
		}
	}
	return false
}

func isCompanionOrExcluded(name string) bool {
	return excludedNames[name] ||
		strings.HasSuffix(name, model.PublicSuffix) ||
		strings.HasSuffix(name, model.MetaSuffix)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
