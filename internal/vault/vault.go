// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package vault moves keys between the active key tree and the archive
// subtree that mirrors its layout.
package vault // import "github.com/toeirei/keyrot/internal/vault"

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/toeirei/keyrot/internal/clock"
	"github.com/toeirei/keyrot/internal/keystore"
	"github.com/toeirei/keyrot/internal/logging"
	"github.com/toeirei/keyrot/internal/model"
)

// Vault archives and restores keys of a key store.
type Vault struct {
	Keys  *keystore.Store
	Clock clock.Clock
}

// New returns a Vault over keys.
func New(keys *keystore.Store) *Vault {
	return &Vault{Keys: keys}
}

// move is one file relocation of a key and its companions.
type move struct{ src, dst string }

// Archive moves the private key, then its .pub and .meta companions, to the
// same relative path below the archive root. Directories left empty in the
// active tree are removed up to (not including) the key root.
func (v *Vault) Archive(h model.KeyHandle, overwrite bool) (model.ArchiveEntry, error) {
	rel, err := v.relative(v.Keys.Root, h.Path)
	if err != nil {
		return model.ArchiveEntry{}, err
	}
	archiveRoot := v.Keys.ArchiveRoot()
	dst := filepath.Join(archiveRoot, rel)

	moves := companionMoves(h.Path, dst)
	if !overwrite {
		if err := ensureAbsent(moves); err != nil {
			return model.ArchiveEntry{}, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return model.ArchiveEntry{}, fmt.Errorf("create archive directory: %w", err)
	}

	if err := v.applyMoves(moves, overwrite); err != nil {
		pruneEmptyDirs(filepath.Dir(dst), archiveRoot)
		return model.ArchiveEntry{}, err
	}
	if overwrite {
		dropStaleCompanions(moves)
	}
	pruneEmptyDirs(filepath.Dir(h.Path), v.Keys.Root)

	archived, err := v.Keys.ArchiveStore().Handle(dst)
	if err != nil {
		return model.ArchiveEntry{}, err
	}
	archived.Archived = true
	logging.Debugf("vault: archived %s to %s", h.Path, dst)
	return model.ArchiveEntry{Key: archived, OriginalPath: h.Path, ArchivedAt: clock.Or(v.Clock).Now()}, nil
}

// Unarchive restores the archived key name to its original relative path.
// Without force an existing destination fails with ErrAlreadyExists before
// any file is touched; with force the destination is overwritten. Empty
// directories left in the archive are removed afterwards.
func (v *Vault) Unarchive(name string, force bool) (model.KeyHandle, error) {
	archive := v.Keys.ArchiveStore()
	h, err := archive.Resolve(name)
	if err != nil {
		return model.KeyHandle{}, err
	}
	rel, err := v.relative(archive.Root, h.Path)
	if err != nil {
		return model.KeyHandle{}, err
	}
	dst := filepath.Join(v.Keys.Root, rel)
	if !force {
		if _, err := os.Lstat(dst); err == nil {
			return model.KeyHandle{}, fmt.Errorf("%w: %s", model.ErrAlreadyExists, dst)
		}
	}

	moves := companionMoves(h.Path, dst)
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return model.KeyHandle{}, fmt.Errorf("create key directory: %w", err)
	}
	if err := v.applyMoves(moves, force); err != nil {
		pruneEmptyDirs(filepath.Dir(dst), v.Keys.Root)
		return model.KeyHandle{}, err
	}
	if force {
		dropStaleCompanions(moves)
	}
	pruneEmptyDirs(filepath.Dir(h.Path), archive.Root)

	logging.Debugf("vault: restored %s to %s", h.Path, dst)
	return v.Keys.Handle(dst)
}

// applyMoves performs moves in order. The private key moves first; when a
// later companion fails, moves already done are reverted so the key and its
// companions stay together.
func (v *Vault) applyMoves(moves []move, overwrite bool) error {
	for i, m := range moves {
		if err := MoveFile(m.src, m.dst, overwrite); err != nil {
			for j := i - 1; j >= 0; j-- {
				if rbErr := MoveFile(moves[j].dst, moves[j].src, false); rbErr != nil {
					logging.Errorf("vault: could not move %s back to %s: %v", moves[j].dst, moves[j].src, rbErr)
				}
			}
			return fmt.Errorf("move %s: %w", m.src, err)
		}
	}
	return nil
}

func (v *Vault) relative(root, p string) (string, error) {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s is not below %s", model.ErrInvalidInput, p, root)
	}
	return rel, nil
}

var companionSuffixes = []string{model.PublicSuffix, model.MetaSuffix}

// companionMoves lists the private key followed by existing companions.
func companionMoves(src, dst string) []move {
	moves := []move{{src, dst}}
	for _, suffix := range companionSuffixes {
		if _, err := os.Stat(src + suffix); err == nil {
			moves = append(moves, move{src + suffix, dst + suffix})
		}
	}
	return moves
}

// dropStaleCompanions removes companions at the destination that the moved
// key did not bring along. An overwritten key must not keep the .pub or
// .meta of the key it replaced.
func dropStaleCompanions(moves []move) {
	moved := make(map[string]bool, len(moves))
	for _, m := range moves {
		moved[m.dst] = true
	}
	for _, suffix := range companionSuffixes {
		p := moves[0].dst + suffix
		if moved[p] {
			continue
		}
		switch err := os.Remove(p); {
		case err == nil:
			logging.Debugf("vault: removed stale companion %s", p)
		case !errors.Is(err, fs.ErrNotExist):
			logging.Warnf("vault: could not remove stale companion %s: %v", p, err)
		}
	}
}

func ensureAbsent(moves []move) error {
	for _, m := range moves {
		if _, err := os.Lstat(m.dst); err == nil {
			return fmt.Errorf("%w: %s", model.ErrAlreadyExists, m.dst)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// pruneEmptyDirs removes dir and its parents while they are empty, stopping
// at (and never removing) stop.
func pruneEmptyDirs(dir, stop string) {
	stop = filepath.Clean(stop)
	for dir = filepath.Clean(dir); dir != stop; dir = filepath.Dir(dir) {
		rel, err := filepath.Rel(stop, dir)
		if err != nil || strings.HasPrefix(rel, "..") || rel == "." {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		logging.Debugf("vault: removed empty directory %s", dir)
	}
}
