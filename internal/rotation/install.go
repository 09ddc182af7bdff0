// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package rotation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/toeirei/keyrot/internal/keystore"
	"github.com/toeirei/keyrot/internal/logging"
	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/internal/rotationlog"
	"github.com/toeirei/keyrot/internal/sshkey"
	"github.com/toeirei/keyrot/internal/sshtool"
	"github.com/toeirei/keyrot/internal/vault"
)

// Installed key permissions.
const (
	PrivateKeyMode os.FileMode = 0o600
	PublicKeyMode  os.FileMode = 0o644
)

// install moves the temporary pair into the original path. If that fails
// the archived old key is restored before returning the error.
func (r *run) install(tmpKey string, entry model.ArchiveEntry) error {
	dst := r.plan.key.Path
	var placed []string
	err := func() error {
		if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
			return err
		}
		for _, m := range [][2]string{{tmpKey, dst}, {tmpKey + model.PublicSuffix, dst + model.PublicSuffix}} {
			if err := vault.MoveFile(m[0], m[1], false); err != nil {
				return err
			}
			placed = append(placed, m[1])
		}
		if err := os.Chmod(dst, PrivateKeyMode); err != nil {
			return err
		}
		return os.Chmod(dst+model.PublicSuffix, PublicKeyMode)
	}()
	if err != nil {
		for _, p := range placed {
			_ = os.Remove(p)
		}
		if _, rerr := r.w.Vault.Unarchive(entry.Key.Name, false); rerr != nil {
			logging.Errorf("rotation: could not restore %s: %v", entry.Key.Path, rerr)
			return fmt.Errorf("install new key: %w (old key remains archived at %s)", err, entry.Key.Path)
		}
		r.record(rotationlog.StatusWarning, "restored old key %s after failed install", dst)
		return fmt.Errorf("install new key: %w", err)
	}
	r.record(rotationlog.StatusSuccess, "installed new key at %s", dst)

	if r.w.WriteMetadata {
		if err := r.writeMetadata(entry); err != nil {
			r.warn("could not write metadata for %s: %v", dst, err)
		}
	}
	return nil
}

func (r *run) writeMetadata(entry model.ArchiveEntry) error {
	dst := r.plan.key.Path
	m := keystore.Metadata{
		CreatedAt:   r.w.now().UTC(),
		Algorithm:   r.plan.targetType,
		Comment:     r.plan.targetComment,
		Bits:        r.plan.targetBits,
		RotatedFrom: entry.Key.Path,
	}
	if line, err := keystore.ReadPublicKey(dst + model.PublicSuffix); err == nil {
		if fp, err := sshkey.Fingerprint(line); err == nil {
			m.Fingerprint = fp
		}
		if m.Bits == 0 {
			m.Bits, _ = sshkey.BitSize(line)
		}
	}
	return keystore.WriteMetadata(dst, m)
}

// updateReferences rewrites config hosts and profiles. Failures are
// reported as warnings; the installed key stays in place.
func (r *run) updateReferences(ctx context.Context) {
	w := r.w
	key := r.plan.key.Path
	if len(r.plan.hosts) > 0 {
		n, err := w.Config.RewriteIdentity(w.ConfigPath, key, key, r.plan.hosts)
		if err != nil {
			r.warn("could not update ssh config for host(s) %s: %v", strings.Join(r.plan.hosts, ", "), err)
		} else {
			r.record(rotationlog.StatusSuccess, "updated %d IdentityFile line(s) for host(s) %s", n, strings.Join(r.plan.hosts, ", "))
		}
	}
	if len(r.plan.profiles) > 0 && w.Profiles != nil {
		n, err := w.Profiles.UpdateKeyPath(ctx, r.plan.profiles, key)
		if err != nil {
			r.warn("could not update profile(s) %s: %v", strings.Join(r.rec.AffectedAliases, ", "), err)
		} else {
			r.record(rotationlog.StatusSuccess, "updated %d profile(s): %s", n, strings.Join(r.rec.AffectedAliases, ", "))
		}
	}
}

// upload distributes the new public key. Each target is independent.
func (r *run) upload(ctx context.Context, targets []string) {
	pub := r.plan.key.PublicPath()
	for _, raw := range targets {
		t, err := sshtool.ParseTarget(raw)
		if err != nil {
			r.warn("skipping upload target %q: %v", raw, err)
			continue
		}
		if err := r.w.Tools.Uploader.Upload(ctx, pub, r.plan.archived, t); err != nil {
			r.warn("upload to %s failed: %v", t, err)
			continue
		}
		r.record(rotationlog.StatusSuccess, "uploaded public key to %s", t)
	}
}
