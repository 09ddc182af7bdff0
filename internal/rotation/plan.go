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

	cryptossh "github.com/toeirei/keyrot/internal/crypto/ssh"
	"github.com/toeirei/keyrot/internal/i18n"
	"github.com/toeirei/keyrot/internal/keystore"
	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/internal/rotationlog"
	"github.com/toeirei/keyrot/internal/sshkey"
	"github.com/toeirei/keyrot/internal/sshtool"
)

// plan is what one rotation intends to do, filled in while discovering.
type plan struct {
	key           model.KeyHandle
	originalBits  int
	targetType    model.Algorithm
	targetComment string
	targetBits    int
	hosts         []string
	profiles      []model.ConnectionProfile
	archived      string // Archive path of the old key once moved.
}

func (p plan) describeTarget() string {
	if p.targetBits > 0 {
		return fmt.Sprintf("%s %d", p.targetType, p.targetBits)
	}
	return string(p.targetType)
}

// detect fills original and target algorithm, comment and size.
func (r *run) detect() error {
	h := r.plan.key
	rec := r.rec
	rec.OriginalType = h.Algorithm
	if c, ok := keystore.ExtractComment(h.PublicPath()); ok {
		rec.OriginalComment = c
	}
	if line, err := keystore.ReadPublicKey(h.PublicPath()); err == nil {
		if bits, err := sshkey.BitSize(line); err == nil {
			r.plan.originalBits = bits
		}
	}

	target := h.Algorithm
	if r.opts.Type != "" {
		t, err := model.ParseAlgorithm(r.opts.Type)
		if err != nil {
			return err
		}
		target = t
	} else if _, err := model.ParseAlgorithm(string(h.Algorithm)); err != nil {
		return fmt.Errorf("%w: cannot keep algorithm %q of %s; choose a new one with --type", model.ErrInvalidInput, h.Algorithm, h.Name)
	}

	bits := r.opts.Bits
	if bits == 0 && target == h.Algorithm && r.plan.originalBits > 0 {
		if _, err := cryptossh.ValidateBits(target, r.plan.originalBits); err == nil {
			bits = r.plan.originalBits
		} else {
			r.warn("original %s size %d is no longer accepted, using the default", target, r.plan.originalBits)
		}
	}
	bits, err := cryptossh.ValidateBits(target, bits)
	if err != nil {
		return err
	}

	comment := rec.OriginalComment
	if r.opts.Comment != "" {
		comment = r.opts.Comment
	}

	r.plan.targetType, r.plan.targetBits, r.plan.targetComment = target, bits, comment
	rec.TargetType, rec.TargetBits, rec.TargetComment = target, bits, comment
	r.record(rotationlog.StatusInfo, "detected %s key (comment %q), target %s", h.Algorithm, rec.OriginalComment, r.plan.describeTarget())
	if h.Encrypted {
		r.warn("%s is passphrase protected; the new key will not be", h.Name)
	}
	return nil
}

// discover looks up dependents. Lookup failures only produce warnings.
func (r *run) discover(ctx context.Context) {
	w := r.w
	hosts, err := w.Config.FindHostsUsingKey(w.ConfigPath, r.plan.key.Path)
	if err != nil {
		r.warn("could not scan ssh config %s: %v", w.ConfigPath, err)
	}
	r.plan.hosts = hosts
	r.rec.AffectedHosts = hosts

	if w.Profiles != nil {
		profiles, err := w.Profiles.FindProfilesUsingKey(ctx, r.plan.key.Path)
		if err != nil {
			r.warn("could not scan connection profiles: %v", err)
		}
		r.plan.profiles = profiles
		for _, p := range profiles {
			r.rec.AffectedAliases = append(r.rec.AffectedAliases, p.Alias)
		}
	}
	r.record(rotationlog.StatusInfo, "%s is referenced by %d host(s) [%s] and %d profile(s) [%s]",
		r.plan.key.Name, len(r.rec.AffectedHosts), strings.Join(r.rec.AffectedHosts, ", "),
		len(r.rec.AffectedAliases), strings.Join(r.rec.AffectedAliases, ", "))
}

// checkArchiveSlot fails early when an archived copy would be overwritten.
func (r *run) checkArchiveSlot() error {
	if r.opts.Force {
		return nil
	}
	dst := r.archivePath()
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: %s is already archived at %s (use --force to replace it)", model.ErrAlreadyExists, r.plan.key.Name, dst)
	}
	return nil
}

func (r *run) archivePath() string {
	return filepath.Join(r.w.Keys.ArchiveRoot(), filepath.FromSlash(r.plan.key.Name))
}

// testTarget picks the endpoint used for connection tests: the first
// affected profile, otherwise the first affected config host.
func (r *run) testTarget() (sshtool.Target, bool) {
	if len(r.plan.profiles) > 0 {
		return sshtool.TargetFromProfile(r.plan.profiles[0]), true
	}
	if len(r.plan.hosts) > 0 {
		return sshtool.Target{Host: r.plan.hosts[0]}, true
	}
	return sshtool.Target{}, false
}

func (r *run) testOld(ctx context.Context) error {
	if r.opts.SkipTest {
		return nil
	}
	t, ok := r.testTarget()
	if !ok {
		r.record(rotationlog.StatusInfo, "no referencing host to test %s against", r.plan.key.Name)
		return nil
	}
	if err := r.w.Tools.Tester.Test(ctx, r.plan.key.Path, t); err != nil {
		if !r.opts.IgnoreTestFailure {
			return fmt.Errorf("current key cannot connect to %s: %w", t, err)
		}
		r.warn("current key cannot connect to %s: %v (ignored)", t, err)
	} else {
		r.record(rotationlog.StatusSuccess, "current key connects to %s", t)
	}
	r.moveTo(StateTestedOld)
	return nil
}

func (r *run) testNew(ctx context.Context, tmpKey string) error {
	t, ok := r.testTarget()
	if !ok {
		r.record(rotationlog.StatusInfo, "no referencing host to test the new key against")
		return nil
	}
	if err := r.w.Tools.Tester.Test(ctx, tmpKey, t); err != nil {
		return fmt.Errorf("new key cannot connect to %s: %w", t, err)
	}
	r.record(rotationlog.StatusSuccess, "new key connects to %s", t)
	r.moveTo(StateTestedNew)
	return nil
}

// printPlan writes the ordered steps a real run would perform.
func (r *run) printPlan() {
	p := r.plan
	steps := []string{}
	if r.opts.NoBackup {
		steps = append(steps, i18n.T("plan.backup_skipped"))
	} else {
		steps = append(steps, i18n.T("plan.backup", r.w.ConfigPath, filepath.Join(r.w.Keys.ArchiveRoot(), keystore.ConfigBackupDir)))
	}
	steps = append(steps, i18n.T("plan.generate", p.describeTarget(), p.targetComment))
	if r.opts.TestNew {
		steps = append(steps, i18n.T("plan.test_new"))
	}
	steps = append(steps,
		i18n.T("plan.archive", p.key.Path, r.archivePath()),
		i18n.T("plan.install", p.key.Path),
		i18n.T("plan.update_hosts", len(p.hosts), strings.Join(p.hosts, ", ")),
		i18n.T("plan.update_profiles", len(r.rec.AffectedAliases), strings.Join(r.rec.AffectedAliases, ", ")),
	)
	if targets := r.opts.UploadTargets(); len(targets) > 0 {
		steps = append(steps, i18n.T("plan.upload", strings.Join(targets, ", ")))
	}
	r.record(rotationlog.StatusDryRun, "%s", i18n.T("plan.header", p.key.Name))
	if !r.opts.SkipTest || r.opts.TestNew {
		// The exec tester records host keys in known_hosts, so a dry run never connects.
		r.record(rotationlog.StatusDryRun, "%s", i18n.T("plan.tests_not_run"))
	}
	for i, s := range steps {
		r.record(rotationlog.StatusDryRun, "%d. %s", i+1, s)
	}
}
