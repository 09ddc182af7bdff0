// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package rotation replaces an in-use SSH key with a freshly generated one
// and keeps the SSH client configuration and the connection profiles
// pointing at it.
//
// The old key is archived only after the new key has been generated (and,
// when requested, tested). Any failure before that point leaves the
// original key untouched at its original path.
package rotation // import "github.com/toeirei/keyrot/internal/rotation"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/toeirei/keyrot/internal/clock"
	"github.com/toeirei/keyrot/internal/i18n"
	"github.com/toeirei/keyrot/internal/keystore"
	"github.com/toeirei/keyrot/internal/logging"
	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/internal/profile"
	"github.com/toeirei/keyrot/internal/prompt"
	"github.com/toeirei/keyrot/internal/rotationlog"
	"github.com/toeirei/keyrot/internal/sshconfig"
	"github.com/toeirei/keyrot/internal/sshtool"
	"github.com/toeirei/keyrot/internal/vault"
)

// Options are the caller supplied knobs of a rotation.
type Options struct {
	Type              string // Target algorithm; empty keeps the original.
	Comment           string // Target comment; empty keeps the original.
	Bits              int    // Target size for rsa/ecdsa; zero picks a default.
	DryRun            bool
	Yes               bool   // Skip the confirmation prompt.
	SkipTest          bool   // Do not test the current key before rotating.
	IgnoreTestFailure bool   // Proceed when the current key fails its test.
	TestNew           bool   // Test the new key before archiving the old one.
	NoBackup          bool   // Do not back up the SSH config.
	Force             bool   // Overwrite an existing archived copy.
	Upload            string // Comma separated [user@]host[:port] targets.
}

// UploadTargets splits Upload into trimmed, non-empty targets.
func (o Options) UploadTargets() []string {
	var out []string
	for _, t := range strings.Split(o.Upload, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Workflow wires the stores and tools a rotation coordinates.
type Workflow struct {
	Keys       *keystore.Store
	Vault      *vault.Vault
	Config     *sshconfig.Syncer
	ConfigPath string
	Profiles   *profile.Syncer // Optional.
	Tools      sshtool.Toolset
	Confirm    prompt.Confirmer
	Log        *rotationlog.Log
	Out        io.Writer
	Clock      clock.Clock

	// WriteMetadata writes a .meta companion for installed keys.
	WriteMetadata bool

	// OnTransition, when set, observes every state change.
	OnTransition func(key string, from, to State)
}

// run is the state of one key moving through the workflow.
type run struct {
	w     *Workflow
	opts  Options
	rec   *model.RotationRecord
	state State
	plan  plan
}

func (r *run) moveTo(to State) {
	logger := logging.With("key", r.rec.Name, "from", r.state, "to", to)
	if !canMove(r.state, to) {
		// Programming error; keep going but leave a trace.
		logger.Error("rotation: illegal transition")
	}
	if r.w.OnTransition != nil {
		r.w.OnTransition(r.rec.Name, r.state, to)
	}
	logger.Debug("rotation: transition")
	r.state = to
}

// record writes a line to the rotation log and the operator output.
func (r *run) record(status, format string, args ...any) {
	var line string
	if r.opts.DryRun {
		// The log file lives under the key root; a dry run must not touch it.
		line = r.w.log().Line(status, format, args...)
	} else {
		line = r.w.log().Record(status, format, args...)
	}
	r.rec.Log = append(r.rec.Log, line)
	if r.w.Out != nil {
		_, _ = fmt.Fprintf(r.w.Out, "  %s %s\n", statusTag(status), strings.TrimSpace(fmt.Sprintf(format, args...)))
	}
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.rec.Warnings = append(r.rec.Warnings, msg)
	r.record(rotationlog.StatusWarning, "%s", msg)
}

func (r *run) fail(err error) model.RotationRecord {
	r.rec.Outcome = model.OutcomeFailed
	r.rec.Err = err
	r.record(rotationlog.StatusError, "%s: %v", r.rec.Name, err)
	r.moveTo(StateFailed)
	return r.finish()
}

func (r *run) finish() model.RotationRecord {
	r.rec.FinishedAt = r.w.now()
	return *r.rec
}

func (w *Workflow) log() *rotationlog.Log {
	if w.Log == nil {
		w.Log = rotationlog.Discard(w.Clock)
	}
	return w.Log
}

func (w *Workflow) now() time.Time { return clock.Or(w.Clock).Now() }

// Rotate runs one key through the state machine and returns its record.
// The record is never shared with other keys of a batch.
func (w *Workflow) Rotate(ctx context.Context, name string, opts Options) model.RotationRecord {
	rec := &model.RotationRecord{Name: name, StartedAt: w.now()}
	r := &run{w: w, opts: opts, rec: rec, state: StateStart}

	// Resolve
	h, err := w.Keys.Resolve(name)
	if err != nil {
		return r.fail(err)
	}
	rec.Name = h.Name
	r.plan.key = h
	r.moveTo(StateResolved)
	r.record(rotationlog.StatusInfo, "resolved %s to %s", name, h.Path)

	// TypeDetected
	if err := r.detect(); err != nil {
		return r.fail(err)
	}
	r.moveTo(StateTypeDetected)

	// ReferencesDiscovered
	r.discover(ctx)
	r.moveTo(StateReferencesDiscovered)
	if err := r.checkArchiveSlot(); err != nil {
		return r.fail(err)
	}

	if opts.DryRun {
		r.printPlan()
		rec.Outcome = model.OutcomeDryRun
		r.moveTo(StateSimulated)
		return r.finish()
	}

	// TestedOld
	if err := r.testOld(ctx); err != nil {
		return r.fail(err)
	}

	// Confirmed
	ok, err := r.confirm()
	if err != nil {
		return r.fail(err)
	}
	if !ok {
		rec.Outcome = model.OutcomeCancelled
		r.record(rotationlog.StatusInfo, "rotation of %s cancelled by operator", h.Name)
		r.moveTo(StateCancelled)
		return r.finish()
	}
	r.moveTo(StateConfirmed)

	// ConfigBackedUp
	if !opts.NoBackup {
		backup, err := w.Config.Backup(w.ConfigPath, w.Keys.ArchiveRoot())
		if err != nil {
			return r.fail(fmt.Errorf("backup ssh config: %w", err))
		}
		if backup != "" {
			r.record(rotationlog.StatusSuccess, "backed up %s to %s", w.ConfigPath, backup)
		} else {
			r.record(rotationlog.StatusInfo, "no ssh config at %s, nothing to back up", w.ConfigPath)
		}
		r.moveTo(StateConfigBackedUp)
	}

	// NewKeyGenerated
	tmpDir, err := os.MkdirTemp(filepath.Dir(h.Path), keystore.TempDirPrefix+"*")
	if err != nil {
		return r.fail(fmt.Errorf("create temporary key directory: %w", err))
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	tmpKey := filepath.Join(tmpDir, filepath.Base(h.Path))
	spec := sshtool.KeySpec{Path: tmpKey, Algorithm: r.plan.targetType, Bits: r.plan.targetBits, Comment: r.plan.targetComment}
	if err := w.Tools.Generator.Generate(ctx, spec); err != nil {
		return r.fail(fmt.Errorf("generate new key: %w", err))
	}
	r.record(rotationlog.StatusSuccess, "generated new %s key in temporary location", r.plan.describeTarget())
	r.moveTo(StateNewKeyGenerated)

	// TestedNew
	if opts.TestNew {
		if err := r.testNew(ctx, tmpKey); err != nil {
			return r.fail(err)
		}
	}

	// OldArchived
	entry, err := w.Vault.Archive(h, opts.Force)
	if err != nil {
		return r.fail(fmt.Errorf("archive old key: %w", err))
	}
	r.plan.archived = entry.Key.Path
	r.record(rotationlog.StatusSuccess, "archived old key to %s", entry.Key.Path)
	r.moveTo(StateOldArchived)

	// NewInstalled
	if err := r.install(tmpKey, entry); err != nil {
		return r.fail(err)
	}
	r.moveTo(StateNewInstalled)

	// ReferencesUpdated
	r.updateReferences(ctx)
	r.moveTo(StateReferencesUpdated)

	// Uploaded
	if targets := opts.UploadTargets(); len(targets) > 0 {
		r.upload(ctx, targets)
		r.moveTo(StateUploaded)
	}

	rec.Outcome = model.OutcomeSuccess
	if len(rec.Warnings) > 0 {
		rec.Err = fmt.Errorf("%w: %d warning(s)", model.ErrPartialSuccess, len(rec.Warnings))
		r.record(rotationlog.StatusWarning, "rotated %s with %d warning(s)", h.Name, len(rec.Warnings))
	} else {
		r.record(rotationlog.StatusSuccess, "rotated %s", h.Name)
	}
	r.moveTo(StateSucceeded)
	return r.finish()
}

func (r *run) confirm() (bool, error) {
	if r.opts.Yes {
		return true, nil
	}
	if r.w.Confirm == nil {
		return false, errors.New("no confirmation available; pass --yes to rotate non-interactively")
	}
	q := i18n.T("rotate.confirm", r.plan.key.Name, r.plan.describeTarget(), len(r.plan.hosts), len(r.plan.profiles))
	return r.w.Confirm.Confirm(q)
}
