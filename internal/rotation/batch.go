// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package rotation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/keyrot/internal/i18n"
	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/internal/rotationlog"
)

// ErrRotationFailed is returned by a batch in which at least one key failed.
var ErrRotationFailed = errors.New("rotation failed")

// Summary aggregates the records of a batch.
type Summary struct {
	Records []model.RotationRecord
}

// Count returns the number of records with outcome o.
func (s Summary) Count(o model.Outcome) int {
	n := 0
	for _, r := range s.Records {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Partial returns the number of successful records carrying warnings.
func (s Summary) Partial() int {
	n := 0
	for i := range s.Records {
		if s.Records[i].Partial() {
			n++
		}
	}
	return n
}

// String renders "Rotation summary: N successful, M failed" followed by the
// cancelled, simulated and warning counts when they are non-zero.
func (s Summary) String() string {
	var b strings.Builder
	b.WriteString(i18n.T("rotate.summary", s.Count(model.OutcomeSuccess), s.Count(model.OutcomeFailed)))
	if n := s.Count(model.OutcomeCancelled); n > 0 {
		b.WriteString(i18n.T("rotate.summary_cancelled", n))
	}
	if n := s.Count(model.OutcomeDryRun); n > 0 {
		b.WriteString(i18n.T("rotate.summary_simulated", n))
	}
	if n := s.Partial(); n > 0 {
		b.WriteString(i18n.T("rotate.summary_warnings", n))
	}
	return b.String()
}

// Err is non-nil when any key failed.
func (s Summary) Err() error {
	var failed []string
	for _, r := range s.Records {
		if r.Outcome == model.OutcomeFailed {
			failed = append(failed, r.Name)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRotationFailed, strings.Join(failed, ", "))
}

// RunBatch rotates each name in turn. A failing key never stops the keys
// after it.
func (w *Workflow) RunBatch(ctx context.Context, names []string, opts Options) Summary {
	var s Summary
	for _, name := range names {
		if w.Out != nil {
			_, _ = fmt.Fprintln(w.Out, headerStyle.Render(i18n.T("rotate.key_header", name)))
		}
		rec := w.Rotate(ctx, name, opts)
		s.Records = append(s.Records, rec)
	}
	if !opts.DryRun {
		w.log().Record(rotationlog.StatusInfo, "%s", s.String())
	}
	return s
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func statusTag(status string) string {
	tag := "[" + status + "]"
	switch status {
	case rotationlog.StatusSuccess:
		return successStyle.Render(tag)
	case rotationlog.StatusWarning:
		return warningStyle.Render(tag)
	case rotationlog.StatusError:
		return errorStyle.Render(tag)
	default:
		return subtleStyle.Render(tag)
	}
}
