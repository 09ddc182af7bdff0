// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package prompt provides yes/no confirmation for destructive operations.
// The workflow only sees the Confirmer interface, so it can run headless
// (fixed answer), against a plain line prompt, or with a terminal dialog.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/toeirei/keyrot/internal/i18n"
	"golang.org/x/term"
)

// Confirmer asks a yes/no question.
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// Fixed answers every question the same way.
type Fixed bool

// Confirm implements Confirmer.
func (f Fixed) Confirm(string) (bool, error) { return bool(f), nil }

// Line reads a y/N answer from In after writing the question to Out.
// Anything but "y" or "yes" (or the localised yes) is a no; EOF is a no.
type Line struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// Confirm implements Confirmer.
func (l *Line) Confirm(question string) (bool, error) {
	if l.reader == nil {
		l.reader = bufio.NewReader(l.In)
	}
	_, _ = fmt.Fprintf(l.Out, "%s [y/N]: ", question)
	answer, err := l.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return isYes(answer), nil
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	yes := strings.ToLower(i18n.T("common.yes"))
	return s == "y" || s == "yes" || s == yes || (len(yes) > 0 && s == yes[:1])
}

// New picks the confirmer for the environment: a fixed yes when assumeYes
// is set, the terminal dialog when both in and out are terminals, and the
// line prompt otherwise.
func New(in io.Reader, out io.Writer, assumeYes bool) Confirmer {
	if assumeYes {
		return Fixed(true)
	}
	if isTerminal(in) && isTerminal(out) {
		return &Dialog{In: in, Out: out}
	}
	return &Line{In: in, Out: out}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
