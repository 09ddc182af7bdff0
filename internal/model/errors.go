// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Callers classify failures with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrAlreadyExists  = errors.New("already exists")
	ErrConflictInUse  = errors.New("key in use")
	ErrExternalTool   = errors.New("external tool failure")
	ErrConfigIO       = errors.New("config i/o failure")
	ErrPartialSuccess = errors.New("partial success")
)

// KeyNotFoundError is returned when a key name cannot be resolved. It carries
// the valid names so the caller can show them to the user.
type KeyNotFoundError struct {
	Name       string
	Candidates []string
}

func (e *KeyNotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("key %q not found", e.Name)
	}
	return fmt.Sprintf("key %q not found (available: %s)", e.Name, strings.Join(e.Candidates, ", "))
}

// Is makes KeyNotFoundError match ErrNotFound.
func (e *KeyNotFoundError) Is(target error) bool { return target == ErrNotFound }
