// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/toeirei/keyrot/internal/model"
)

// renameFunc is swapped by tests to simulate cross-device moves.
var renameFunc = os.Rename

// MoveFile moves src to dst. It renames when possible and falls back to
// copy+delete across filesystems. The destination is verified (existence and
// size) before the source is considered gone; a failed copy never leaves a
// truncated destination behind.
func MoveFile(src, dst string, overwrite bool) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Lstat(dst); err == nil {
			return fmt.Errorf("%w: %s", model.ErrAlreadyExists, dst)
		}
	}

	err = renameFunc(src, dst)
	if err != nil {
		if !errors.Is(err, syscall.EXDEV) {
			return err
		}
		if err := copyFile(src, dst, srcInfo); err != nil {
			return err
		}
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("remove %s after copy: %w", src, err)
		}
	}
	return verify(dst, srcInfo.Size())
}

func copyFile(src, dst string, srcInfo os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".keyrot-move-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		return fail(fmt.Errorf("copy %s: %w", src, err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(srcInfo.Mode().Perm()); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := verify(tmpPath, srcInfo.Size()); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func verify(p string, size int64) error {
	fi, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("verify %s: %w", p, err)
	}
	if fi.Size() != size {
		return fmt.Errorf("verify %s: size %d, expected %d", p, fi.Size(), size)
	}
	return nil
}
