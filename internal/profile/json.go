// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/toeirei/keyrot/internal/model"
)

// JSONStore keeps profiles as a JSON array of records in a single file.
type JSONStore struct {
	Path string
}

// NewJSONStore returns a store backed by the file at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{Path: path}
}

// Load reads the profile file. A missing file is an empty collection.
func (s *JSONStore) Load(_ context.Context) ([]model.ConnectionProfile, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.ConnectionProfile{}, nil
		}
		return nil, fmt.Errorf("%w: read profiles %s: %v", model.ErrConfigIO, s.Path, err)
	}
	var profiles []model.ConnectionProfile
	if len(data) == 0 {
		return []model.ConnectionProfile{}, nil
	}
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("%w: parse profiles %s: %v", model.ErrConfigIO, s.Path, err)
	}
	if profiles == nil {
		profiles = []model.ConnectionProfile{}
	}
	return profiles, nil
}

// Save rewrites the whole file through a temporary file and rename.
func (s *JSONStore) Save(_ context.Context, profiles []model.ConnectionProfile) error {
	if profiles == nil {
		profiles = []model.ConnectionProfile{}
	}
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode profiles: %v", model.ErrConfigIO, err)
	}
	data = append(data, '\n')
	if err := writeFileAtomic(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("%w: write profiles %s: %v", model.ErrConfigIO, s.Path, err)
	}
	return nil
}

// Close is a no-op for file stores.
func (s *JSONStore) Close() error { return nil }

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	tmp, err := os.CreateTemp(dir, ".profiles-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
