// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package profile

import (
	"context"
	"strings"

	"github.com/toeirei/keyrot/internal/keypath"
	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/util/slicest"
)

// FindProfilesUsingKey returns the profiles whose key field resolves to
// keyPath, using the same matching rules as the SSH config synchroniser.
func FindProfilesUsingKey(profiles []model.ConnectionProfile, keyPath string, r keypath.Resolver) []model.ConnectionProfile {
	return slicest.Filter(profiles, func(p model.ConnectionProfile) bool {
		return strings.TrimSpace(p.SSHKey) != "" && r.Same(p.SSHKey, keyPath)
	})
}

// ReplaceKeyPath returns a copy of profiles where every profile in matched
// points at newKeyPath, plus the number of replaced records. The input is
// not modified.
func ReplaceKeyPath(profiles, matched []model.ConnectionProfile, newKeyPath string, r keypath.Resolver) ([]model.ConnectionProfile, int) {
	aliases := slicest.ToSet(matched, func(p model.ConnectionProfile) string { return p.Alias })
	updated := slicest.Map(profiles, func(p model.ConnectionProfile) model.ConnectionProfile {
		if _, ok := aliases[p.Alias]; ok {
			p.SSHKey = formatKeyRef(p.SSHKey, newKeyPath, r)
		}
		return p
	})
	n := slicest.Count(profiles, func(p model.ConnectionProfile) bool {
		_, ok := aliases[p.Alias]
		return ok
	})
	return updated, n
}

// formatKeyRef keeps the "~/" style of the previous value when possible.
func formatKeyRef(old, newKeyPath string, r keypath.Resolver) string {
	if strings.HasPrefix(strings.TrimSpace(old), "~") {
		return r.Contract(newKeyPath)
	}
	return newKeyPath
}

// Syncer finds and updates profiles referencing a key in a backing store.
type Syncer struct {
	Store    Store
	Resolver keypath.Resolver
}

// NewSyncer binds a store and resolver.
func NewSyncer(store Store, r keypath.Resolver) *Syncer {
	return &Syncer{Store: store, Resolver: r}
}

// FindProfilesUsingKey loads the store and returns the matching profiles.
func (s *Syncer) FindProfilesUsingKey(ctx context.Context, keyPath string) ([]model.ConnectionProfile, error) {
	profiles, err := s.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return FindProfilesUsingKey(profiles, keyPath, s.Resolver), nil
}

// UpdateKeyPath points every matched profile at newKeyPath and rewrites the
// store once. It returns the number of updated profiles.
func (s *Syncer) UpdateKeyPath(ctx context.Context, matched []model.ConnectionProfile, newKeyPath string) (int, error) {
	if len(matched) == 0 {
		return 0, nil
	}
	profiles, err := s.Store.Load(ctx)
	if err != nil {
		return 0, err
	}
	updated, n := ReplaceKeyPath(profiles, matched, newKeyPath, s.Resolver)
	if n == 0 {
		return 0, nil
	}
	if err := s.Store.Save(ctx, updated); err != nil {
		return 0, err
	}
	return n, nil
}
