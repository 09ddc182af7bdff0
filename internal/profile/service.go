// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/util/slicest"
)

// Service offers create/read/delete operations on a profile store.
type Service struct {
	Store Store
}

// List returns all profiles in store order.
func (s *Service) List(ctx context.Context) ([]model.ConnectionProfile, error) {
	return s.Store.Load(ctx)
}

// Get returns the profile with the given alias.
func (s *Service) Get(ctx context.Context, alias string) (model.ConnectionProfile, error) {
	profiles, err := s.Store.Load(ctx)
	if err != nil {
		return model.ConnectionProfile{}, err
	}
	for _, p := range profiles {
		if p.Alias == alias {
			return p, nil
		}
	}
	return model.ConnectionProfile{}, fmt.Errorf("%w: profile %q", model.ErrNotFound, alias)
}

// Add appends a profile. Aliases are unique and case-sensitive.
func (s *Service) Add(ctx context.Context, p model.ConnectionProfile) (model.ConnectionProfile, error) {
	p.Alias = strings.TrimSpace(p.Alias)
	p.Hostname = strings.TrimSpace(p.Hostname)
	p.Username = strings.TrimSpace(p.Username)
	if err := Validate(p); err != nil {
		return model.ConnectionProfile{}, err
	}
	if p.Port == 0 {
		p.Port = model.DefaultSSHPort
	}
	profiles, err := s.Store.Load(ctx)
	if err != nil {
		return model.ConnectionProfile{}, err
	}
	if slicest.Count(profiles, func(e model.ConnectionProfile) bool { return e.Alias == p.Alias }) > 0 {
		return model.ConnectionProfile{}, fmt.Errorf("%w: profile %q", model.ErrAlreadyExists, p.Alias)
	}
	next := append(append(make([]model.ConnectionProfile, 0, len(profiles)+1), profiles...), p)
	if err := s.Store.Save(ctx, next); err != nil {
		return model.ConnectionProfile{}, err
	}
	return p, nil
}

// Remove deletes the profile with the given alias.
func (s *Service) Remove(ctx context.Context, alias string) error {
	profiles, err := s.Store.Load(ctx)
	if err != nil {
		return err
	}
	rest := slicest.Reject(profiles, func(p model.ConnectionProfile) bool { return p.Alias == alias })
	if len(rest) == len(profiles) {
		return fmt.Errorf("%w: profile %q", model.ErrNotFound, alias)
	}
	return s.Store.Save(ctx, rest)
}

// Validate checks the fields a profile must carry.
func Validate(p model.ConnectionProfile) error {
	switch {
	case p.Alias == "":
		return fmt.Errorf("%w: profile alias is empty", model.ErrInvalidInput)
	case strings.ContainsAny(p.Alias, " \t\r\n"):
		return fmt.Errorf("%w: profile alias %q contains whitespace", model.ErrInvalidInput, p.Alias)
	case p.Hostname == "":
		return fmt.Errorf("%w: profile %q has no hostname", model.ErrInvalidInput, p.Alias)
	case p.Port < 0 || p.Port > 65535:
		return fmt.Errorf("%w: profile %q port %d out of range", model.ErrInvalidInput, p.Alias, p.Port)
	}
	return nil
}
