// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package profile implements the connection-profile store and the
// synchroniser that keeps profile key paths in step with rotated keys.
//
// A store is treated as an immutable snapshot: callers Load the whole
// collection, transform it functionally and Save it back in one write.
package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/toeirei/keyrot/internal/model"
)

// Store persists the ordered profile collection as a whole.
type Store interface {
	// Load returns every profile in store order. A store that has never been
	// written yields an empty collection.
	Load(ctx context.Context) ([]model.ConnectionProfile, error)
	// Save replaces the whole collection. Implementations never leave a
	// partially written collection behind.
	Save(ctx context.Context, profiles []model.ConnectionProfile) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// Open returns the store for the configured backend. The JSON backend uses
// path; the SQL backends use dsn.
func Open(backend, path, dsn string) (Store, error) {
	return open(backend, path, dsn, false)
}

// OpenReadOnly is Open for callers that must not change the store, such as
// dry runs. Nothing is created on disk or in the database, a store that does
// not exist yet loads as empty, and Save fails with ErrConfigIO.
func OpenReadOnly(backend, path, dsn string) (Store, error) {
	return open(backend, path, dsn, true)
}

func open(backend, path, dsn string, readOnly bool) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendJSON:
		if path == "" {
			return nil, fmt.Errorf("%w: profiles.path is empty", model.ErrInvalidInput)
		}
		if readOnly {
			return readOnlyStore{NewJSONStore(path)}, nil
		}
		return NewJSONStore(path), nil
	case BackendSQLite, BackendPostgres, BackendMySQL:
		if dsn == "" {
			return nil, fmt.Errorf("%w: profiles.dsn is required for backend %q", model.ErrInvalidInput, backend)
		}
		dbType := strings.ToLower(strings.TrimSpace(backend))
		if readOnly {
			s, err := openDBStore(context.Background(), dbType, dsn, true)
			if err != nil {
				return nil, err
			}
			return readOnlyStore{s}, nil
		}
		return OpenDBStore(context.Background(), dbType, dsn)
	default:
		return nil, fmt.Errorf("%w: unsupported profile backend %q", model.ErrInvalidInput, backend)
	}
}

// readOnlyStore refuses writes to the wrapped store.
type readOnlyStore struct {
	Store
}

func (readOnlyStore) Save(context.Context, []model.ConnectionProfile) error {
	return fmt.Errorf("%w: profile store is open read-only", model.ErrConfigIO)
}
