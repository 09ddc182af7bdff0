// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver, registered as "pgx"
	"github.com/toeirei/keyrot/internal/logging"
	"github.com/toeirei/keyrot/internal/model"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// profileRow maps the `profiles` table.
type profileRow struct {
	bun.BaseModel `bun:"table:profiles"`
	Alias         string `bun:"alias,pk"`
	Hostname      string `bun:"hostname,notnull"`
	Username      string `bun:"username,notnull"`
	Port          int    `bun:"port,notnull"`
	SSHKey        string `bun:"ssh_key,notnull"`
	Seq           int    `bun:"seq,notnull"`
}

// DBStore keeps profiles in a SQL table through bun. Save replaces the
// table contents inside one transaction.
type DBStore struct {
	bun      *bun.DB // nil for a read-only SQLite store whose file does not exist
	dbType   string
	readOnly bool
}

// sqlOpenFunc is swapped in tests.
var sqlOpenFunc = sql.Open

// OpenDBStore opens the database for dbType (sqlite, postgres or mysql) and
// makes sure the profiles table exists.
func OpenDBStore(ctx context.Context, dbType, dsn string) (*DBStore, error) {
	return openDBStore(ctx, dbType, dsn, false)
}

// openDBStore opens the store. A read-only store opens SQLite files with
// mode=ro, never creates the table and treats a missing table as empty.
func openDBStore(ctx context.Context, dbType, dsn string, readOnly bool) (*DBStore, error) {
	if readOnly && dbType == BackendSQLite {
		p, ok := sqliteFile(dsn)
		if ok {
			if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
				logging.Debugf("profile: %s does not exist, read-only store is empty", p)
				return &DBStore{dbType: dbType, readOnly: true}, nil
			}
			dsn = sqliteReadOnlyDSN(p)
		}
	}
	driverName := dbType
	// The pgx stdlib registers driver name "pgx"; map "postgres" to that driver.
	if dbType == BackendPostgres {
		driverName = "pgx"
	}
	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s profile store: %v", model.ErrConfigIO, dbType, err)
	}
	// In-memory SQLite is per connection.
	if dbType == BackendSQLite && dsn == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	s := &DBStore{bun: createBunDB(sqlDB, dbType), dbType: dbType, readOnly: readOnly}
	if readOnly {
		logging.Debugf("profile: opened %s store read-only in %s", dbType, time.Since(start))
		return s, nil
	}
	if _, err := s.bun.NewCreateTable().Model((*profileRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		_ = s.bun.Close()
		return nil, fmt.Errorf("%w: create profiles table: %v", model.ErrConfigIO, err)
	}
	logging.Debugf("profile: opened %s store in %s", dbType, time.Since(start))
	return s, nil
}

// createBunDB picks the bun dialect for dbType.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case BackendPostgres:
		return bun.NewDB(sqlDB, pgdialect.New())
	case BackendMySQL:
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// Load returns the profiles ordered as they were saved.
func (s *DBStore) Load(ctx context.Context) ([]model.ConnectionProfile, error) {
	if s.bun == nil {
		return []model.ConnectionProfile{}, nil
	}
	var rows []profileRow
	if err := s.bun.NewSelect().Model(&rows).Order("seq ASC").Scan(ctx); err != nil && err != sql.ErrNoRows {
		if s.readOnly && isMissingTable(err) {
			return []model.ConnectionProfile{}, nil
		}
		return nil, fmt.Errorf("%w: load profiles: %v", model.ErrConfigIO, err)
	}
	out := make([]model.ConnectionProfile, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ConnectionProfile{
			Alias:    r.Alias,
			Hostname: r.Hostname,
			Username: r.Username,
			Port:     r.Port,
			SSHKey:   r.SSHKey,
		})
	}
	return out, nil
}

// Save deletes and re-inserts every row in a single transaction.
func (s *DBStore) Save(ctx context.Context, profiles []model.ConnectionProfile) error {
	if s.readOnly {
		return fmt.Errorf("%w: profile store is open read-only", model.ErrConfigIO)
	}
	rows := make([]profileRow, 0, len(profiles))
	for i, p := range profiles {
		rows = append(rows, profileRow{
			Alias:    p.Alias,
			Hostname: p.Hostname,
			Username: p.Username,
			Port:     p.Port,
			SSHKey:   p.SSHKey,
			Seq:      i,
		})
	}
	err := s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*profileRow)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clear profiles: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert profiles: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: save profiles: %v", model.ErrConfigIO, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *DBStore) Close() error {
	if s.bun == nil {
		return nil
	}
	return s.bun.Close()
}

// sqliteFile returns the file a SQLite DSN points at. In-memory databases
// report false.
func sqliteFile(dsn string) (string, bool) {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return "", false
	}
	return p, true
}

var sqliteURIEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func sqliteReadOnlyDSN(p string) string {
	return "file:" + sqliteURIEscaper.Replace(p) + "?mode=ro"
}

// isMissingTable matches the "unknown table" errors of the supported
// databases: SQLite, Postgres (42P01) and MySQL (1146).
func isMissingTable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "42p01") ||
		strings.Contains(msg, "doesn't exist")
}
