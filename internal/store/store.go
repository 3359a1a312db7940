package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

var (
	// ErrNotFound reports a mutation against a row that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness violation.
	ErrConflict = errors.New("conflict")
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and brings its schema up to date.
func Open(path string) (*Store, error) {
	return open(path, true)
}

// OpenNoMigrate opens the database at path as is, for inspecting the schema version.
func OpenNoMigrate(path string) (*Store, error) {
	return open(path, false)
}

func open(path string, migrate bool) (*Store, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Pragmas are per connection; a single pooled connection keeps them.
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if migrate {
		if err := runMigrations(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate applies pending migrations.
func (s *Store) Migrate() error {
	return runMigrations(s.db)
}

// MigrationPlan reports applied and pending migrations.
func (s *Store) MigrationPlan() (*MigrationStatus, error) {
	return MigrationPlan(s.db)
}

// sqliteDSN builds a file URI whose pragmas the driver applies to every new connection.
func sqliteDSN(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("db path is required")
	}
	q := url.Values{}
	for _, pragma := range []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"foreign_keys(1)",
		fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS),
	} {
		q.Add("_pragma", pragma)
	}
	u := url.URL{Scheme: "file", Path: path, RawQuery: q.Encode()}
	return u.String(), nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
