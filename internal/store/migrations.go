package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version" yaml:"current_version"`
	AvailableVersion int             `json:"available_version" yaml:"available_version"`
	Pending          []MigrationInfo `json:"pending" yaml:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: users and meals",
		SQL: `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user',
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meals (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  category TEXT,
  meal_date TEXT NOT NULL,
  location TEXT,
  rating REAL,
  rating_notes TEXT,
  remarks TEXT,
  image TEXT,
  visibility TEXT NOT NULL DEFAULT 'private',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_meals_user_date ON meals(user_id, meal_date DESC);
CREATE INDEX IF NOT EXISTS idx_meals_visibility_date ON meals(visibility, meal_date DESC);
`,
	},
	{
		Version:     2,
		Description: "one meal per stored image",
		SQL: `
CREATE UNIQUE INDEX IF NOT EXISTS idx_meals_image ON meals(image) WHERE image IS NOT NULL;
`,
	},
	{
		Version:     3,
		Description: "upload ledger and user email",
		SQL: `
CREATE TABLE IF NOT EXISTS uploads (
  path TEXT PRIMARY KEY,
  uploader_id INTEGER,
  created_at TEXT NOT NULL,
  FOREIGN KEY (uploader_id) REFERENCES users(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_uploads_uploader ON uploads(uploader_id);

ALTER TABLE users ADD COLUMN email TEXT;
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email IS NOT NULL;
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

// currentVersion creates the bookkeeping table when needed and returns the
// highest applied version, 0 for a fresh database.
func currentVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(migrationsTableSQL); err != nil {
		return 0, fmt.Errorf("create migrations table: %w", err)
	}
	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// pendingAfter returns the migrations newer than version, oldest first.
func pendingAfter(version int) []Migration {
	var pending []Migration
	for _, m := range migrations {
		if m.Version > version {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })
	return pending
}

func runMigrations(db *sql.DB) error {
	current, err := currentVersion(db)
	if err != nil {
		return err
	}
	for _, m := range pendingAfter(current) {
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

// applyMigration runs one step and records it in the same transaction.
func applyMigration(db *sql.DB, m Migration) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err = tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, formatTime(time.Now())); err != nil {
		return err
	}
	return tx.Commit()
}

// MigrationPlan reports the schema version without applying anything.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	current, err := currentVersion(db)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{CurrentVersion: current, Pending: []MigrationInfo{}}
	for _, m := range migrations {
		if m.Version > status.AvailableVersion {
			status.AvailableVersion = m.Version
		}
	}
	for _, m := range pendingAfter(current) {
		status.Pending = append(status.Pending, MigrationInfo{Version: m.Version, Description: m.Description})
	}
	return status, nil
}
