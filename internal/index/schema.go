// Package index provides a SQLite-backed post index with optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		path        TEXT PRIMARY KEY,
		url         TEXT NOT NULL DEFAULT '',
		title       TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		checksum    TEXT NOT NULL DEFAULT '',
		date_ms     INTEGER NOT NULL DEFAULT 0,
		tags        TEXT NOT NULL DEFAULT '[]',
		categories  TEXT NOT NULL DEFAULT '[]',
		body        TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_posts_url ON posts(url);`,

	`CREATE TABLE IF NOT EXISTS post_terms (
		path  TEXT NOT NULL,
		field TEXT NOT NULL,
		label TEXT NOT NULL,
		slug  TEXT NOT NULL,
		UNIQUE(path, field, label)
	);
	CREATE INDEX IF NOT EXISTS idx_post_terms_field_label ON post_terms(field, label);`,
}

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database at dsn and brings its schema up
// to date.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	// The search table is derived data; it is (re)created outside the
	// migration sequence because its shape depends on the build tags.
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: init search: %w", err)
	}
	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	var applied int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&applied); err != nil {
		return fmt.Errorf("index: read schema version: %w", err)
	}
	if applied > len(migrations) {
		return fmt.Errorf("index: schema version %d is newer than this binary (%d)", applied, len(migrations))
	}
	for i := applied; i < len(migrations); i++ {
		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("index: migrate: %w", err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("index: migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("index: migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("index: migration %d: %w", i+1, err)
		}
	}
	return nil
}

// SchemaVersion reports the number of applied migrations.
func (db *DB) SchemaVersion() (int, error) {
	var v int
	err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&v)
	return v, err
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
