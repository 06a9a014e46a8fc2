// Package pkgstore persists the system package list in sqlite.
package pkgstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS packages (
	name        TEXT PRIMARY KEY,
	uid         INTEGER NOT NULL,
	debuggable  INTEGER NOT NULL DEFAULT 0,
	data_dir    TEXT NOT NULL DEFAULT '',
	seinfo      TEXT NOT NULL DEFAULT ''
);
`

// Store is a sqlite-backed snapshot of the system package list.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the package database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open package db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init package db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Replace atomically swaps the stored package list for entries.
func (s *Store) Replace(entries []Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM packages`); err != nil {
		return fmt.Errorf("clear packages: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO packages (name, uid, debuggable, data_dir, seinfo) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Name, e.UID, e.Debuggable, e.DataDir, e.SEInfo); err != nil {
			return fmt.Errorf("insert %s: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

// Get returns the entry for a package name.
func (s *Store) Get(name string) (Entry, bool, error) {
	var e Entry
	err := s.db.QueryRow(
		`SELECT name, uid, debuggable, data_dir, seinfo FROM packages WHERE name = ?`, name,
	).Scan(&e.Name, &e.UID, &e.Debuggable, &e.DataDir, &e.SEInfo)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Count returns the number of stored packages.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM packages`).Scan(&n)
	return n, err
}
