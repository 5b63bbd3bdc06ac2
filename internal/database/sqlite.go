// Package database provides SQLite persistence for registered keys and
// sealed secrets.
package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	// an in-memory database lives and dies with its connection
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init database schema: couldn't enable foreign keys: %v", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init database: %v", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	if err := initTable(db, "key", `
		CREATE TABLE IF NOT EXISTS key (
			id          INTEGER PRIMARY KEY,
			profile     TEXT NOT NULL,
			label       TEXT NOT NULL,
			hash        BLOB NOT NULL,
			created     INTEGER NOT NULL,
			UNIQUE (profile, label)
		);`,
	); err != nil {
		return err
	}

	if err := initTable(db, "secret", `
		CREATE TABLE IF NOT EXISTS secret (
			id          INTEGER PRIMARY KEY,
			owner       TEXT NOT NULL,
			name        TEXT NOT NULL,
			sealed      BLOB NOT NULL,
			updated     INTEGER NOT NULL,
			UNIQUE (owner, name)
		);`,
	); err != nil {
		return err
	}

	return nil
}

func initTable(
	db *sql.DB,
	name string,
	sql string,
) error {
	if _, err := db.Exec(sql); err != nil {
		return fmt.Errorf("failed to init '%s' table schema: %v", name, err)
	}
	return nil
}

func resultsEmpty(result sql.Result) bool {
	count, err := result.RowsAffected()
	if err != nil {
		return false
	}
	return count == 0
}
