// Package storage mirrors the current dataset into SQLite so it can be
// explored with ad-hoc SQL. The in-memory dataset stays authoritative; the
// mirror only ever holds the most recently loaded one.
package storage

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// DB is the match mirror. The session writes each accepted dataset through
// ReplaceMatches; the sql and shell commands read it back.
type DB struct {
	conn *sql.DB
}

// Open prepares the mirror at path, creating the datasets and matches tables
// when missing. ":memory:" (the db-path default) keeps the mirror for the
// process lifetime only.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// every connection to :memory: is a separate database
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
