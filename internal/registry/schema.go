// Package registry persists the slip-box entity graph (documents, labels,
// citations, links, tags) in SQLite.
package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/slipbox/internal/apperr"
)

// Times are stored as unix nanoseconds so mtimes round-trip exactly.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	filename     TEXT NOT NULL UNIQUE,
	reference    TEXT NOT NULL UNIQUE,
	created_at   INTEGER,
	last_edit_at INTEGER
);

CREATE TABLE IF NOT EXISTS builds (
	document_id INTEGER NOT NULL REFERENCES documents(id),
	format      TEXT NOT NULL,
	built_at    INTEGER NOT NULL,
	UNIQUE(document_id, format)
);

CREATE TABLE IF NOT EXISTS labels (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id),
	value       TEXT NOT NULL,
	UNIQUE(document_id, value)
);

CREATE TABLE IF NOT EXISTS citations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id),
	key         TEXT NOT NULL,
	UNIQUE(document_id, key)
);

CREATE TABLE IF NOT EXISTS links (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id INTEGER NOT NULL REFERENCES documents(id),
	label_id  INTEGER NOT NULL REFERENCES labels(id),
	UNIQUE(source_id, label_id)
);

CREATE TABLE IF NOT EXISTS tags (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS document_tags (
	document_id INTEGER NOT NULL REFERENCES documents(id),
	tag_id      INTEGER NOT NULL REFERENCES tags(id),
	UNIQUE(document_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_labels_document ON labels(document_id);
CREATE INDEX IF NOT EXISTS idx_citations_document ON citations(document_id);
CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_id);
CREATE INDEX IF NOT EXISTS idx_links_label ON links(label_id);
`

// DB wraps a sql.DB with registry operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("registry: open db: %w", err)
	}
	// A single connection keeps every statement on one SQLite handle.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registry: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registry: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// classify maps driver errors onto apperr sentinels.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("registry: %s: %w", op, apperr.ErrNotFound)
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		if se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("registry: %s: %w: %v", op, apperr.ErrConflict, err)
		}
	}
	return fmt.Errorf("registry: %s: %w", op, err)
}

func toNanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(0, n.Int64)
}
