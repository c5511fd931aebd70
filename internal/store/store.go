// Package store provides the relational bookkeeping for documents, segments,
// and workspace membership on SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// Processing status values shared by documents and segments.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset_id    INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	original_name TEXT NOT NULL,
	file_hash     TEXT NOT NULL,
	version       INTEGER NOT NULL DEFAULT 1,
	mime_type     TEXT NOT NULL,
	size          INTEGER NOT NULL,
	file_path     TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	error         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_documents_hash_name ON documents(file_hash, original_name);

CREATE TABLE IF NOT EXISTS document_segments (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	content     TEXT NOT NULL,
	position    INTEGER NOT NULL,
	word_count  INTEGER NOT NULL,
	tokens      INTEGER NOT NULL,
	page_number INTEGER,
	bbox_x      REAL,
	bbox_y      REAL,
	bbox_width  REAL,
	bbox_height REAL,
	vector_key  TEXT NOT NULL UNIQUE,
	status      TEXT NOT NULL DEFAULT 'pending',
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_segments_document ON document_segments(document_id);

CREATE TABLE IF NOT EXISTS workspaces (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS document_workspaces (
	document_id  INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	workspace_id INTEGER NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	PRIMARY KEY (document_id, workspace_id)
);
`

// Store is the SQLite-backed metadata store.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at dbPath, applying WAL mode and the
// schema. The parent directory is created if missing.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}
