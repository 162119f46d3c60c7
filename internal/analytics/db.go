// Package analytics maintains a derived, rebuildable SQLite cache
// over the authoritative manifests on disk, backing aggregate
// queries the JSON manifests and index aren't suited to: activity
// histograms, tool-usage counts, and full-text conversation search.
// It is never the source of truth — Rebuild can always reconstruct
// it from the manifests alone.
package analytics

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const schemaFTS = `
CREATE VIRTUAL TABLE IF NOT EXISTS conversation_fts USING fts5(
    content,
    content='conversation_text',
    content_rowid='rowid',
    tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS conversation_ai AFTER INSERT ON conversation_text BEGIN
    INSERT INTO conversation_fts(rowid, content) VALUES (new.rowid, new.content);
END;

CREATE TRIGGER IF NOT EXISTS conversation_ad AFTER DELETE ON conversation_text BEGIN
    INSERT INTO conversation_fts(conversation_fts, rowid, content)
        VALUES('delete', old.rowid, old.content);
END;

CREATE TRIGGER IF NOT EXISTS conversation_au AFTER UPDATE ON conversation_text BEGIN
    INSERT INTO conversation_fts(conversation_fts, rowid, content)
        VALUES('delete', old.rowid, old.content);
    INSERT INTO conversation_fts(rowid, content) VALUES (new.rowid, new.content);
END;
`

// DB wraps a write connection and a read-only pool over the cache
// file, using atomic.Pointer so concurrent API-handler reads can
// proceed while Rebuild swaps the underlying *sql.DB after replacing
// the file on disk.
type DB struct {
	path   string
	writer atomic.Pointer[sql.DB]
	reader atomic.Pointer[sql.DB]
	mu     sync.Mutex
}

func (db *DB) getWriter() *sql.DB { return db.writer.Load() }
func (db *DB) getReader() *sql.DB { return db.reader.Load() }

func makeDSN(path string, readOnly bool) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "ON")
	if readOnly {
		params.Set("mode", "ro")
	} else {
		params.Set("_synchronous", "NORMAL")
	}
	return path + "?" + params.Encode()
}

// Open creates or opens the analytics cache at path, applying the
// schema and attempting to enable FTS5 (non-fatal if unavailable).
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating analytics cache dir: %w", err)
	}
	writer, err := sql.Open("sqlite3", makeDSN(path, false))
	if err != nil {
		return nil, fmt.Errorf("opening analytics writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite3", makeDSN(path, true))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening analytics reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	db := &DB{path: path}
	db.writer.Store(writer)
	db.reader.Store(reader)

	if err := db.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing analytics schema: %w", err)
	}
	return db, nil
}

func (db *DB) init() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	w := db.getWriter()
	if _, err := w.Exec(schemaSQL); err != nil {
		return err
	}
	if _, err := w.Exec(schemaFTS); err != nil {
		if !strings.Contains(err.Error(), "no such module") {
			return fmt.Errorf("initializing fts: %w", err)
		}
	}
	return nil
}

// Close closes both connections.
func (db *DB) Close() error {
	var errs []error
	if err := db.getWriter().Close(); err != nil {
		errs = append(errs, err)
	}
	if err := db.getReader().Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// Update runs fn inside a write transaction.
func (db *DB) Update(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.getWriter().Begin()
	if err != nil {
		return fmt.Errorf("beginning analytics transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Reader returns the read-only connection pool for ad hoc queries.
func (db *DB) Reader() *sql.DB { return db.getReader() }
