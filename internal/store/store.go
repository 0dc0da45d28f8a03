// Package store is the Store Gateway: a bulk-write façade over a
// property-graph store, emulated on top of SQLite (mattn/go-sqlite3, the
// same driver the teacher project's root module depends on). It groups
// vertices/edges into label-grouped batches, never issues per-vertex
// statements in the hot path, and exposes a Cypher-like read query surface
// (internal/cypher) plus schema statistics.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

// Querier abstracts *sql.DB and *sql.Tx so gateway methods work inside or
// outside a transaction, the same seam the teacher project uses.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection serving as the property-graph backend.
type Store struct {
	db *sql.DB
	q  Querier
}

// Open creates or opens a SQLite-backed graph store at path. Passing ":memory:"
// opens an in-memory store (for tests, mirroring the teacher's OpenMemory).
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s := &Store{db: db, q: db}
	if err := s.EnsureSchema(); err != nil {
		db.Close()
		return nil, &SchemaError{Err: err}
	}
	return s, nil
}

// OpenMemory opens an in-memory store, for tests.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for advanced/read-only use (e.g. the
// cypher executor issuing arbitrary SELECTs).
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTransaction runs fn against a transaction-scoped Store. Vertices and
// edges written inside fn are only visible to other readers on commit.
func (s *Store) WithTransaction(fn func(tx *Store) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// BeginBulkWrite relaxes durability for the duration of a large ingest,
// mirroring the teacher's bulk-write pragma toggling around a fresh index.
func (s *Store) BeginBulkWrite() {
	if _, err := s.db.Exec("PRAGMA synchronous=OFF"); err != nil {
		slog.Warn("store.bulk_write.pragma", "err", err)
	}
}

// EndBulkWrite restores normal durability.
func (s *Store) EndBulkWrite() {
	if _, err := s.db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		slog.Warn("store.bulk_write.restore", "err", err)
	}
}
