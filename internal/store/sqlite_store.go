// Package store exports predicted relations to SQLite.
// Uses ncruces/go-sqlite3/driver which provides a database/sql interface.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ppiankov/relex/internal/model"
)

// SQLiteStore holds the predicted relations of a corpus
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS relations (
    document TEXT NOT NULL,
    type TEXT NOT NULL,
    arg1 TEXT NOT NULL,
    arg2 TEXT NOT NULL,
    confidence REAL
);

CREATE INDEX IF NOT EXISTS idx_relations_document ON relations(document);
CREATE INDEX IF NOT EXISTS idx_relations_type ON relations(type);
`

// NewSQLiteStore creates an in-memory store
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN opens (or creates) the database at dsn
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to :memory: would see an empty database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SavePredictions replaces the stored relations of every document in the corpus
func (s *SQLiteStore) SavePredictions(ctx context.Context, corpus model.Corpus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO relations (document, type, arg1, arg2, confidence) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insert.Close()

	for _, name := range corpus.Keys() {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO documents (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("failed to save document %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM relations WHERE document = ?`, name); err != nil {
			return fmt.Errorf("failed to clear relations of %s: %w", name, err)
		}
		for _, r := range corpus[name].Relations {
			if _, err := insert.ExecContext(ctx, name, r.Type, r.Arg1, r.Arg2, r.Confidence); err != nil {
				return fmt.Errorf("failed to save relation of %s: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ListDocuments returns every stored document name, sorted
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM documents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListRelations returns the relations of a document in insertion order
func (s *SQLiteStore) ListRelations(ctx context.Context, document string) ([]model.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, arg1, arg2, confidence FROM relations WHERE document = ? ORDER BY rowid`, document)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	var rels []model.Relation
	for rows.Next() {
		var r model.Relation
		var confidence sql.NullFloat64
		if err := rows.Scan(&r.Type, &r.Arg1, &r.Arg2, &confidence); err != nil {
			return nil, err
		}
		r.Confidence = confidence.Float64
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// CountByType returns the number of stored relations per relation type
func (s *SQLiteStore) CountByType(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM relations GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count relations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}
