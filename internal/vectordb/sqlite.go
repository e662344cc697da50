package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kiransahoo/ddd-refactor/internal/logging"
	"go.uber.org/zap"
)

// SQLiteStore persists snippets in a single sqlite file. Embeddings are
// stored as JSON arrays and scanned linearly at query time, which keeps the
// scoring exact and the tie order tied to insertion (rowid) order.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

const snippetSchema = `
CREATE TABLE IF NOT EXISTS snippets (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	embedding TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// NewSQLiteStore opens (or creates) the snippet database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite vectordb requires a path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	log := logging.Get("vectordb")
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}

	if _, err := db.Exec(snippetSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize snippet schema: %w", err)
	}

	return &SQLiteStore{db: db, log: log}, nil
}

// Add upserts snippets keyed by ID.
func (s *SQLiteStore) Add(ctx context.Context, snippets ...Snippet) error {
	for _, sn := range snippets {
		if sn.ID == "" {
			return fmt.Errorf("snippet ID is required")
		}
		embJSON, err := json.Marshal(sn.Embedding)
		if err != nil {
			return fmt.Errorf("failed to serialize embedding: %w", err)
		}
		metaJSON, err := json.Marshal(sn.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize metadata: %w", err)
		}

		_, err = s.db.ExecContext(ctx,
			"INSERT OR REPLACE INTO snippets (id, title, content, metadata, embedding) VALUES (?, ?, ?, ?, ?)",
			sn.ID, sn.Title, sn.Content, string(metaJSON), string(embJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to store snippet %s: %w", sn.ID, err)
		}
	}
	return nil
}

// Search loads every snippet in rowid order and ranks it against the query.
// Rows that fail to scan or decode are skipped, not fatal.
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, content, metadata, embedding FROM snippets ORDER BY rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snippets: %w", err)
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		var sn Snippet
		var metaJSON, embJSON string
		if err := rows.Scan(&sn.ID, &sn.Title, &sn.Content, &metaJSON, &embJSON); err != nil {
			s.log.Warn("skipping unreadable snippet row", zap.Error(err))
			continue
		}
		if err := json.Unmarshal([]byte(embJSON), &sn.Embedding); err != nil {
			s.log.Warn("skipping snippet with corrupt embedding", zap.String("id", sn.ID), zap.Error(err))
			continue
		}
		if metaJSON != "" {
			json.Unmarshal([]byte(metaJSON), &sn.Metadata)
		}
		snippets = append(snippets, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rank(embedding, snippets, topK), nil
}

// Get returns the snippet stored under id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Snippet, bool, error) {
	var sn Snippet
	var metaJSON, embJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, content, metadata, embedding FROM snippets WHERE id = ?", id,
	).Scan(&sn.ID, &sn.Title, &sn.Content, &metaJSON, &embJSON)
	if err == sql.ErrNoRows {
		return Snippet{}, false, nil
	}
	if err != nil {
		return Snippet{}, false, fmt.Errorf("failed to load snippet %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(embJSON), &sn.Embedding); err != nil {
		return Snippet{}, false, fmt.Errorf("snippet %s has a corrupt embedding: %w", id, err)
	}
	if metaJSON != "" {
		json.Unmarshal([]byte(metaJSON), &sn.Metadata)
	}
	return sn, true, nil
}

// Delete removes the snippet stored under id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM snippets WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete snippet %s: %w", id, err)
	}
	return nil
}

// Count reports the number of stored snippets.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snippets").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Reset drops all snippets but keeps the database file.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM snippets")
	return err
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
