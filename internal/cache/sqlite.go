package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/kiransahoo/ddd-refactor/internal/agent"
	"github.com/kiransahoo/ddd-refactor/internal/logging"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS verdicts (
	key        TEXT PRIMARY KEY,
	unit       TEXT NOT NULL DEFAULT '',
	verdict    TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteCache keeps verdicts in a single-file database. It suits large runs
// where one file per cache entry gets unwieldy.
type SQLiteCache struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLiteCache opens or creates the cache database at path.
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	if path == "" {
		return nil, fmt.Errorf("cache database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// Single writer keeps the driver away from SQLITE_BUSY under the
	// concurrent per-unit workers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	log := logging.Get("cache")
	for _, pragma := range []string{"PRAGMA busy_timeout=5000", "PRAGMA journal_mode=WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			log.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &SQLiteCache{db: db, log: log}, nil
}

// Get looks up the verdict for key. Absence is a silent miss; query or decode
// failures are logged misses.
func (c *SQLiteCache) Get(ctx context.Context, key string) (agent.FileVerdict, bool) {
	var raw string
	err := c.db.QueryRowContext(ctx,
		"SELECT verdict FROM verdicts WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.FileVerdict{}, false
	}
	if err != nil {
		c.log.Warn("cache read failed, treating as miss",
			zap.String("key", key), zap.Error(err))
		return agent.FileVerdict{}, false
	}

	var fv agent.FileVerdict
	if err := json.Unmarshal([]byte(raw), &fv); err != nil {
		c.log.Warn("cache entry corrupt, treating as miss",
			zap.String("key", key), zap.Error(err))
		return agent.FileVerdict{}, false
	}
	return fv, true
}

// Put upserts the verdict under key.
func (c *SQLiteCache) Put(ctx context.Context, key string, verdict agent.FileVerdict) {
	raw, err := json.Marshal(verdict)
	if err != nil {
		c.log.Warn("cache encode failed, skipping store",
			zap.String("key", key), zap.Error(err))
		return
	}
	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO verdicts (key, unit, verdict) VALUES (?, ?, ?)",
		key, verdict.Unit, string(raw))
	if err != nil {
		c.log.Warn("cache write failed, skipping store",
			zap.String("key", key), zap.Error(err))
	}
}

// Purge deletes every cached verdict.
func (c *SQLiteCache) Purge(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM verdicts"); err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
