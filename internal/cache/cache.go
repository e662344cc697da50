// Package cache persists file verdicts keyed by content hash so re-runs skip
// model calls for unchanged inputs. Backend failures degrade to a miss or a
// skipped store with a warning; they never fail the pipeline.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/kiransahoo/ddd-refactor/internal/agent"
)

// Cache stores file verdicts under content-hash keys.
type Cache interface {
	// Get returns the cached verdict for key. Backend errors surface as a
	// miss.
	Get(ctx context.Context, key string) (agent.FileVerdict, bool)
	// Put stores the verdict under key, replacing any previous entry.
	Put(ctx context.Context, key string, verdict agent.FileVerdict)
	// Purge drops every entry.
	Purge(ctx context.Context) error
	Close() error
}

// HashBytes returns the cache key for exact file bytes. Any byte difference,
// whitespace included, yields a different key.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashString returns the cache key for the string's bytes.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// New selects a cache backend. The sqlite backend keeps its database file
// inside dir.
func New(backend, dir string) (Cache, error) {
	switch backend {
	case "", "dir":
		return NewDirCache(dir)
	case "sqlite":
		return NewSQLiteCache(filepath.Join(dir, "verdicts.db"))
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (valid: dir, sqlite)", backend)
	}
}

// Noop satisfies Cache without storing anything. It backs runs with caching
// disabled.
type Noop struct{}

// NewNoop returns the disabled cache.
func NewNoop() Noop { return Noop{} }

func (Noop) Get(context.Context, string) (agent.FileVerdict, bool) {
	return agent.FileVerdict{}, false
}

func (Noop) Put(context.Context, string, agent.FileVerdict) {}

func (Noop) Purge(context.Context) error { return nil }

func (Noop) Close() error { return nil }
