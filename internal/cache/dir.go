package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kiransahoo/ddd-refactor/internal/agent"
	"github.com/kiransahoo/ddd-refactor/internal/logging"
)

// DirCache keeps one pretty-printed JSON file per verdict under a root
// directory, named <hash>.json. Entries double as a human-readable audit of
// what the model decided per file.
type DirCache struct {
	root string
	log  *zap.Logger
}

// NewDirCache creates the root directory if needed.
func NewDirCache(root string) (*DirCache, error) {
	if root == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &DirCache{root: root, log: logging.Get("cache")}, nil
}

func (c *DirCache) entryPath(key string) string {
	return filepath.Join(c.root, key+".json")
}

// Get reads and decodes the entry for key. A missing file is a silent miss;
// any other failure is a logged miss.
func (c *DirCache) Get(_ context.Context, key string) (agent.FileVerdict, bool) {
	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("cache read failed, treating as miss",
				zap.String("key", key), zap.Error(err))
		}
		return agent.FileVerdict{}, false
	}

	var fv agent.FileVerdict
	if err := json.Unmarshal(data, &fv); err != nil {
		c.log.Warn("cache entry corrupt, treating as miss",
			zap.String("key", key), zap.Error(err))
		return agent.FileVerdict{}, false
	}
	return fv, true
}

// Put writes the verdict under key, overwriting any previous entry.
func (c *DirCache) Put(_ context.Context, key string, verdict agent.FileVerdict) {
	data, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		c.log.Warn("cache encode failed, skipping store",
			zap.String("key", key), zap.Error(err))
		return
	}
	if err := os.WriteFile(c.entryPath(key), data, 0o644); err != nil {
		c.log.Warn("cache write failed, skipping store",
			zap.String("key", key), zap.Error(err))
	}
}

// Purge removes every .json entry under the root.
func (c *DirCache) Purge(context.Context) error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(c.root, e.Name())); err != nil {
			return fmt.Errorf("failed to remove cache entry: %w", err)
		}
	}
	return nil
}

func (c *DirCache) Close() error { return nil }
