// Package vectordb stores embedded reference snippets and retrieves the
// nearest ones by cosine similarity. Four backends share one contract: an
// in-process store, a sqlite-backed store, an embedded chromem store built
// on the same files as the cache, and a remote chroma server.
package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kiransahoo/ddd-refactor/internal/logging"
	"go.uber.org/zap"
)

// Snippet is one embedded reference document.
type Snippet struct {
	ID        string
	Title     string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// Match pairs a snippet with its cosine similarity to the query embedding.
type Match struct {
	Snippet Snippet
	Score   float64
}

// Store is the retrieval contract shared by all backends. Search returns at
// most topK matches ordered by descending score. An empty store returns no
// matches and no error.
type Store interface {
	// Add upserts snippets keyed by ID.
	Add(ctx context.Context, snippets ...Snippet) error
	Search(ctx context.Context, embedding []float32, topK int) ([]Match, error)
	// Get returns the snippet stored under id; the bool reports presence.
	Get(ctx context.Context, id string) (Snippet, bool, error)
	// Delete removes the snippet stored under id. Absent ids are not an
	// error.
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Provider   string
	Path       string
	URL        string
	Collection string
}

// DefaultConfig returns an in-process store configuration.
func DefaultConfig() Config {
	return Config{
		Provider:   "memory",
		Collection: "domain-snippets",
	}
}

// New creates a Store for the configured provider.
func New(cfg Config) (Store, error) {
	switch cfg.Provider {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "chromem":
		return NewChromemStore(cfg.Path, cfg.Collection)
	case "chroma":
		return NewChromaStore(cfg.URL, cfg.Collection)
	default:
		return nil, fmt.Errorf("unsupported vectordb provider: %s", cfg.Provider)
	}
}

// Cosine computes cosine similarity in [-1, 1]. Vectors of different
// dimensions are compared over their shared prefix with a warning, so one
// re-embedded snippet cannot fail a whole scan. A zero vector scores 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		logging.Get("vectordb").Warn("embedding dimension mismatch, comparing shared prefix",
			zap.Int("query_dim", len(a)),
			zap.Int("stored_dim", len(b)))
		if len(a) > len(b) {
			a = a[:len(b)]
		} else {
			b = b[:len(a)]
		}
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rank scores snippets against the query and keeps the topK best. The sort
// is stable over insertion order so equal scores rank oldest first.
func rank(query []float32, snippets []Snippet, topK int) []Match {
	if topK <= 0 || len(snippets) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(snippets))
	for _, s := range snippets {
		matches = append(matches, Match{Snippet: s, Score: Cosine(query, s.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
