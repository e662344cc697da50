// Package rag assembles retrieval context for refactor prompts. A Service
// embeds the code under repair, pulls the nearest domain snippets from the
// vector store, and appends the relevant ones to the base prompt. Retrieval
// is strictly best-effort: when the store or engine is missing or unhealthy
// the service degrades to the plain prompt instead of failing the pipeline.
package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kiransahoo/ddd-refactor/internal/chunker"
	"github.com/kiransahoo/ddd-refactor/internal/embedding"
	"github.com/kiransahoo/ddd-refactor/internal/logging"
	"github.com/kiransahoo/ddd-refactor/internal/vectordb"
)

// queryPrefix steers the embedding toward refactoring-relevant snippets
// instead of raw code similarity.
const queryPrefix = "Go code for DDD refactoring: "

// Config bounds retrieval.
type Config struct {
	// MaxResults is the number of candidate snippets fetched per query.
	MaxResults int
	// RelevanceThreshold drops candidates scoring below it.
	RelevanceThreshold float64
	// QueryPrefixChars is how many leading characters of the code feed the
	// query embedding.
	QueryPrefixChars int
}

// DefaultConfig returns the standard retrieval bounds.
func DefaultConfig() Config {
	return Config{
		MaxResults:         5,
		RelevanceThreshold: 0.7,
		QueryPrefixChars:   500,
	}
}

// Service retrieves reference context for code chunks. Both collaborators
// are injected; a nil store or engine yields a permanently unavailable
// service, which callers treat as "no context".
type Service struct {
	store  vectordb.Store
	engine embedding.Engine
	cfg    Config
	log    *zap.Logger
}

// New creates a Service. cfg fields left at zero fall back to defaults.
func New(store vectordb.Store, engine embedding.Engine, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = def.RelevanceThreshold
	}
	if cfg.QueryPrefixChars <= 0 {
		cfg.QueryPrefixChars = def.QueryPrefixChars
	}
	return &Service{
		store:  store,
		engine: engine,
		cfg:    cfg,
		log:    logging.Get("rag"),
	}
}

// Available reports whether retrieval can serve queries right now.
func (s *Service) Available(ctx context.Context) bool {
	if s == nil || s.store == nil || s.engine == nil {
		return false
	}
	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn("vector store unavailable", zap.Error(err))
		return false
	}
	return true
}

// AssembleContext returns the relevant snippets for the given code as
// titled blocks, or the empty string when nothing relevant exists or
// retrieval is unavailable. It never fails the caller.
func (s *Service) AssembleContext(ctx context.Context, code string) string {
	if !s.Available(ctx) {
		return ""
	}

	query := code
	if len(query) > s.cfg.QueryPrefixChars {
		query = query[:s.cfg.QueryPrefixChars]
	}

	vec, err := s.engine.Embed(ctx, queryPrefix+query)
	if err != nil {
		s.log.Warn("query embedding failed", zap.Error(err))
		return ""
	}

	matches, err := s.store.Search(ctx, vec, s.cfg.MaxResults)
	if err != nil {
		s.log.Warn("snippet search failed", zap.Error(err))
		return ""
	}

	var blocks []string
	for _, m := range matches {
		if m.Score < s.cfg.RelevanceThreshold {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("--- %s ---\n%s", m.Snippet.Title, m.Snippet.Content))
	}
	if len(blocks) == 0 {
		return ""
	}

	s.log.Debug("assembled retrieval context",
		zap.Int("candidates", len(matches)),
		zap.Int("relevant", len(blocks)))
	return strings.Join(blocks, "\n\n")
}

// EnhancePrompt appends retrieval context to the base prompt. Without
// context the base prompt passes through untouched.
func (s *Service) EnhancePrompt(ctx context.Context, basePrompt, code string) string {
	retrieved := s.AssembleContext(ctx, code)
	if retrieved == "" {
		return basePrompt
	}
	return basePrompt + "\n\nRELEVANT CONTEXT:\n" + retrieved +
		"\n\nUse the above context to inform your response when applicable."
}

// IndexSnippet embeds and stores one reference snippet. Unlike retrieval,
// indexing reports failures: it only runs when the operator asks for it.
func (s *Service) IndexSnippet(ctx context.Context, title, content string) error {
	if s.store == nil || s.engine == nil {
		return fmt.Errorf("rag service is not configured for indexing")
	}

	vec, err := s.engine.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("failed to embed snippet %q: %w", title, err)
	}
	return s.store.Add(ctx, vectordb.Snippet{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Embedding: vec,
	})
}

// IndexDirectory walks dir and indexes every Go, markdown, and text file,
// chunked so individual snippets stay retrievable. Returns the number of
// snippets indexed.
func (s *Service) IndexDirectory(ctx context.Context, dir string) (int, error) {
	split, err := chunker.New(120, 0)
	if err != nil {
		return 0, err
	}

	indexed := 0
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".go", ".md", ".txt":
		default:
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = filepath.Base(path)
		}
		chunks := split.SplitFile(path, string(data))
		for _, ch := range chunks {
			title := rel
			if len(chunks) > 1 {
				title = fmt.Sprintf("%s#%d", rel, ch.Index)
			}
			if err := s.IndexSnippet(ctx, title, ch.Text); err != nil {
				return err
			}
			indexed++
		}
		return nil
	})
	if err != nil {
		return indexed, err
	}

	s.log.Info("indexed reference directory", zap.String("dir", dir), zap.Int("snippets", indexed))
	return indexed, nil
}
