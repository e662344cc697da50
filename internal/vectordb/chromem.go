package vectordb

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const defaultCollection = "domain-snippets"

// ChromemStore persists snippets in an embedded chromem-go database. No
// server is involved; a persistent path makes the index survive restarts.
// Ranking is delegated to chromem, which does not guarantee insertion order
// for equal scores.
type ChromemStore struct {
	mu   sync.RWMutex
	db   *chromem.DB
	col  *chromem.Collection
	name string
}

// NewChromemStore opens an embedded store. An empty path keeps the index in
// memory only.
func NewChromemStore(path, collection string) (*ChromemStore, error) {
	if collection == "" {
		collection = defaultCollection
	}

	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem database: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	return &ChromemStore{db: db, col: col, name: collection}, nil
}

// Add stores snippets as chromem documents. The title travels in document
// metadata since chromem has no dedicated field for it.
func (c *ChromemStore) Add(ctx context.Context, snippets ...Snippet) error {
	if len(snippets) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(snippets))
	for _, s := range snippets {
		if s.ID == "" {
			return fmt.Errorf("snippet ID is required")
		}
		meta := map[string]string{"title": s.Title}
		for k, v := range s.Metadata {
			meta[k] = v
		}
		docs = append(docs, chromem.Document{
			ID:        s.ID,
			Content:   s.Content,
			Metadata:  meta,
			Embedding: s.Embedding,
		})
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search queries chromem with the precomputed embedding. topK is clamped to
// the collection size because chromem rejects nResults above it.
func (c *ChromemStore) Search(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n := c.col.Count(); n < topK {
		topK = n
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := c.col.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		meta := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		title := meta["title"]
		delete(meta, "title")
		matches = append(matches, Match{
			Snippet: Snippet{
				ID:        r.ID,
				Title:     title,
				Content:   r.Content,
				Metadata:  meta,
				Embedding: r.Embedding,
			},
			Score: float64(r.Similarity),
		})
	}
	return matches, nil
}

// Get returns the document stored under id. chromem reports a missing
// document as an error, which maps to a plain not-found here.
func (c *ChromemStore) Get(ctx context.Context, id string) (Snippet, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, err := c.col.GetByID(ctx, id)
	if err != nil {
		return Snippet{}, false, nil
	}

	meta := make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	title := meta["title"]
	delete(meta, "title")
	return Snippet{
		ID:        doc.ID,
		Title:     title,
		Content:   doc.Content,
		Metadata:  meta,
		Embedding: doc.Embedding,
	}, true, nil
}

// Delete removes the document stored under id.
func (c *ChromemStore) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.col.Count() == 0 {
		return nil
	}
	if err := c.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// Count reports the number of stored documents.
func (c *ChromemStore) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.col.Count(), nil
}

// Reset drops and recreates the collection.
func (c *ChromemStore) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.DeleteCollection(c.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	col, err := c.db.GetOrCreateCollection(c.name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to recreate collection %s: %w", c.name, err)
	}
	c.col = col
	return nil
}

// Ping always succeeds for the embedded store.
func (c *ChromemStore) Ping(ctx context.Context) error { return nil }

// Close releases nothing; chromem persists on every write.
func (c *ChromemStore) Close() error { return nil }
