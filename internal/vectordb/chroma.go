package vectordb

import (
	"context"
	"fmt"
	"sync"

	chromago "github.com/amikos-tech/chroma-go"
	"github.com/amikos-tech/chroma-go/collection"
	"github.com/amikos-tech/chroma-go/types"
)

// ChromaStore talks to a remote chroma server. The collection is created
// with the cosine distance function so scores convert as 1 - distance.
// Ranking is delegated to the server, which does not guarantee insertion
// order for equal scores.
type ChromaStore struct {
	client *chromago.Client
	name   string

	mu  sync.Mutex
	col *chromago.Collection
}

// NewChromaStore creates a client for the chroma server at url. The
// collection is created on first use so construction does not require the
// server to be up.
func NewChromaStore(url, collectionName string) (*ChromaStore, error) {
	if url == "" {
		return nil, fmt.Errorf("chroma vectordb requires a server URL")
	}
	if collectionName == "" {
		collectionName = defaultCollection
	}

	client, err := chromago.NewClient(chromago.WithBasePath(url))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}
	return &ChromaStore{client: client, name: collectionName}, nil
}

func (c *ChromaStore) collection(ctx context.Context) (*chromago.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.col != nil {
		return c.col, nil
	}
	col, err := c.client.NewCollection(
		ctx,
		c.name,
		collection.WithHNSWDistanceFunction(types.COSINE),
		collection.WithCreateIfNotExist(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create or get collection: %w", err)
	}
	c.col = col
	return col, nil
}

// Add uploads snippets with their precomputed embeddings.
func (c *ChromaStore) Add(ctx context.Context, snippets ...Snippet) error {
	if len(snippets) == 0 {
		return nil
	}
	col, err := c.collection(ctx)
	if err != nil {
		return err
	}

	embeddings := make([]*types.Embedding, 0, len(snippets))
	metadatas := make([]map[string]interface{}, 0, len(snippets))
	documents := make([]string, 0, len(snippets))
	ids := make([]string, 0, len(snippets))
	for _, s := range snippets {
		if s.ID == "" {
			return fmt.Errorf("snippet ID is required")
		}
		meta := map[string]interface{}{"title": s.Title}
		for k, v := range s.Metadata {
			meta[k] = v
		}
		embeddings = append(embeddings, types.NewEmbeddingFromFloat32(s.Embedding))
		metadatas = append(metadatas, meta)
		documents = append(documents, s.Content)
		ids = append(ids, s.ID)
	}

	if _, err := col.Add(ctx, embeddings, metadatas, documents, ids); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search queries the server with the precomputed embedding and converts
// cosine distances back to similarities.
func (c *ChromaStore) Search(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	col, err := c.collection(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := col.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count collection: %w", err)
	} else if int(n) < topK {
		topK = int(n)
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := col.QueryWithOptions(
		ctx,
		types.WithQueryEmbeddings([]*types.Embedding{types.NewEmbeddingFromFloat32(embedding)}),
		types.WithNResults(int32(topK)),
		types.WithInclude(types.IDocuments, types.IMetadatas, types.IDistances),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	var matches []Match
	if len(results.Documents) == 0 {
		return matches, nil
	}
	for i := range results.Documents[0] {
		m := Match{Snippet: Snippet{Content: results.Documents[0][i]}}
		if len(results.Ids) > 0 && len(results.Ids[0]) > i {
			m.Snippet.ID = results.Ids[0][i]
		}
		if len(results.Distances) > 0 && len(results.Distances[0]) > i {
			m.Score = 1 - float64(results.Distances[0][i])
		}
		if len(results.Metadatas) > 0 && len(results.Metadatas[0]) > i && results.Metadatas[0][i] != nil {
			meta := make(map[string]string, len(results.Metadatas[0][i]))
			for k, v := range results.Metadatas[0][i] {
				meta[k] = fmt.Sprintf("%v", v)
			}
			m.Snippet.Title = meta["title"]
			delete(meta, "title")
			m.Snippet.Metadata = meta
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Get fetches the document stored under id. The server's default include
// set carries documents and metadata but not embeddings, so the returned
// snippet has no embedding.
func (c *ChromaStore) Get(ctx context.Context, id string) (Snippet, bool, error) {
	col, err := c.collection(ctx)
	if err != nil {
		return Snippet{}, false, err
	}

	res, err := col.Get(ctx, nil, nil, []string{id})
	if err != nil {
		return Snippet{}, false, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	if res == nil || len(res.Ids) == 0 {
		return Snippet{}, false, nil
	}

	sn := Snippet{ID: res.Ids[0]}
	if len(res.Documents) > 0 {
		sn.Content = res.Documents[0]
	}
	if len(res.Metadatas) > 0 && res.Metadatas[0] != nil {
		meta := make(map[string]string, len(res.Metadatas[0]))
		for k, v := range res.Metadatas[0] {
			meta[k] = fmt.Sprintf("%v", v)
		}
		sn.Title = meta["title"]
		delete(meta, "title")
		sn.Metadata = meta
	}
	return sn, true, nil
}

// Delete removes the document stored under id.
func (c *ChromaStore) Delete(ctx context.Context, id string) error {
	col, err := c.collection(ctx)
	if err != nil {
		return err
	}
	if _, err := col.Delete(ctx, []string{id}, nil, nil); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// Count reports the number of documents on the server.
func (c *ChromaStore) Count(ctx context.Context) (int, error) {
	col, err := c.collection(ctx)
	if err != nil {
		return 0, err
	}
	n, err := col.Count(ctx)
	return int(n), err
}

// Reset drops the remote collection. It is recreated on next use.
func (c *ChromaStore) Reset(ctx context.Context) error {
	if _, err := c.client.DeleteCollection(ctx, c.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	c.mu.Lock()
	c.col = nil
	c.mu.Unlock()
	return nil
}

// Ping checks server reachability via heartbeat.
func (c *ChromaStore) Ping(ctx context.Context) error {
	if _, err := c.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("chroma server unreachable: %w", err)
	}
	return nil
}

// Close releases nothing; the underlying HTTP client needs no cleanup.
func (c *ChromaStore) Close() error { return nil }
