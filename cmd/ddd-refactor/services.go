package main

import (
	"github.com/kiransahoo/ddd-refactor/internal/cache"
	"github.com/kiransahoo/ddd-refactor/internal/config"
	"github.com/kiransahoo/ddd-refactor/internal/embedding"
	"github.com/kiransahoo/ddd-refactor/internal/llm"
	"github.com/kiransahoo/ddd-refactor/internal/merge"
	"github.com/kiransahoo/ddd-refactor/internal/rag"
	"github.com/kiransahoo/ddd-refactor/internal/vectordb"
)

// newLLMClient builds the chat client for the validation loop.
func newLLMClient(cfg *config.Config) (llm.Client, error) {
	return llm.NewClient(llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.GetLLMTimeout(),
		MaxRetries:  cfg.LLM.MaxRetries,
		Temperature: cfg.LLM.Temperature,
	})
}

// newVectorStore builds the reference snippet store.
func newVectorStore(cfg *config.Config) (vectordb.Store, error) {
	return vectordb.New(vectordb.Config{
		Provider:   cfg.VectorDB.Provider,
		Path:       cfg.VectorDB.Path,
		URL:        cfg.VectorDB.URL,
		Collection: cfg.VectorDB.Collection,
	})
}

// newEmbeddingEngine builds the embedding backend for indexing and queries.
func newEmbeddingEngine(cfg *config.Config) (embedding.Engine, error) {
	return embedding.NewEngine(embedding.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.GetEmbeddingTimeout(),
	})
}

// newRAGService wires store and engine into a retrieval service. The store
// is returned alongside so the caller can close it.
func newRAGService(cfg *config.Config) (*rag.Service, vectordb.Store, error) {
	store, err := newVectorStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	engine, err := newEmbeddingEngine(cfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	svc := rag.New(store, engine, rag.Config{
		MaxResults:         cfg.RAG.MaxResults,
		RelevanceThreshold: cfg.RAG.RelevanceThreshold,
		QueryPrefixChars:   cfg.RAG.QueryPrefixChars,
	})
	return svc, store, nil
}

// newVerdictCache builds the verdict cache, or the noop cache when caching
// is disabled.
func newVerdictCache(cfg *config.Config) (cache.Cache, error) {
	if !cfg.Refactor.CacheEnabled {
		return cache.NewNoop(), nil
	}
	return cache.New(cfg.Refactor.CacheBackend, cfg.Refactor.CacheDir)
}

// newMerger builds the structural merger from the configured rules.
func newMerger(cfg *config.Config) *merge.Merger {
	return merge.New(merge.Strategy{
		RemoveMethods:  cfg.Merge.RemoveMethods,
		DomainKeywords: cfg.Merge.DomainKeywords,
	})
}
