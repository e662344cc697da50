// Package embedding generates vector embeddings for reference snippets and
// retrieval queries. Backends: OpenAI-compatible APIs, local Ollama, Google
// Gemini, and a deterministic offline hasher.
package embedding

import (
	"context"
	"fmt"
	"time"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings
	Dimensions() int

	// Name returns the engine name
	Name() string
}

// HealthChecker is an optional interface for engines that can verify the
// backing service is reachable before batch work starts.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds embedding engine configuration.
type Config struct {
	// Provider: "openai", "ollama", "gemini", or "local"
	Provider string

	APIKey    string
	Model     string
	BaseURL   string
	Dimension int
	Timeout   time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Model:     "text-embedding-3-small",
		BaseURL:   "https://api.openai.com/v1",
		Dimension: 1536,
		Timeout:   30 * time.Second,
	}
}

// NewEngine creates an embedding engine based on configuration.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEngine(cfg)
	case "ollama":
		return NewOllamaEngine(cfg.BaseURL, cfg.Model, cfg.Dimension, cfg.Timeout)
	case "gemini":
		return NewGeminiEngine(cfg.APIKey, cfg.Model)
	case "local":
		return NewLocalEngine(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use openai, ollama, gemini, or local)", cfg.Provider)
	}
}
