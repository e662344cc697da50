// Package config loads and validates the ddd-refactor configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all ddd-refactor configuration.
type Config struct {
	// Transformer model configuration
	LLM LLMConfig `yaml:"llm"`

	// Embedding provider configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Reference index backend
	VectorDB VectorDBConfig `yaml:"vectordb"`

	// Retrieval-augmented context
	RAG RAGConfig `yaml:"rag"`

	// Pipeline knobs
	Refactor RefactorConfig `yaml:"refactor"`

	// Structural merge rules
	Merge MergeConfig `yaml:"merge"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the generative model client.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	MaxRetries  int     `yaml:"max_retries"`
	Temperature float64 `yaml:"temperature"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // openai, ollama, gemini, local
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	Timeout   string `yaml:"timeout"`
}

// VectorDBConfig selects and configures the reference index backend.
type VectorDBConfig struct {
	Provider   string `yaml:"provider"` // memory, sqlite, chromem, chroma
	Path       string `yaml:"path"`     // sqlite file or chromem directory
	URL        string `yaml:"url"`      // chroma server
	Collection string `yaml:"collection"`
}

// RAGConfig tunes context retrieval.
type RAGConfig struct {
	Enabled            bool    `yaml:"enabled"`
	MaxResults         int     `yaml:"max_results"`
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
	// QueryPrefixChars bounds how much of a chunk is embedded as the
	// retrieval query. 0 embeds the whole chunk.
	QueryPrefixChars int    `yaml:"query_prefix_chars"`
	ContextPath      string `yaml:"context_path"`
}

// RefactorConfig holds the pipeline knobs.
type RefactorConfig struct {
	SourceDir        string `yaml:"source_dir"`
	OutputDir        string `yaml:"output_dir"`
	MaxParallel      int    `yaml:"max_parallel"`
	ChunkParallel    int    `yaml:"chunk_parallel"`
	MaxLinesPerChunk int    `yaml:"max_lines_per_chunk"`
	ChunkOverlap     int    `yaml:"chunk_overlap"`
	MaxPromptRetries int    `yaml:"max_prompt_retries"`
	CacheEnabled     bool   `yaml:"cache_enabled"`
	CacheBackend     string `yaml:"cache_backend"` // dir, sqlite
	CacheDir         string `yaml:"cache_dir"`
	ShutdownTimeout  string `yaml:"shutdown_timeout"`
	BasePrompt       string `yaml:"base_prompt"`
}

// MergeConfig carries the merge strategy data.
type MergeConfig struct {
	RemoveMethods  []string `yaml:"remove_methods"`
	DomainKeywords []string `yaml:"domain_keywords"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     "60s",
			MaxRetries:  3,
			Temperature: 0.1,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BaseURL:   "https://api.openai.com/v1",
			Dimension: 1536,
			Timeout:   "30s",
		},
		VectorDB: VectorDBConfig{
			Provider:   "memory",
			Collection: "domain-snippets",
		},
		RAG: RAGConfig{
			Enabled:            true,
			MaxResults:         5,
			RelevanceThreshold: 0.7,
			QueryPrefixChars:   500,
		},
		Refactor: RefactorConfig{
			SourceDir:        ".",
			OutputDir:        "refactored",
			MaxParallel:      4,
			ChunkParallel:    2,
			MaxLinesPerChunk: 300,
			ChunkOverlap:     0,
			MaxPromptRetries: 3,
			CacheEnabled:     true,
			CacheBackend:     "dir",
			CacheDir:         filepath.Join("refactored", "cache"),
			ShutdownTimeout:  "10m",
		},
		Merge: MergeConfig{
			RemoveMethods:  []string{"directDbCall"},
			DomainKeywords: []string{"stock"},
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// Load reads YAML config from path over the defaults. A missing file is not
// an error; environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides for secrets.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedding.Provider == "gemini" && c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
	}
	if url := os.Getenv("CHROMA_URL"); url != "" {
		c.VectorDB.URL = url
	}
}

// GetLLMTimeout returns the model request timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}

// GetEmbeddingTimeout returns the embedding request timeout as a duration.
func (c *Config) GetEmbeddingTimeout() time.Duration {
	return parseDuration(c.Embedding.Timeout, 30*time.Second)
}

// GetShutdownTimeout returns the run deadline as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Refactor.ShutdownTimeout, 10*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Validate fails fast on configuration errors before any work starts.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("invalid llm provider: %s (valid: openai, gemini)", c.LLM.Provider)
	}
	switch c.Embedding.Provider {
	case "openai", "ollama", "gemini", "local":
	default:
		return fmt.Errorf("invalid embedding provider: %s (valid: openai, ollama, gemini, local)", c.Embedding.Provider)
	}
	switch c.VectorDB.Provider {
	case "memory", "sqlite", "chromem", "chroma":
	default:
		return fmt.Errorf("invalid vectordb provider: %s (valid: memory, sqlite, chromem, chroma)", c.VectorDB.Provider)
	}
	switch c.Refactor.CacheBackend {
	case "", "dir", "sqlite":
	default:
		return fmt.Errorf("invalid cache backend: %s (valid: dir, sqlite)", c.Refactor.CacheBackend)
	}
	if c.Refactor.MaxLinesPerChunk <= 0 {
		return fmt.Errorf("max_lines_per_chunk must be positive, got %d", c.Refactor.MaxLinesPerChunk)
	}
	if c.Refactor.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must not be negative, got %d", c.Refactor.ChunkOverlap)
	}
	if c.Refactor.MaxLinesPerChunk <= c.Refactor.ChunkOverlap {
		return fmt.Errorf("max_lines_per_chunk (%d) must exceed chunk_overlap (%d)",
			c.Refactor.MaxLinesPerChunk, c.Refactor.ChunkOverlap)
	}
	if c.Refactor.MaxParallel <= 0 {
		return fmt.Errorf("max_parallel must be positive, got %d", c.Refactor.MaxParallel)
	}
	if c.Refactor.ChunkParallel <= 0 {
		return fmt.Errorf("chunk_parallel must be positive, got %d", c.Refactor.ChunkParallel)
	}
	if c.Refactor.MaxPromptRetries <= 0 {
		return fmt.Errorf("max_prompt_retries must be positive, got %d", c.Refactor.MaxPromptRetries)
	}
	if c.RAG.MaxResults <= 0 {
		return fmt.Errorf("rag max_results must be positive, got %d", c.RAG.MaxResults)
	}
	if c.RAG.QueryPrefixChars < 0 {
		return fmt.Errorf("rag query_prefix_chars must not be negative, got %d", c.RAG.QueryPrefixChars)
	}
	return nil
}
