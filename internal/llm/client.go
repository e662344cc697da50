// Package llm provides chat completion clients for the refactor loop. The
// loop talks to one Client; providers differ only in transport. The OpenAI
// client also serves any OpenAI-compatible endpoint via BaseURL.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client sends a conversation to a model and returns its reply text.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// Config selects and parameterizes a provider.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
}

// DefaultConfig returns OpenAI gpt-4o with conservative sampling.
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Model:       "gpt-4o",
		BaseURL:     "https://api.openai.com/v1",
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		Temperature: 0.1,
	}
}

// NewClient creates a Client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg)
	case "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
