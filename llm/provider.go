package llm

import (
	"context"
	"fmt"
)

// Embedder turns texts into dense vectors. Implementations must return one
// vector per input text, in input order.
type Embedder interface {
	// Embed generates embeddings for a batch of texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Identity names the provider and model, e.g. "ollama/nomic-embed-text".
	// Vectors produced under different identities are not comparable.
	Identity() string
}

// Config configures an embedding provider.
type Config struct {
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"` // ollama, lmstudio, openrouter, openai, gemini, custom, hashing, none
	Model    string `json:"model" yaml:"model" mapstructure:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	// Dim is only used by the hashing embedder.
	Dim int `json:"dim" yaml:"dim" mapstructure:"dim"`
}

// NewEmbedder creates an embedding provider from configuration.
// Provider "none" returns a nil Embedder and no error: semantic search is
// disabled and callers fall back to lexical ranking.
func NewEmbedder(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg), nil
	case "lmstudio":
		return NewLMStudio(cfg), nil
	case "openrouter":
		return NewOpenRouter(cfg), nil
	case "openai":
		return NewOpenAI(cfg), nil
	case "gemini":
		return NewGemini(cfg), nil
	case "custom":
		return NewOpenAICompat(cfg), nil
	case "hashing":
		return NewHashing(cfg), nil
	case "none":
		return nil, nil
	case "":
		return nil, fmt.Errorf("embedding provider not specified")
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

func identity(cfg Config) string {
	return cfg.Provider + "/" + cfg.Model
}
