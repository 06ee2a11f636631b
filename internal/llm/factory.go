package llm

import (
	"fmt"

	"github.com/scrypster/intentgap/internal/config"
)

// NewTextGenerator creates the reasoning-oracle client for the configured provider.
func NewTextGenerator(cfg config.LLMConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.OracleTimeout,
		}), nil
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			Timeout: cfg.OracleTimeout,
		}), nil
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
			Timeout: cfg.OracleTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// NewEmbeddingGenerator creates the embedding client for the configured provider.
// Anthropic has no embeddings API, so the anthropic provider pairs with OpenAI
// embeddings when an OpenAI key is present and Ollama otherwise.
func NewEmbeddingGenerator(cfg config.LLMConfig) (EmbeddingGenerator, error) {
	provider := cfg.Provider
	if provider == "anthropic" {
		if cfg.OpenAIAPIKey != "" {
			provider = "openai"
		} else {
			provider = "ollama"
		}
	}

	switch provider {
	case "openai":
		model := cfg.EmbeddingModel
		if model == "" {
			model = "text-embedding-3-small"
		}
		return NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  model,
		}), nil
	case "ollama", "":
		model := cfg.EmbeddingModel
		if model == "" {
			model = cfg.OllamaEmbeddingModel
		}
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   model,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", provider)
	}
}
