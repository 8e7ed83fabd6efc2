package extract

import (
	"fmt"
	"time"
)

// Config selects and configures the entity extractor.
type Config struct {
	// Provider is one of "heuristic", "ollama", "openai", "anthropic".
	// Empty selects the heuristic extractor so a fresh install works
	// without any model running.
	Provider string

	// BaseURL overrides the provider endpoint (Ollama and OpenAI only).
	BaseURL string

	// APIKey authenticates hosted providers (OpenAI, Anthropic).
	APIKey string

	// Model overrides the provider's default model.
	Model string

	// Timeout bounds a single completion request.
	Timeout time.Duration
}

// New creates the extractor for the configured provider. Unknown providers
// are an error.
func New(cfg Config) (Extractor, error) {
	switch cfg.Provider {
	case "", "heuristic":
		return NewHeuristicExtractor(), nil
	case "ollama":
		return NewLLMExtractor(NewOllamaClient(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})), nil
	case "openai":
		return NewLLMExtractor(NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})), nil
	case "anthropic":
		return NewLLMExtractor(NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})), nil
	default:
		return nil, fmt.Errorf("unsupported extraction provider: %q", cfg.Provider)
	}
}
