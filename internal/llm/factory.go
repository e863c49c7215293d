package llm

import (
	"context"
	"fmt"

	apperrors "pdf-quiz-rag/internal/errors"
)

// Supported providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Options selects and configures a model backend.
type Options struct {
	Provider          string
	BaseURL           string
	Model             string
	APIKey            string
	Temperature       float64
	RequestsPerSecond float64
	Burst             int
}

// New builds the Completer named by opts.Provider, wrapped in a rate limiter
// when one is configured.
func New(ctx context.Context, opts Options) (Completer, error) {
	var c Completer
	switch opts.Provider {
	case "", ProviderOllama:
		c = NewOllamaClient(opts.BaseURL, opts.Model, opts.Temperature)
	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, apperrors.ErrConfiguration.WithMessage("OpenAI completions require an API key")
		}
		c = NewOpenAIClient(opts.BaseURL, opts.APIKey, opts.Model, opts.Temperature)
	case ProviderGemini:
		if opts.APIKey == "" {
			return nil, apperrors.ErrConfiguration.WithMessage("Gemini completions require an API key")
		}
		g, err := NewGeminiClient(ctx, opts.APIKey, opts.Model, opts.Temperature)
		if err != nil {
			return nil, err
		}
		c = g
	default:
		return nil, apperrors.ErrConfiguration.WithCause(fmt.Errorf("unknown llm provider %q", opts.Provider))
	}
	return NewRateLimited(c, opts.RequestsPerSecond, opts.Burst), nil
}
