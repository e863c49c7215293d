package embeddings

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

// Options selects and configures an embedding backend.
type Options struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
}

// New builds the Embedder named by opts.Provider. Embedders holding a
// client also implement io.Closer.
func New(ctx context.Context, opts Options) (Embedder, error) {
	switch opts.Provider {
	case "", ProviderOllama:
		return NewOllamaEmbedder(opts.BaseURL, opts.Model), nil
	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, apperrors.ErrConfiguration.WithMessage("OpenAI embeddings require an API key")
		}
		return NewOpenAIEmbedder(opts.BaseURL, opts.APIKey, opts.Model), nil
	case ProviderGemini:
		if opts.APIKey == "" {
			return nil, apperrors.ErrConfiguration.WithMessage("Gemini embeddings require an API key")
		}
		return NewGeminiEmbedder(ctx, opts.APIKey, opts.Model)
	default:
		return nil, apperrors.ErrConfiguration.WithCause(fmt.Errorf("unknown embedding provider %q", opts.Provider))
	}
}
