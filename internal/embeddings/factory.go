package embeddings

import (
	"os"

	"github.com/ziadkadry99/textbook-qa/internal/apperr"
)

// NewEmbedder creates an embedder for the given provider type.
// Supported provider types: "openai", "ollama".
func NewEmbedder(providerType, model string, dimensions int) (Embedder, error) {
	switch providerType {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, apperr.Configuration("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIEmbedder(apiKey, model, dimensions, os.Getenv("OPENAI_BASE_URL")), nil

	case "ollama":
		return NewOllamaEmbedder(model, dimensions, os.Getenv("OLLAMA_HOST")), nil

	default:
		return nil, apperr.Configuration("unsupported embedding provider: %s", providerType)
	}
}
