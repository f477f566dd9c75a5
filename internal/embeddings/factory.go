package embeddings

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// NewEmbedder creates an embedder for the given provider. Supported
// providers: "openai", "ollama".
func NewEmbedder(provider, model string) (Embedder, error) {
	switch provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIEmbedder(apiKey, model), nil

	case "ollama":
		if model == "" {
			model = "nomic-embed-text"
		}
		host := os.Getenv("OLLAMA_HOST")
		if host != "" && !strings.HasPrefix(host, "http") {
			host = "http://" + host
		}
		return NewOllamaEmbedder(model, strings.TrimRight(host, "/")), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

// NewEmbedderWithTimeout is NewEmbedder with every call bounded by timeout.
func NewEmbedderWithTimeout(provider, model string, timeout time.Duration) (Embedder, error) {
	e, err := NewEmbedder(provider, model)
	if err != nil {
		return nil, err
	}
	return WithTimeout(e, timeout), nil
}
