package llm

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultOllamaHost is used when OLLAMA_HOST is not set.
const DefaultOllamaHost = "http://localhost:11434"

// NewProvider creates a generative-language provider for the given provider
// type. Supported types: "openai", "ollama". Missing credentials are a
// configuration error.
func NewProvider(providerType string, model string) (Provider, error) {
	switch providerType {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, model), nil

	case "ollama":
		return NewCompatibleProvider("ollama", OllamaHost()+"/v1", "ollama", model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// NewProviderWithTimeout is NewProvider with every call bounded by timeout.
func NewProviderWithTimeout(providerType, model string, timeout time.Duration) (Provider, error) {
	p, err := NewProvider(providerType, model)
	if err != nil {
		return nil, err
	}
	return WithTimeout(p, timeout), nil
}

// OllamaHost returns the Ollama base URL without a trailing slash.
func OllamaHost() string {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = DefaultOllamaHost
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/")
}
