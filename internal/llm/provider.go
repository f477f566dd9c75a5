// Package llm is the generative-language capability behind analyses,
// NL enrichment and cluster labels.
package llm

import "context"

// Provider answers one completion request. Implementations must honour ctx
// cancellation; WithTimeout relies on it to bound every call.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name identifies the backend ("openai", "ollama") in logs.
	Name() string
}
