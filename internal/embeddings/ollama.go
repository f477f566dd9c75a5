package embeddings

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// FuncEmbedder adapts a single-text chromem.EmbeddingFunc to Embedder.
type FuncEmbedder struct {
	name string
	fn   chromem.EmbeddingFunc

	mu   sync.Mutex
	dims int
}

// NewFuncEmbedder wraps fn. dims may be 0 and is then learned from the first
// vector returned.
func NewFuncEmbedder(name string, dims int, fn chromem.EmbeddingFunc) *FuncEmbedder {
	return &FuncEmbedder{name: name, fn: fn, dims: dims}
}

// NewOllamaEmbedder embeds through a local Ollama instance using chromem-go's
// client. baseURL is the Ollama root (e.g. http://localhost:11434).
func NewOllamaEmbedder(model, baseURL string) *FuncEmbedder {
	apiURL := ""
	if baseURL != "" {
		apiURL = baseURL + "/api"
	}
	return NewFuncEmbedder("ollama/"+model, 0, chromem.NewEmbeddingFuncOllama(model, apiURL))
}

func (e *FuncEmbedder) Name() string {
	return e.name
}

func (e *FuncEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}

func (e *FuncEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := e.fn(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("%s embedding %d: %w", e.name, i, err)
		}
		out = append(out, vec)
	}
	if len(out) > 0 {
		e.mu.Lock()
		if e.dims == 0 {
			e.dims = len(out[0])
		}
		e.mu.Unlock()
	}
	return out, nil
}
