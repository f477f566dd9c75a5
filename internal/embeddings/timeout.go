package embeddings

import (
	"context"
	"time"
)

// TimeoutEmbedder bounds every Embed call with a deadline.
type TimeoutEmbedder struct {
	embedder Embedder
	timeout  time.Duration
}

// WithTimeout wraps embedder so each Embed call gets at most timeout. A
// non-positive timeout returns embedder unchanged.
func WithTimeout(embedder Embedder, timeout time.Duration) Embedder {
	if timeout <= 0 {
		return embedder
	}
	return &TimeoutEmbedder{embedder: embedder, timeout: timeout}
}

func (t *TimeoutEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.embedder.Embed(ctx, texts)
}

func (t *TimeoutEmbedder) Dimensions() int { return t.embedder.Dimensions() }

func (t *TimeoutEmbedder) Name() string { return t.embedder.Name() }
