// Package embedtest provides deterministic embedders for tests.
package embedtest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
)

// Static returns fixed vectors for known texts and a bag-of-words hash
// vector for anything else.
type Static struct {
	mu      sync.Mutex
	Vectors map[string][]float32
	Dims    int
	Err     error
	Calls   int
	Texts   []string
}

// New returns a Static embedder producing dims-dimensional vectors.
func New(dims int) *Static {
	return &Static{Vectors: map[string][]float32{}, Dims: dims}
}

func (s *Static) Name() string   { return "static" }
func (s *Static) Dimensions() int { return s.Dims }

func (s *Static) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	s.Texts = append(s.Texts, texts...)
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if v, ok := s.Vectors[t]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, s.hashVector(t))
	}
	return out, nil
}

func (s *Static) hashVector(text string) []float32 {
	v := make([]float32, s.Dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%uint32(s.Dims)]++
	}
	return v
}
