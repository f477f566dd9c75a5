// Package semantic keeps one embedding per distinct event text and answers
// nearest-neighbor queries over them.
package semantic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/openclaw/eventmind/internal/embeddings"
	"github.com/openclaw/eventmind/internal/enrich"
	"github.com/openclaw/eventmind/internal/event"
)

const (
	maxTopK       = 50
	previewLength = 200
)

// Options bounds search and link discovery.
type Options struct {
	TopK                  int
	DaysBack              int
	MinSimilarity         float64
	CandidateLimit        int
	LinkThreshold         float64
	SimilarWindowDays     int
	SimilarCandidateLimit int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		TopK:                  10,
		DaysBack:              365,
		MinSimilarity:         0.5,
		CandidateLimit:        2000,
		LinkThreshold:         0.75,
		SimilarWindowDays:     30,
		SimilarCandidateLimit: 1000,
	}
}

// Query is a free-text similarity search. Zero values take the defaults;
// MinSimilarity is a pointer so 0 can be asked for explicitly.
type Query struct {
	Text          string   `json:"query"`
	TopK          int      `json:"top_k,omitempty"`
	Source        string   `json:"source,omitempty"`
	DaysBack      int      `json:"days_back,omitempty"`
	MinSimilarity *float64 `json:"min_similarity,omitempty"`
}

// Match is one ranked result.
type Match struct {
	EventID    string         `json:"event_id"`
	Similarity float64        `json:"similarity"`
	Source     string         `json:"source"`
	Preview    string         `json:"preview"`
	Timestamp  time.Time      `json:"timestamp"`
	Enrichment *enrich.Record `json:"enrichment,omitempty"`
}

// EmbedResult describes what one Embed call did.
type EmbedResult struct {
	Embedding *Embedding
	Created   bool
	NoText    bool
}

// Service embeds events and searches them.
type Service struct {
	store       *Store
	embedder    embeddings.Embedder
	enrichments *enrich.Store
	opts        Options
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a semantic service. enrichments may be nil, in which
// case search results carry no enrichment.
func NewService(store *Store, embedder embeddings.Embedder, enrichments *enrich.Store, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		embedder:    embedder,
		enrichments: enrichments,
		opts:        opts,
		logger:      logger.With("component", "semantic"),
		now:         time.Now,
	}
}

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

// ContentHash is the dedup key for a text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// Embed stores a vector for the event's current text. Unchanged text is a
// no-op, as is a payload without text.
func (s *Service) Embed(ctx context.Context, ev *event.Event) (*EmbedResult, error) {
	text := event.ExtractText(ev.Payload, event.EmbeddingFields)
	if text == "" {
		return &EmbedResult{NoText: true}, nil
	}
	hash := ContentHash(text)

	exists, err := s.store.Exists(ctx, ev.ID, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Debug("embedding exists, skipping", "event_id", ev.ID, "hash", hash)
		return &EmbedResult{}, nil
	}

	vec, err := embeddings.EmbedOne(ctx, s.embedder, text)
	if err != nil {
		return nil, fmt.Errorf("embedding event %s: %w", ev.ID, err)
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	e := &Embedding{
		EventID:     ev.ID,
		ContentHash: hash,
		Vector:      vec,
		Model:       s.embedder.Name(),
		Preview:     event.Truncate(text, previewLength),
		Source:      ev.Source,
		Timestamp:   ts,
	}
	created, err := s.store.Insert(ctx, e)
	if err != nil {
		return nil, err
	}
	return &EmbedResult{Embedding: e, Created: created}, nil
}

// Search embeds the query text and ranks stored embeddings against it.
func (s *Service) Search(ctx context.Context, q Query) ([]Match, error) {
	start := time.Now()

	topK := q.TopK
	if topK <= 0 {
		topK = s.opts.TopK
	}
	topK = min(max(topK, 1), maxTopK)
	daysBack := q.DaysBack
	if daysBack <= 0 {
		daysBack = s.opts.DaysBack
	}
	minSim := s.opts.MinSimilarity
	if q.MinSimilarity != nil {
		minSim = *q.MinSimilarity
	}

	vec, err := embeddings.EmbedOne(ctx, s.embedder, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := s.store.Candidates(ctx, CandidateFilter{
		Source: q.Source,
		Since:  s.now().AddDate(0, 0, -daysBack),
		Limit:  s.opts.CandidateLimit,
	})
	if err != nil {
		return nil, err
	}

	matches := s.rank(vec, LatestPerEvent(candidates), minSim, topK)
	if err := s.attachEnrichment(ctx, matches); err != nil {
		return nil, err
	}

	logEntry := QueryLog{
		Query: q.Text,
		Filters: map[string]any{
			"source":         q.Source,
			"days_back":      daysBack,
			"min_similarity": minSim,
			"top_k":          topK,
		},
		ResultCount: len(matches),
		Latency:     time.Since(start),
	}
	if len(matches) > 0 {
		logEntry.TopSimilarity = matches[0].Similarity
	}
	if err := s.store.LogQuery(ctx, logEntry); err != nil {
		s.logger.Warn("failed to log search query", "error", err)
	}

	return matches, nil
}

// FindSimilar ranks recent embeddings against the event's latest vector and
// persists every match at or above the link threshold as a directed link.
// An event without an embedding yields an empty result.
func (s *Service) FindSimilar(ctx context.Context, eventID string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = s.opts.TopK
	}
	topK = min(topK, maxTopK)

	target, err := s.store.Latest(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return []Match{}, nil
	}

	candidates, err := s.store.Candidates(ctx, CandidateFilter{
		Since:          s.now().AddDate(0, 0, -s.opts.SimilarWindowDays),
		ExcludeEventID: eventID,
		Limit:          s.opts.SimilarCandidateLimit,
	})
	if err != nil {
		return nil, err
	}

	matches := s.rank(target.Vector, LatestPerEvent(candidates), s.opts.LinkThreshold, topK)
	for _, m := range matches {
		if err := s.store.SaveLink(ctx, &Link{
			SourceEventID: eventID,
			TargetEventID: m.EventID,
			Similarity:    m.Similarity,
			LinkType:      LinkTypeSimilar,
		}); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

func (s *Service) rank(query []float32, candidates []Embedding, minSim float64, topK int) []Match {
	vectors := make([][]float32, len(candidates))
	for i := range candidates {
		vectors[i] = candidates[i].Vector
	}

	ranked := Rank(query, vectors, minSim, topK)
	matches := make([]Match, 0, len(ranked))
	for _, r := range ranked {
		c := candidates[r.Index]
		matches = append(matches, Match{
			EventID:    c.EventID,
			Similarity: r.Similarity,
			Source:     c.Source,
			Preview:    c.Preview,
			Timestamp:  c.Timestamp,
		})
	}
	return matches
}

func (s *Service) attachEnrichment(ctx context.Context, matches []Match) error {
	if s.enrichments == nil || len(matches) == 0 {
		return nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.EventID
	}
	recs, err := s.enrichments.ForEvents(ctx, ids)
	if err != nil {
		return err
	}
	for i := range matches {
		matches[i].Enrichment = recs[matches[i].EventID]
	}
	return nil
}

// LatestPerEvent keeps the first embedding of each event. Candidates come
// newest first, so that is the event's current text.
func LatestPerEvent(in []Embedding) []Embedding {
	seen := make(map[string]bool, len(in))
	out := make([]Embedding, 0, len(in))
	for _, e := range in {
		if seen[e.EventID] {
			continue
		}
		seen[e.EventID] = true
		out = append(out, e)
	}
	return out
}
