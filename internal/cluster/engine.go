// Package cluster groups recent event embeddings into labeled clusters and
// tags each member with its cluster.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/eventmind/internal/semantic"
)

// Options controls one clustering run.
type Options struct {
	DaysBack       int
	CandidateLimit int
	MinCandidates  int
	Seed           int64
	MaxIterations  int
	SampleSize     int
	LabelSamples   int
	Policy         KPolicy
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		DaysBack:       30,
		CandidateLimit: 1000,
		MinCandidates:  20,
		Seed:           42,
		MaxIterations:  100,
		SampleSize:     10,
		LabelSamples:   maxPromptTexts,
		Policy:         StepK,
	}
}

// RunResult summarizes a clustering run.
type RunResult struct {
	Skipped    bool      `json:"skipped"`
	Reason     string    `json:"reason,omitempty"`
	Candidates int       `json:"candidates"`
	K          int       `json:"k"`
	Namespace  string    `json:"namespace,omitempty"`
	Clusters   []Cluster `json:"clusters,omitempty"`
	Tags       int       `json:"tags"`
}

// Engine runs the batch clustering job.
type Engine struct {
	embeddings *semantic.Store
	store      *Store
	labeler    Labeler
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates a clustering engine. labeler may be nil, in which case
// keyword labels are always used.
func NewEngine(embeddings *semantic.Store, store *Store, labeler Labeler, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.DaysBack <= 0 {
		opts.DaysBack = def.DaysBack
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = def.CandidateLimit
	}
	if opts.MinCandidates <= 0 {
		opts.MinCandidates = def.MinCandidates
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = def.SampleSize
	}
	if opts.LabelSamples <= 0 {
		opts.LabelSamples = def.LabelSamples
	}
	if opts.Policy == nil {
		opts.Policy = StepK
	}
	return &Engine{
		embeddings: embeddings,
		store:      store,
		labeler:    labeler,
		opts:       opts,
		logger:     logger.With("component", "cluster"),
		now:        time.Now,
	}
}

// Store returns the engine's cluster store.
func (e *Engine) Store() *Store { return e.store }

// Run clusters the recent window and replaces today's namespace for the
// chosen k. Below the candidate floor it does nothing and reports why.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	now := e.now().UTC()

	candidates, err := e.embeddings.Candidates(ctx, semantic.CandidateFilter{
		Since: now.AddDate(0, 0, -e.opts.DaysBack),
		Limit: e.opts.CandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}
	candidates = semantic.LatestPerEvent(candidates)
	candidates, dropped := sameDimensions(candidates)
	if dropped > 0 {
		e.logger.Warn("dropped candidates with mismatched dimensions",
			"dropped", dropped, "dims", len(candidates[0].Vector))
	}

	n := len(candidates)
	if n < e.opts.MinCandidates {
		reason := fmt.Sprintf("not enough data: %d candidates, need %d", n, e.opts.MinCandidates)
		e.logger.Info("clustering skipped", "candidates", n, "min", e.opts.MinCandidates)
		return &RunResult{Skipped: true, Reason: reason, Candidates: n}, nil
	}

	k := min(max(e.opts.Policy(n), 1), n)
	points := make([][]float64, n)
	for i, c := range candidates {
		points[i] = toFloat64(c.Vector)
	}
	assign, centroids := KMeans(points, k, e.opts.Seed, e.opts.MaxIterations)

	members := make([][]int, k)
	for i, c := range assign {
		members[c] = append(members[c], i)
	}

	namespace := Namespace(now, k)
	var (
		clusters  []Cluster
		tags      []Tag
		memberIDs = make([]string, 0, n)
	)
	for ci, idx := range members {
		if len(idx) == 0 {
			continue
		}
		c := Cluster{
			ID:          fmt.Sprintf("%s%d", namespace, ci),
			Namespace:   namespace,
			Centroid:    toFloat32(centroids[ci]),
			MemberCount: len(idx),
			LastUpdated: now,
		}
		var texts []string
		for _, i := range idx {
			id := candidates[i].EventID
			c.MemberIDs = append(c.MemberIDs, id)
			if len(c.SampleIDs) < e.opts.SampleSize {
				c.SampleIDs = append(c.SampleIDs, id)
			}
			if len(texts) < e.opts.LabelSamples && strings.TrimSpace(candidates[i].Preview) != "" {
				texts = append(texts, candidates[i].Preview)
			}
		}

		label := e.label(ctx, ci, texts)
		c.Label, c.Description = label.Label, label.Description
		clusters = append(clusters, c)

		for _, id := range c.MemberIDs {
			memberIDs = append(memberIDs, id)
			tags = append(tags, Tag{
				ID:         TagID(id, c.ID),
				EventID:    id,
				ClusterID:  c.ID,
				Type:       TagTypeCluster,
				Value:      c.Label,
				Confidence: TagConfidence,
				Source:     TagSource,
				CreatedAt:  now,
			})
		}
	}

	if err := e.store.Replace(ctx, namespace, clusters, memberIDs, tags); err != nil {
		return nil, err
	}

	e.logger.Info("clustering complete",
		"namespace", namespace, "candidates", n, "k", k,
		"clusters", len(clusters), "tags", len(tags))
	return &RunResult{
		Candidates: n,
		K:          k,
		Namespace:  namespace,
		Clusters:   clusters,
		Tags:       len(tags),
	}, nil
}

// label asks the configured labeler and falls back to keywords on any failure.
func (e *Engine) label(ctx context.Context, index int, texts []string) Label {
	if e.labeler != nil && len(texts) > 0 {
		l, err := e.labeler.Label(ctx, texts)
		if err == nil {
			return l
		}
		e.logger.Warn("cluster labeling failed, using keywords", "cluster", index, "error", err)
	}
	return KeywordLabel(index, texts)
}

// Namespace is the id prefix shared by all clusters of one day and k.
func Namespace(day time.Time, k int) string {
	return fmt.Sprintf("clu-%s-%d-", day.UTC().Format("20060102"), k)
}

// TagID derives a stable tag id for an event's membership in a cluster.
func TagID(eventID, clusterID string) string {
	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte(eventID+"|"+clusterID))
	return "tag-" + strings.ReplaceAll(u.String(), "-", "")[:12]
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// sameDimensions keeps the candidates whose vector length matches the newest
// one, which is what the current embedder produces.
func sameDimensions(in []semantic.Embedding) ([]semantic.Embedding, int) {
	if len(in) == 0 {
		return in, 0
	}
	dims := len(in[0].Vector)
	out := make([]semantic.Embedding, 0, len(in))
	for _, c := range in {
		if len(c.Vector) == dims {
			out = append(out, c)
		}
	}
	return out, len(in) - len(out)
}
