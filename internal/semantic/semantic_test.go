package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/eventmind/internal/db"
	"github.com/openclaw/eventmind/internal/embeddings/embedtest"
	"github.com/openclaw/eventmind/internal/enrich"
	"github.com/openclaw/eventmind/internal/event"
)

type fixture struct {
	db       *db.DB
	svc      *Service
	embedder *embedtest.Static
	enrich   *enrich.Store
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	emb := embedtest.New(3)
	emb.Vectors["Budget review ASAP"] = []float32{0.9, 0.1, 0.1}
	emb.Vectors["Q1 budget meeting notes"] = []float32{0.85, 0.2, 0.05}
	emb.Vectors["Dinner with family"] = []float32{0, 0, 1}
	emb.Vectors["budget"] = []float32{1, 0, 0}

	enr := enrich.NewStore(d)
	return &fixture{
		db:       d,
		svc:      NewService(NewStore(d), emb, enr, DefaultOptions(), nil),
		embedder: emb,
		enrich:   enr,
	}
}

func mkEvent(id, source, subject string, age time.Duration) *event.Event {
	return &event.Event{
		ID:        id,
		Timestamp: time.Now().Add(-age).UTC(),
		Source:    source,
		Type:      "received",
		Payload:   map[string]any{"subject": subject},
	}
}

func (f *fixture) embed(t *testing.T, evs ...*event.Event) {
	t.Helper()
	for _, ev := range evs {
		if _, err := f.svc.Embed(context.Background(), ev); err != nil {
			t.Fatalf("Embed(%s): %v", ev.ID, err)
		}
	}
}

func TestCosineProperties(t *testing.T) {
	v := []float32{0.3, -1.2, 2.5}
	neg := []float32{-0.3, 1.2, -2.5}
	zero := []float32{0, 0, 0}

	for _, u := range [][]float32{v, {1, 1}, {0.1, 0.2}, {3, 4, 12}, {0.7, -0.01, 5e-3, 42}} {
		opp := make([]float32, len(u))
		for i, x := range u {
			opp[i] = -x
		}
		if got := Cosine(u, u); got != 1 {
			t.Errorf("Cosine(%v,v) = %v, want exactly 1", u, got)
		}
		if got := Cosine(u, opp); got != -1 {
			t.Errorf("Cosine(%v,-v) = %v, want exactly -1", u, got)
		}
	}
	if got := Cosine(v, neg); got != -1 {
		t.Errorf("Cosine(v,neg) = %v, want -1", got)
	}
	if got := Cosine(v, zero); got != 0 {
		t.Errorf("Cosine(v,0) = %v, want 0", got)
	}
	if got := Cosine(v, []float32{1, 2}); got != 0 {
		t.Errorf("dimension mismatch should be 0, got %v", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Errorf("empty vectors should be 0, got %v", got)
	}
}

func TestRankKeepsScanOrderOnTies(t *testing.T) {
	q := []float32{1, 0}
	candidates := [][]float32{{0, 1}, {2, 0}, {1, 0}, {1, 1}}

	got := Rank(q, candidates, 0.5, 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 results above threshold, got %v", got)
	}
	if got[0].Index != 1 || got[1].Index != 2 || got[2].Index != 3 {
		t.Errorf("unexpected order: %v", got)
	}

	if got := Rank(q, candidates, 0.5, 1); len(got) != 1 || got[0].Index != 1 {
		t.Errorf("topK not applied: %v", got)
	}
}

func TestEmbedIsIdempotent(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	ev := mkEvent("evt-1", "mail", "Budget review ASAP", time.Hour)

	first, err := f.svc.Embed(ctx, ev)
	if err != nil || !first.Created {
		t.Fatalf("first Embed: %+v, %v", first, err)
	}
	second, err := f.svc.Embed(ctx, ev)
	if err != nil || second.Created {
		t.Fatalf("second Embed: %+v, %v", second, err)
	}

	n, _ := f.svc.Store().CountForEvent(ctx, "evt-1")
	if n != 1 {
		t.Errorf("expected 1 embedding row, got %d", n)
	}
	if f.embedder.Calls != 1 {
		t.Errorf("expected 1 embedder call, got %d", f.embedder.Calls)
	}

	// Changed text is a new version of the event.
	ev.Payload["subject"] = "Budget review moved"
	if _, err := f.svc.Embed(ctx, ev); err != nil {
		t.Fatalf("Embed changed: %v", err)
	}
	n, _ = f.svc.Store().CountForEvent(ctx, "evt-1")
	if n != 2 {
		t.Errorf("expected 2 embedding rows after change, got %d", n)
	}
}

func TestEmbedWithoutTextIsNoop(t *testing.T) {
	f := setupService(t)
	ev := &event.Event{ID: "evt-x", Source: "image", Payload: map[string]any{"width": 640}}

	res, err := f.svc.Embed(context.Background(), ev)
	if err != nil || !res.NoText {
		t.Fatalf("expected no-op, got %+v, %v", res, err)
	}
	if f.embedder.Calls != 0 {
		t.Error("embedder should not be called")
	}
}

func TestSearchBudgetScenario(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	prior := mkEvent("evt-notes", "mail", "Q1 budget meeting notes", 48*time.Hour)
	current := mkEvent("evt-review", "mail", "Budget review ASAP", time.Hour)
	other := mkEvent("evt-dinner", "calendar", "Dinner with family", 2*time.Hour)
	f.embed(t, prior, current, other)

	f.enrich.Save(ctx, &enrich.Record{EventID: "evt-review", Language: "en"})

	a, _ := f.svc.Store().Latest(ctx, "evt-review")
	b, _ := f.svc.Store().Latest(ctx, "evt-notes")
	if sim := Cosine(a.Vector, b.Vector); sim < 0.75 {
		t.Fatalf("expected similarity >= 0.75, got %v", sim)
	}

	matches, err := f.svc.Search(ctx, Query{Text: "budget"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", matches)
	}
	if matches[0].EventID != "evt-review" || matches[1].EventID != "evt-notes" {
		t.Errorf("unexpected ranking: %s, %s", matches[0].EventID, matches[1].EventID)
	}
	if matches[0].Similarity < matches[1].Similarity {
		t.Error("results not sorted descending")
	}
	if matches[0].Enrichment == nil || matches[0].Enrichment.Language != "en" {
		t.Errorf("expected joined enrichment, got %+v", matches[0].Enrichment)
	}
	if matches[1].Enrichment != nil {
		t.Error("unenriched match should carry no enrichment")
	}

	var logged int
	f.db.QueryRow("SELECT COUNT(*) FROM search_queries WHERE query = 'budget' AND result_count = 2").Scan(&logged)
	if logged != 1 {
		t.Errorf("expected search to be logged once, got %d", logged)
	}
}

func TestSearchFilters(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.embed(t,
		mkEvent("recent-mail", "mail", "Budget review ASAP", time.Hour),
		mkEvent("recent-cal", "calendar", "Q1 budget meeting notes", time.Hour),
		mkEvent("ancient", "mail", "budget", 400*24*time.Hour),
	)

	matches, err := f.svc.Search(ctx, Query{Text: "budget", Source: "calendar"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].EventID != "recent-cal" {
		t.Errorf("source filter failed: %+v", matches)
	}

	matches, _ = f.svc.Search(ctx, Query{Text: "budget"})
	for _, m := range matches {
		if m.EventID == "ancient" {
			t.Error("event outside days_back window returned")
		}
	}

	strict := 0.99
	matches, _ = f.svc.Search(ctx, Query{Text: "budget", MinSimilarity: &strict, DaysBack: 1000})
	if len(matches) != 1 || matches[0].EventID != "ancient" {
		t.Errorf("min_similarity filter failed: %+v", matches)
	}
}

func TestFindSimilarWithoutEmbedding(t *testing.T) {
	f := setupService(t)

	matches, err := f.svc.FindSimilar(context.Background(), "never-embedded", 5)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if matches == nil || len(matches) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", matches)
	}
}

func TestFindSimilarPersistsDirectedLinks(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.embed(t,
		mkEvent("evt-notes", "mail", "Q1 budget meeting notes", 48*time.Hour),
		mkEvent("evt-review", "mail", "Budget review ASAP", time.Hour),
		mkEvent("evt-dinner", "calendar", "Dinner with family", 2*time.Hour),
	)

	for range 2 {
		matches, err := f.svc.FindSimilar(ctx, "evt-review", 5)
		if err != nil {
			t.Fatalf("FindSimilar: %v", err)
		}
		if len(matches) != 1 || matches[0].EventID != "evt-notes" {
			t.Fatalf("unexpected matches: %+v", matches)
		}
	}

	links, err := f.svc.Store().LinksFrom(ctx, "evt-review")
	if err != nil {
		t.Fatalf("LinksFrom: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link after repeated lookups, got %d", len(links))
	}
	if links[0].TargetEventID != "evt-notes" || links[0].LinkType != LinkTypeSimilar {
		t.Errorf("unexpected link: %+v", links[0])
	}

	reverse, _ := f.svc.Store().LinksFrom(ctx, "evt-notes")
	if len(reverse) != 0 {
		t.Errorf("reverse edge should not be created, got %+v", reverse)
	}
}

func TestSearchRoute(t *testing.T) {
	f := setupService(t)
	f.embed(t, mkEvent("evt-review", "mail", "Budget review ASAP", time.Hour))

	r := chi.NewRouter()
	RegisterRoutes(r, f.svc)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=budget&top_k=5", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Results []Match `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != 1 || body.Results[0].EventID != "evt-review" {
		t.Errorf("unexpected results: %+v", body.Results)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/search", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without q, got %d", w.Code)
	}
}

func TestBackfill(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	done := mkEvent("evt-1", "mail", "Budget review ASAP", time.Hour)
	f.embed(t, done)

	events := []event.Event{
		*done,
		*mkEvent("evt-2", "mail", "Q1 budget meeting notes", 2*time.Hour),
		{ID: "evt-3", Source: "drive", Payload: map[string]any{}},
	}

	var seen []string
	stats, err := f.svc.Backfill(ctx, events, func(n int, ev *event.Event, res *EmbedResult, err error) {
		seen = append(seen, ev.ID)
	})
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	want := BackfillStats{Embedded: 1, Unchanged: 1, NoText: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(seen) != 3 {
		t.Errorf("progress calls = %v", seen)
	}
	if n, _ := f.svc.Store().CountForEvent(ctx, "evt-2"); n != 1 {
		t.Errorf("evt-2 embeddings = %d", n)
	}

	f.embedder.Err = errors.New("rate limited")
	stats, err = f.svc.Backfill(ctx, []event.Event{*mkEvent("evt-4", "mail", "Dinner with family", time.Hour)}, nil)
	if err != nil || stats.Failed != 1 {
		t.Errorf("stats = %+v, err = %v", stats, err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := f.svc.Backfill(cancelled, events, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
