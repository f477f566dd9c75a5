package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/eventmind/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := Entry{
		ID:         "entry-1",
		Action:     ActionCreateTask,
		EntityType: EntityTask,
		EntityID:   "task-9",
		Summary:    "Created task: Budget review",
		Rationale:  "CFO asked for a review",
		Confidence: 0.82,
		PipelineID: "pipe-abc",
	}
	if _, err := store.Log(ctx, entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	got, err := store.GetByID(ctx, "entry-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if got.Action != ActionCreateTask {
		t.Errorf("Action = %q, want %q", got.Action, ActionCreateTask)
	}
	if got.AgentID != DefaultAgent {
		t.Errorf("AgentID = %q, want %q", got.AgentID, DefaultAgent)
	}
	if got.EntityID != "task-9" || got.PipelineID != "pipe-abc" {
		t.Errorf("entity/pipeline = %q/%q", got.EntityID, got.PipelineID)
	}
	if got.Confidence != 0.82 {
		t.Errorf("Confidence = %v, want 0.82", got.Confidence)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestLogGeneratesID(t *testing.T) {
	store := setupStore(t)

	e, err := store.Log(context.Background(), Entry{Action: ActionDecide, Summary: "archive"})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if e.ID == "" {
		t.Error("expected generated ID, got empty string")
	}
}

func TestQueryFilterByAction(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, a := range []Action{ActionDecide, ActionReviewNeeded, ActionDecide} {
		if _, err := store.Log(ctx, Entry{Action: a}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{Action: ActionDecide})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 DECIDE entries, got %d", len(entries))
	}
}

func TestQueryFilterByEntity(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, id := range []string{"dec-1", "dec-2", "dec-1"} {
		if _, err := store.Log(ctx, Entry{Action: ActionDecide, EntityType: EntityDecision, EntityID: id}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{EntityType: EntityDecision, EntityID: "dec-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries for dec-1, got %d", len(entries))
	}
}

func TestQueryOrderAndWindow(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		if _, err := store.Log(ctx, Entry{
			ID:        string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Action:    ActionDecide,
		}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "e" || entries[1].ID != "d" {
		t.Errorf("expected newest first [e d], got %v", ids(entries))
	}

	entries, err = store.Query(ctx, QueryFilter{Offset: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries after offset, got %d", len(entries))
	}

	since := base.Add(2 * time.Hour)
	entries, err = store.Query(ctx, QueryFilter{Since: &since})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries since 02:00, got %d", len(entries))
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestCountByAction(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, a := range []Action{ActionFlagHuman, ActionReviewNeeded, ActionReviewNeeded} {
		if _, err := store.Log(ctx, Entry{Action: a}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	counts, err := store.CountByAction(ctx)
	if err != nil {
		t.Fatalf("CountByAction: %v", err)
	}
	if counts[ActionReviewNeeded] != 2 || counts[ActionFlagHuman] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDeleteBefore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for range 3 {
		if _, err := store.Log(ctx, Entry{Action: ActionDecide}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	deleted, err := store.DeleteBefore(ctx, time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupStore(t)

	got, err := store.GetByID(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for nonexistent ID, got %+v", got)
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Store) {
	t.Helper()
	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)
	return r, store
}

func TestHTTPGetByID(t *testing.T) {
	r, store := setupRouter(t)

	if _, err := store.Log(context.Background(), Entry{ID: "http-1", Action: ActionFlagHuman}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/actions/http-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "http-1" || got.Action != ActionFlagHuman {
		t.Errorf("got %+v", got)
	}
}

func TestHTTPGetByIDNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/actions/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHTTPQueryWithFilter(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()

	for _, a := range []Action{ActionDecide, ActionCreateTask, ActionDecide} {
		if _, err := store.Log(ctx, Entry{Action: a}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/actions?action=DECIDE&limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var entries []Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}
