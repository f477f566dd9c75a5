package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/eventmind/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestCreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, Task{
		Title:         "Review Q1 budget",
		Description:   "CFO asked for a review",
		Priority:      "p1",
		SourceEventID: "gmail-abc",
		DecisionID:    "dec-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Error("expected non-empty ID")
	}
	if created.Status != StatusOpen {
		t.Errorf("expected status open, got %s", created.Status)
	}
	if created.Priority != P1 {
		t.Errorf("expected priority P1, got %s", created.Priority)
	}

	fetched, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Title != "Review Q1 budget" || fetched.SourceEventID != "gmail-abc" {
		t.Errorf("unexpected task: %+v", fetched)
	}
}

func TestParsePriority(t *testing.T) {
	tests := map[string]Priority{
		"P0": P0, "high": P1, " p2 ": P2, "P4": P3, "low": P3, "": P2, "whenever": P2,
	}
	for in, want := range tests {
		if got := ParsePriority(in); got != want {
			t.Errorf("ParsePriority(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestGetNotFound(t *testing.T) {
	store := setupTestStore(t)
	got, err := store.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestUpdateStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created, _ := store.Create(ctx, Task{Title: "Call dentist"})

	if err := store.UpdateStatus(ctx, created.ID, StatusInProgress); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	fetched, _ := store.GetByID(ctx, created.ID)
	if fetched.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", fetched.Status)
	}

	if err := store.UpdateStatus(ctx, created.ID, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "nope", StatusDone); err == nil {
		t.Error("expected error for missing task")
	}
}

func TestListOrderAndFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, tk := range []Task{
		{Title: "low", Priority: P3},
		{Title: "urgent", Priority: P0},
		{Title: "normal", Priority: P2, SourceEventID: "evt-1"},
	} {
		if _, err := store.Create(ctx, tk); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := store.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Title != "urgent" || all[2].Title != "low" {
		t.Errorf("unexpected order: %+v", all)
	}

	byEvent, _ := store.List(ctx, ListFilter{SourceEventID: "evt-1"})
	if len(byEvent) != 1 || byEvent[0].Title != "normal" {
		t.Errorf("unexpected filter result: %+v", byEvent)
	}

	page, _ := store.List(ctx, ListFilter{Offset: 1})
	if len(page) != 2 {
		t.Errorf("expected 2 tasks after offset, got %d", len(page))
	}
}

func TestCountByStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a, _ := store.Create(ctx, Task{Title: "a"})
	store.Create(ctx, Task{Title: "b"})
	c, _ := store.Create(ctx, Task{Title: "c"})
	store.UpdateStatus(ctx, a.ID, StatusInProgress)
	store.UpdateStatus(ctx, c.ID, StatusDone)

	n, _, err := store.Workload(ctx)
	if err != nil {
		t.Fatalf("Workload: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 unfinished tasks, got %d", n)
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[StatusOpen] != 1 || counts[StatusInProgress] != 1 || counts[StatusDone] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func setupTestRouter(t *testing.T) (*chi.Mux, *Store) {
	t.Helper()
	store := setupTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)
	return r, store
}

func TestHTTPCreateAndList(t *testing.T) {
	r, _ := setupTestRouter(t)

	body := `{"title": "Book flights", "priority": "P1"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks?status=open", nil))
	var list []Task
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Book flights" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestHTTPCreateRequiresTitle(t *testing.T) {
	r, _ := setupTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHTTPUpdateStatus(t *testing.T) {
	r, store := setupTestRouter(t)
	created, _ := store.Create(context.Background(), Task{Title: "x"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/tasks/"+created.ID+"/status", strings.NewReader(`{"status":"done"}`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/tasks/"+created.ID+"/status", strings.NewReader(`{"status":"bogus"}`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestWorkload(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	open, high, err := store.Workload(ctx)
	if err != nil || open != 0 || high != 0 {
		t.Fatalf("empty store: open=%d high=%d err=%v", open, high, err)
	}

	store.Create(ctx, Task{Title: "outage", Priority: P0})
	store.Create(ctx, Task{Title: "review", Priority: P1})
	store.Create(ctx, Task{Title: "tidy", Priority: P3})
	done, _ := store.Create(ctx, Task{Title: "shipped", Priority: P1})
	store.UpdateStatus(ctx, done.ID, StatusDone)

	open, high, err = store.Workload(ctx)
	if err != nil {
		t.Fatalf("Workload: %v", err)
	}
	if open != 3 || high != 2 {
		t.Errorf("open=%d high=%d, want 3 and 2", open, high)
	}
}
