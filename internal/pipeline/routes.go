package pipeline

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/eventmind/internal/event"
)

const maxEnvelopeBytes = 1 << 20

// RegisterRoutes mounts event ingest and execution endpoints on the given router.
func RegisterRoutes(r chi.Router, o *Orchestrator) {
	r.Post("/api/events", handleIngest(o))
	r.Get("/api/events", handleListEvents(o.Events()))
	r.Get("/api/events/{id}", handleGetEvent(o.Events()))
	r.Get("/api/executions", handleListExecutions(o.Executions()))
	r.Get("/api/executions/{id}", handleGetExecution(o.Executions()))
}

func handleIngest(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeBytes))
		if err != nil {
			http.Error(w, "reading body: "+err.Error(), http.StatusBadRequest)
			return
		}
		ev, err := event.Decode(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		exec, err := o.ProcessEvent(r.Context(), ev)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, exec)
	}
}

func handleListEvents(store *event.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := event.ListFilter{
			Source:      q.Get("source"),
			Unprocessed: q.Get("unprocessed") == "true",
			Limit:       50,
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			filter.Limit = n
		}
		if v := q.Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "invalid offset", http.StatusBadRequest)
				return
			}
			filter.Offset = n
		}

		events, err := store.List(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []event.Event{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func handleGetEvent(store *event.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ev, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if ev == nil {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, ev)
	}
}

func handleListExecutions(store *ExecutionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{
			EventID: q.Get("event_id"),
			Outcome: q.Get("outcome"),
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			filter.Limit = n
		}

		execs, err := store.List(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if execs == nil {
			execs = []Execution{}
		}
		writeJSON(w, http.StatusOK, execs)
	}
}

func handleGetExecution(store *ExecutionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exec, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if exec == nil {
			http.Error(w, "execution not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, exec)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
