package decision

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts analysis and decision endpoints on the given router.
func RegisterRoutes(r chi.Router, engine *Engine) {
	r.Get("/api/analyses", handleAnalyses(engine.Analyses()))
	r.Get("/api/decisions/{id}", handleDecision(engine.Decisions()))
	r.Get("/api/events/{id}/decisions", handleEventDecisions(engine.Decisions()))
}

func handleAnalyses(store *AnalysisStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := r.URL.Query().Get("event_id")
		if eventID == "" {
			http.Error(w, "event_id is required", http.StatusBadRequest)
			return
		}
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		analyses, err := store.ForEvent(r.Context(), eventID, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if analyses == nil {
			analyses = []Analysis{}
		}
		writeJSON(w, http.StatusOK, analyses)
	}
}

func handleDecision(store *DecisionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if d == nil {
			http.Error(w, "decision not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func handleEventDecisions(store *DecisionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := store.ForEvent(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if ds == nil {
			ds = []Decision{}
		}
		writeJSON(w, http.StatusOK, ds)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
