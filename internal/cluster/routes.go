package cluster

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts cluster endpoints. lock is shared with any scheduler
// running the same engine so only one run is in flight.
func RegisterRoutes(r chi.Router, engine *Engine, lock *sync.Mutex) {
	r.Post("/api/clusters/run", handleRun(engine, lock))
	r.Get("/api/clusters", handleList(engine.Store()))
	r.Get("/api/events/{id}/tags", handleTags(engine.Store()))
}

func handleRun(engine *Engine, lock *sync.Mutex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !lock.TryLock() {
			http.Error(w, "clustering already running", http.StatusConflict)
			return
		}
		defer lock.Unlock()

		res, err := engine.Run(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clusters, err := store.List(r.Context(), r.URL.Query().Get("namespace"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if clusters == nil {
			clusters = []Cluster{}
		}
		writeJSON(w, http.StatusOK, clusters)
	}
}

func handleTags(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := store.TagsForEvent(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if tags == nil {
			tags = []Tag{}
		}
		writeJSON(w, http.StatusOK, tags)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
