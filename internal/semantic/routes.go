package semantic

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts search and similarity endpoints on the given router.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/api/search", handleSearch(svc))
	r.Get("/api/events/{id}/similar", handleSimilar(svc))
	r.Get("/api/events/{id}/links", handleLinks(svc))
}

func handleSearch(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		query := Query{
			Text:   q.Get("q"),
			Source: q.Get("source"),
		}
		if query.Text == "" {
			http.Error(w, "q is required", http.StatusBadRequest)
			return
		}
		if v := q.Get("top_k"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "invalid top_k", http.StatusBadRequest)
				return
			}
			query.TopK = n
		}
		if v := q.Get("days_back"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "invalid days_back", http.StatusBadRequest)
				return
			}
			query.DaysBack = n
		}
		if v := q.Get("min_similarity"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				http.Error(w, "invalid min_similarity", http.StatusBadRequest)
				return
			}
			query.MinSimilarity = &f
		}

		matches, err := svc.Search(r.Context(), query)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"query":   query.Text,
			"results": matches,
		})
	}
}

func handleSimilar(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topK := 0
		if v := r.URL.Query().Get("top_k"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "invalid top_k", http.StatusBadRequest)
				return
			}
			topK = n
		}

		matches, err := svc.FindSimilar(r.Context(), chi.URLParam(r, "id"), topK)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

func handleLinks(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		links, err := svc.Store().LinksFrom(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if links == nil {
			links = []Link{}
		}
		writeJSON(w, http.StatusOK, links)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
