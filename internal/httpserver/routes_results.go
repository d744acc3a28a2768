// internal/httpserver/routes_results.go
//
// Results ledger:
//   - GET /results?limit=N  → most recent finished matches (default 20, max 100)
//   - GET /results/summary  → played / wins / losses / draws

package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
)

func (s *Server) mountResults(r chi.Router) {
	r.Get("/results", s.handleResults)
	r.Get("/results/summary", s.handleSummary)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	limit := defaultResultsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_limit")
			return
		}
		limit = min(n, maxResultsLimit)
	}
	rows, err := s.results.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list results")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.results.Summary(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("results summary")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
