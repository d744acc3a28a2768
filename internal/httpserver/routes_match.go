// internal/httpserver/routes_match.go
//
// Operator routes for the local participant:
//   - POST /match         → create a match and host it
//   - POST /match/join    → ask a host replica to seat us
//   - POST /match/word    → submit this round's word
//   - POST /match/leave   → abandon the current match
//   - GET  /match         → current view
//   - GET  /match/history → resolved rounds, oldest first

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountMatch(r chi.Router) {
	r.Get("/match", s.handleView)
	r.Get("/match/history", s.handleHistory)

	r.Group(func(r chi.Router) {
		r.Use(s.requireOperator)
		r.Post("/match", s.handleCreate)
		r.Post("/match/join", s.handleJoin)
		r.Post("/match/word", s.handleWord)
		r.Post("/match/leave", s.handleLeave)
	})
}

type createReq struct {
	DisplayName string `json:"displayName"`
	TotalRounds int    `json:"totalRounds"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	s.replica.CreateMatch(r.Context(), req.DisplayName, req.TotalRounds)
	writeJSON(w, http.StatusCreated, s.replica.View())
}

type joinReq struct {
	HostID      string `json:"hostId"`
	DisplayName string `json:"displayName"`
}

// handleJoin only sends the request; the match shows up in the view once
// the host's InitialStateSync arrives.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	if err := s.replica.JoinMatch(r.Context(), req.HostID, req.DisplayName); err != nil {
		status, code := commandStatus(err)
		writeError(w, status, code)
		return
	}
	writeJSON(w, http.StatusAccepted, s.replica.View())
}

type wordReq struct {
	Word string `json:"word"`
}

func (s *Server) handleWord(w http.ResponseWriter, r *http.Request) {
	var req wordReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	if err := s.replica.SubmitWord(r.Context(), req.Word); err != nil {
		status, code := commandStatus(err)
		writeError(w, status, code)
		return
	}
	writeJSON(w, http.StatusOK, s.replica.View())
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	s.replica.LeaveMatch(r.Context())
	writeJSON(w, http.StatusOK, s.replica.View())
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.replica.View())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.replica.View().History())
}
