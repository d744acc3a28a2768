// internal/httpserver/server.go
//
// HTTP server wiring for one Word Duel replica.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Operator endpoints: /match commands and views, /results, /auth/*.
//   - Peer endpoint: POST /peer/inbox, authenticated with a signed peer token.
//   - Live view feed: GET /match/ws (websocket).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Command routes require an operator session only when an operator
//     password hash is configured.
//   - The websocket route sits outside the handler timeout.

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/config"
	"github.com/robalobadob/wordduel/internal/game"
	"github.com/robalobadob/wordduel/internal/results"
	"github.com/robalobadob/wordduel/internal/transport"
)

const (
	handlerTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Server bundles the router, the replica it fronts and the results ledger.
type Server struct {
	r       *chi.Mux
	cfg     config.Config
	replica *game.Replica
	results *results.Store
	hub     *Hub
	log     zerolog.Logger
}

// New constructs a Server, installs middleware, and registers routes.
// It also subscribes the websocket hub to replica changes.
func New(cfg config.Config, rep *game.Replica, res *results.Store, log zerolog.Logger) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     cfg,
		replica: rep,
		results: res,
		hub:     NewHub(log),
		log:     log,
	}
	rep.OnChange(s.hub.Broadcast)

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(handlerTimeout))

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"service":   "wordduel",
				"replica":   s.replica.ID(),
				"endpoints": []string{"/health", "/match", "/match/history", "/match/ws", "/results", transport.InboxPath},
			})
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		})

		s.mountAuthRoutes(r)
		s.mountMatch(r)
		s.mountResults(r)
		s.mountPeer(r)
	})

	s.r.Get("/match/ws", s.handleWS)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Handler exposes the router (used by main and tests).
func (s *Server) Handler() http.Handler { return s.r }

// Close disconnects websocket clients.
func (s *Server) Close() { s.hub.Close() }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// commandStatus maps a command error onto a status and error code.
func commandStatus(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrNoMatch):
		return http.StatusNotFound, "no_match"
	case errors.Is(err, game.ErrWordTooShort):
		return http.StatusBadRequest, "word_too_short"
	case errors.Is(err, game.ErrInvalidHost):
		return http.StatusBadRequest, "invalid_host"
	case errors.Is(err, game.ErrMatchNotActive):
		return http.StatusConflict, "match_not_active"
	case errors.Is(err, game.ErrNotYourTurn):
		return http.StatusConflict, "not_your_turn"
	case errors.Is(err, game.ErrAlreadySubmitted):
		return http.StatusConflict, "already_submitted"
	case errors.Is(err, game.ErrNotHost):
		return http.StatusConflict, "not_host"
	case errors.Is(err, game.ErrNotJoinable):
		return http.StatusConflict, "not_joinable"
	case errors.Is(err, game.ErrMatchFull):
		return http.StatusConflict, "match_full"
	case errors.Is(err, transport.ErrOutboxFull), errors.Is(err, transport.ErrOutboxClosed):
		return http.StatusServiceUnavailable, "peer_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}
