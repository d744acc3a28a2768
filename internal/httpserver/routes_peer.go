// internal/httpserver/routes_peer.go
//
// POST /peer/inbox accepts one envelope from the opponent replica.
//
// Replies:
//   - 202 applied, or ignored as stale/duplicate
//   - 400 malformed or misaddressed envelope
//   - 401 missing/invalid peer token, or token subject != envelope.from
//   - 409 precondition failure (not host, match full, ...)

package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/wordduel/internal/game"
	"github.com/robalobadob/wordduel/internal/transport"
)

func (s *Server) mountPeer(r chi.Router) {
	r.Post(transport.InboxPath, s.handleInbox)
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	sub, err := transport.VerifyPeerToken([]byte(s.cfg.PeerSecret), bearer(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_peer_token")
		return
	}

	var env game.Envelope
	if err := decodeJSON(r, &env); err != nil {
		s.log.Debug().Err(err).Str("from", sub).Msg("malformed envelope")
		writeError(w, http.StatusBadRequest, "bad_envelope")
		return
	}
	if env.From != sub {
		writeError(w, http.StatusUnauthorized, "sender_mismatch")
		return
	}

	if err := s.replica.Deliver(r.Context(), env); err != nil {
		status, code := inboxStatus(err)
		s.log.Info().Err(err).Str("kind", string(env.Message.Kind())).Str("from", env.From).Str("matchId", env.MatchID).Msg("envelope rejected")
		writeError(w, status, code)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// inboxStatus maps Deliver errors. Unlike commands, a missing match here is
// a precondition failure on the sender's side.
func inboxStatus(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrMisaddressed):
		return http.StatusBadRequest, "misaddressed"
	case errors.Is(err, game.ErrUnknownMessage):
		return http.StatusBadRequest, "unknown_kind"
	}
	_, code := commandStatus(err)
	return http.StatusConflict, code
}
