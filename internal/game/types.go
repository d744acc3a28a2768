// internal/game/types.go
//
// Core type definitions for a Word Duel match.
// Defines:
//   - MatchStatus / RoundPhase: lifecycle and per-round turn markers.
//   - Player, RoundRecord: seated participants and resolved-round history.
//   - Match: the replicated match state both replicas keep a copy of.
//   - Scratch: per-replica staging fields that are never sent to the peer.
//   - Snapshot: what a replica persists between restarts.

package game

import "time"

// MatchStatus is the lifecycle stage of a match.
type MatchStatus string

const (
	StatusWaitingForPlayer MatchStatus = "waiting_for_player"
	StatusActive           MatchStatus = "active"
	StatusEnded            MatchStatus = "ended"
)

// RoundPhase says whose turn it is inside the current round.
type RoundPhase string

const (
	PhaseHostToPlay    RoundPhase = "host_to_play"
	PhaseGuestToPlay   RoundPhase = "guest_to_play"
	PhaseRoundComplete RoundPhase = "round_complete"
)

const (
	MinRounds     = 1
	MaxRounds     = 20
	MaxHistory    = 50
	MinWordLength = 3
)

// Player is a seated participant. ID is the replica identity.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoundRecord summarizes one resolved round. Scores are cumulative after the round.
type RoundRecord struct {
	Round           uint32    `json:"round"`
	HostWord        string    `json:"hostWord"`
	GuestWord       string    `json:"guestWord"`
	HostPoints      uint32    `json:"hostPoints"`
	GuestPoints     uint32    `json:"guestPoints"`
	HostScoreAfter  uint32    `json:"hostScoreAfter"`
	GuestScoreAfter uint32    `json:"guestScoreAfter"`
	Timestamp       time.Time `json:"timestamp"`
}

// Match is the replicated state of one duel.
//
// HostWord/GuestWord are payload only ("" = absent); RoundPhase alone decides
// whose turn it is. WinnerID is meaningful only once Status is StatusEnded,
// where "" encodes a draw.
type Match struct {
	MatchID      string        `json:"matchId"`
	HostID       string        `json:"hostId"`
	Status       MatchStatus   `json:"status"`
	Players      []Player      `json:"players"`
	Letters      string        `json:"letters"`
	TotalRounds  uint32        `json:"totalRounds"`
	CurrentRound uint32        `json:"currentRound"`
	HostScore    uint32        `json:"hostScore"`
	GuestScore   uint32        `json:"guestScore"`
	RoundPhase   RoundPhase    `json:"roundPhase"`
	HostWord     string        `json:"hostWord,omitempty"`
	GuestWord    string        `json:"guestWord,omitempty"`
	WinnerID     string        `json:"winnerId"`
	History      []RoundRecord `json:"history"`
}

// IsHost reports whether identity owns the host seat.
func (m *Match) IsHost(identity string) bool {
	return m != nil && m.HostID == identity
}

// Opponent returns the seated player that is not identity.
func (m *Match) Opponent(identity string) (Player, bool) {
	if m == nil {
		return Player{}, false
	}
	for _, p := range m.Players {
		if p.ID != identity {
			return p, true
		}
	}
	return Player{}, false
}

// Guest returns the non-host seat, if filled.
func (m *Match) Guest() (Player, bool) {
	if m == nil {
		return Player{}, false
	}
	return m.Opponent(m.HostID)
}

// Playable reports whether words may be exchanged.
func (m *Match) Playable() bool {
	return m != nil && m.Status == StatusActive && len(m.Players) == 2
}

// IsDraw reports an ended match without a winner.
func (m *Match) IsDraw() bool {
	return m != nil && m.Status == StatusEnded && m.WinnerID == ""
}

// Clone returns a deep copy so snapshots handed out or sent never alias live state.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Players = append([]Player(nil), m.Players...)
	c.History = append([]RoundRecord(nil), m.History...)
	return &c
}

// appendHistory adds rec and evicts the oldest entries beyond MaxHistory.
func (m *Match) appendHistory(rec RoundRecord) {
	m.History = append(m.History, rec)
	if excess := len(m.History) - MaxHistory; excess > 0 {
		m.History = append([]RoundRecord(nil), m.History[excess:]...)
	}
}

// Scratch is local-only round staging. It resets every round.
type Scratch struct {
	MyWord           string `json:"myWord,omitempty"`
	OpponentWord     string `json:"opponentWord,omitempty"`
	LastNotification string `json:"lastNotification,omitempty"`
}

// resetRound clears the per-round words but keeps the notification.
func (s *Scratch) resetRound() {
	s.MyWord = ""
	s.OpponentWord = ""
}

// Snapshot is the persisted form of one replica.
type Snapshot struct {
	ReplicaID   string  `json:"replicaId"`
	Match       *Match  `json:"match,omitempty"`
	Scratch     Scratch `json:"scratch"`
	PendingJoin string  `json:"pendingJoin,omitempty"`
}

// saturatingAdd adds without wrapping past the uint32 ceiling.
func saturatingAdd(a, b uint32) uint32 {
	if s := a + b; s >= a {
		return s
	}
	return ^uint32(0)
}
