package game

// View is the read-only projection of a replica served to the local participant.
type View struct {
	Identity         string       `json:"identity"`
	Match            *Match       `json:"match"`
	IsHost           bool         `json:"isHost"`
	OpponentID       string       `json:"opponentId,omitempty"`
	OpponentName     string       `json:"opponentName,omitempty"`
	MyScore          uint32       `json:"myScore"`
	OpponentScore    uint32       `json:"opponentScore"`
	MyWord           string       `json:"myWord,omitempty"`
	OpponentWord     string       `json:"opponentWord,omitempty"`
	LastRound        *RoundRecord `json:"lastRound,omitempty"`
	LastNotification string       `json:"lastNotification,omitempty"`
	PendingJoin      string       `json:"pendingJoin,omitempty"`
}

// NewView projects match and scratch state onto identity's point of view.
func NewView(identity string, m *Match, s Scratch, pendingJoin string) View {
	v := View{
		Identity:         identity,
		Match:            m,
		MyWord:           s.MyWord,
		OpponentWord:     s.OpponentWord,
		LastNotification: s.LastNotification,
		PendingJoin:      pendingJoin,
	}
	if m == nil {
		return v
	}
	v.IsHost = m.IsHost(identity)
	if opp, ok := m.Opponent(identity); ok {
		v.OpponentID, v.OpponentName = opp.ID, opp.Name
	}
	if v.IsHost {
		v.MyScore, v.OpponentScore = m.HostScore, m.GuestScore
	} else {
		v.MyScore, v.OpponentScore = m.GuestScore, m.HostScore
	}
	if n := len(m.History); n > 0 {
		last := m.History[n-1]
		v.LastRound = &last
	}
	return v
}

// History returns the resolved rounds, oldest first.
func (v View) History() []RoundRecord {
	if v.Match == nil {
		return []RoundRecord{}
	}
	return v.Match.History
}
