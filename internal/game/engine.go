// internal/game/engine.go
//
// Turn coordinator for one Word Duel replica.
// Responsibilities:
//   - Apply local commands (create, join, submit, leave) to this replica's
//     copy of the match and emit at most one outbound message per command.
//   - Apply inbound peer messages, guarding against stale rounds, duplicate
//     submissions and snapshots from matches this replica already left.
//   - Resolve rounds on the host: score both words, accumulate scores, append
//     history, advance the round counter and broadcast the result snapshot.
//
// Notes:
//   - Role is derived per event by comparing the replica identity with the
//     match's HostID; there is no separate host/guest type.
//   - Every command or message is applied under one mutex, start to finish.
//   - Outbound messages go through a Messenger whose Send must not block on
//     the peer; delivery results come back later as inbound messages.
//   - Precondition failures return sentinel errors and leave state untouched.
package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/words"
)

var (
	ErrNoMatch          = errors.New("match not found")
	ErrMatchNotActive   = errors.New("match not active")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadySubmitted = errors.New("already submitted this round")
	ErrWordTooShort     = errors.New("word must be at least 3 letters")
	ErrNotHost          = errors.New("only the host can accept joins")
	ErrNotJoinable      = errors.New("match not joinable")
	ErrMatchFull        = errors.New("match full")
	ErrInvalidHost      = errors.New("invalid host identity")
	ErrMisaddressed     = errors.New("message addressed to another replica")
	ErrUnknownMessage   = errors.New("unknown message kind")
)

// Messenger delivers envelopes to the replica named in Envelope.To.
type Messenger interface {
	Send(ctx context.Context, env Envelope) error
}

// Persister stores the replica snapshot after each state change.
type Persister interface {
	Save(ctx context.Context, snap Snapshot) error
}

// Option configures a Replica.
type Option func(*Replica)

// WithClock overrides the time source used for match ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Replica) { r.now = now }
}

// WithLogger sets the replica logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Replica) { r.log = l }
}

// WithPersister enables snapshot persistence.
func WithPersister(p Persister) Option {
	return func(r *Replica) { r.persister = p }
}

// WithEnvelopeIDs overrides envelope id generation.
func WithEnvelopeIDs(gen func() string) Option {
	return func(r *Replica) { r.newID = gen }
}

// Replica is one participant's copy of the match plus its local scratch state.
type Replica struct {
	mu        sync.Mutex
	id        string
	messenger Messenger
	persister Persister
	now       func() time.Time
	newID     func() string
	log       zerolog.Logger
	listeners []func(View)

	lastMatchID uint64
	match       *Match
	scratch     Scratch
	pendingJoin string // host we sent a JoinRequest to and have not heard back from
}

// NewReplica constructs a replica identified by id.
func NewReplica(id string, m Messenger, opts ...Option) *Replica {
	r := &Replica{
		id:        id,
		messenger: m,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With().Str("replica", id).Logger()
	return r
}

// ID returns the replica identity.
func (r *Replica) ID() string { return r.id }

// Restore loads a persisted snapshot. Call before serving traffic.
func (r *Replica) Restore(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.match = snap.Match.Clone()
	r.scratch = snap.Scratch
	r.pendingJoin = snap.PendingJoin
	if r.match != nil {
		if n, err := strconv.ParseUint(r.match.MatchID, 10, 64); err == nil {
			r.lastMatchID = n
		}
	}
}

// OnChange registers a listener called after every state change.
// Listeners run while the replica is locked and must not block or call back in.
func (r *Replica) OnChange(fn func(View)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// View returns the current read-only projection.
func (r *Replica) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

// Snapshot returns the current persisted form.
func (r *Replica) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// ------------------------------ commands -----------------------------------

// CreateMatch starts a new match with this replica as host, replacing any
// match it held before. totalRounds is clamped to [MinRounds, MaxRounds].
func (r *Replica) CreateMatch(ctx context.Context, displayName string, totalRounds int) *Match {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.match != nil {
		r.log.Warn().Str("matchId", r.match.MatchID).Msg("create overwrites existing match")
	}

	id := r.allocMatchID()
	m := &Match{
		MatchID:      strconv.FormatUint(id, 10),
		HostID:       r.id,
		Status:       StatusWaitingForPlayer,
		Players:      []Player{{ID: r.id, Name: strings.TrimSpace(displayName)}},
		Letters:      words.LettersForMatch(id),
		TotalRounds:  clampRounds(totalRounds),
		CurrentRound: 1,
		RoundPhase:   PhaseHostToPlay,
		History:      []RoundRecord{},
	}
	r.match = m
	r.scratch = Scratch{}
	r.pendingJoin = ""
	r.log.Info().Str("matchId", m.MatchID).Str("letters", m.Letters).Uint32("rounds", m.TotalRounds).Msg("match created")
	r.commit(ctx)
	return m.Clone()
}

// JoinMatch asks hostID to seat this replica. The only local effect is
// remembering the pending join, so only that host's InitialStateSync is adopted.
func (r *Replica) JoinMatch(ctx context.Context, hostID, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hostID = NormalizeIdentity(hostID)
	if hostID == "" || hostID == r.id {
		return ErrInvalidHost
	}
	env := r.envelope(hostID, "", JoinRequest{RequesterID: r.id, DisplayName: strings.TrimSpace(displayName)})
	if err := r.messenger.Send(ctx, env); err != nil {
		return fmt.Errorf("send join request: %w", err)
	}
	r.pendingJoin = hostID
	r.log.Info().Str("host", hostID).Msg("join requested")
	r.commit(ctx)
	return nil
}

// SubmitWord stages this replica's word for the current round.
//
// Host: records HostWord, hands the turn to the guest and sends the word.
// Guest: keeps the word in scratch only and sends it to the host; the round
// advances when the host's RoundSync arrives.
func (r *Replica) SubmitWord(ctx context.Context, word string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.match
	if m == nil {
		return ErrNoMatch
	}
	if !m.Playable() {
		return ErrMatchNotActive
	}
	word = NormalizeWord(word)
	if utf8.RuneCountInString(word) < MinWordLength {
		return ErrWordTooShort
	}
	opp, ok := m.Opponent(r.id)
	if !ok {
		return ErrMatchNotActive
	}

	if m.IsHost(r.id) {
		if m.RoundPhase != PhaseHostToPlay {
			return ErrNotYourTurn
		}
		if r.scratch.MyWord != "" {
			return ErrAlreadySubmitted
		}
		r.scratch.MyWord = word
		m.HostWord = word
		m.RoundPhase = PhaseGuestToPlay
	} else {
		if m.RoundPhase != PhaseGuestToPlay {
			return ErrNotYourTurn
		}
		if r.scratch.MyWord != "" {
			return ErrAlreadySubmitted
		}
		r.scratch.MyWord = word
	}

	r.log.Info().Str("matchId", m.MatchID).Uint32("round", m.CurrentRound).Str("word", word).Msg("word submitted")
	r.commit(ctx)
	r.send(ctx, opp.ID, m.MatchID, WordSubmitted{Round: m.CurrentRound, Word: word})
	return nil
}

// LeaveMatch discards the local match unconditionally, telling the opponent
// when one is seated. Delivery failures do not matter locally.
func (r *Replica) LeaveMatch(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m := r.match; m != nil {
		if opp, ok := m.Opponent(r.id); ok {
			r.send(ctx, opp.ID, m.MatchID, LeaveNotice{SenderID: r.id})
		}
		r.log.Info().Str("matchId", m.MatchID).Msg("left match")
	}
	r.match = nil
	r.scratch = Scratch{}
	r.pendingJoin = ""
	r.commit(ctx)
}

// ------------------------------ messages -----------------------------------

// Deliver applies one inbound envelope.
//
// Precondition failures (not host, match full, ...) return errors with no
// mutation. Stale or duplicate messages are expected races and return nil.
func (r *Replica) Deliver(ctx context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if env.To != "" && env.To != r.id {
		return ErrMisaddressed
	}
	switch msg := env.Message.(type) {
	case JoinRequest:
		return r.onJoinRequest(ctx, env, msg)
	case InitialStateSync:
		r.onInitialStateSync(ctx, env, msg)
	case WordSubmitted:
		r.onWordSubmitted(ctx, env, msg)
	case RoundSync:
		r.onRoundSync(ctx, env, msg)
	case LeaveNotice:
		r.onLeaveNotice(ctx, env)
	default:
		return ErrUnknownMessage
	}
	return nil
}

func (r *Replica) onJoinRequest(ctx context.Context, env Envelope, msg JoinRequest) error {
	m := r.match
	if m == nil {
		return ErrNoMatch
	}
	if !m.IsHost(r.id) {
		return ErrNotHost
	}
	if m.Status != StatusWaitingForPlayer {
		return ErrNotJoinable
	}
	if len(m.Players) >= 2 {
		return ErrMatchFull
	}
	requester := msg.RequesterID
	if requester == "" {
		requester = env.From
	}
	if requester == "" || requester == r.id {
		return ErrInvalidHost
	}

	m.Players = append(m.Players, Player{ID: requester, Name: msg.DisplayName})
	m.Status = StatusActive
	r.scratch.resetRound()
	r.scratch.LastNotification = "Player joined"
	r.log.Info().Str("matchId", m.MatchID).Str("guest", requester).Msg("player joined")
	r.commit(ctx)
	r.send(ctx, requester, m.MatchID, InitialStateSync{Game: m.Clone()})
	return nil
}

func (r *Replica) onInitialStateSync(ctx context.Context, env Envelope, msg InitialStateSync) {
	g := msg.Game
	switch {
	case g == nil:
		r.drop(env, "empty snapshot")
		return
	case r.pendingJoin == "" || r.pendingJoin != env.From:
		r.drop(env, "no pending join to sender")
		return
	case g.HostID != env.From:
		r.drop(env, "snapshot host is not sender")
		return
	}
	if _, seated := g.Opponent(g.HostID); !seated || !containsPlayer(g, r.id) {
		r.drop(env, "snapshot does not seat this replica")
		return
	}

	r.match = g.Clone()
	r.scratch.resetRound()
	r.scratch.LastNotification = "Match ready"
	r.pendingJoin = ""
	r.log.Info().Str("matchId", g.MatchID).Str("letters", g.Letters).Msg("joined match")
	r.commit(ctx)
}

func (r *Replica) onWordSubmitted(ctx context.Context, env Envelope, msg WordSubmitted) {
	m := r.match
	switch {
	case m == nil || !m.Playable():
		r.drop(env, "match not active")
		return
	case env.MatchID != "" && env.MatchID != m.MatchID:
		r.drop(env, "other match")
		return
	case msg.Round != m.CurrentRound:
		r.drop(env, "stale round")
		return
	}
	if opp, _ := m.Opponent(r.id); env.From != "" && env.From != opp.ID {
		r.drop(env, "sender is not the opponent")
		return
	}
	word := NormalizeWord(msg.Word)

	if m.IsHost(r.id) {
		if m.GuestWord != "" {
			r.drop(env, "guest word already recorded")
			return
		}
		if m.RoundPhase != PhaseGuestToPlay {
			r.drop(env, "guest played out of turn")
			return
		}
		r.resolveRound(ctx, word)
		return
	}

	if m.HostWord != "" {
		r.drop(env, "host word already recorded")
		return
	}
	m.HostWord = word
	m.RoundPhase = PhaseGuestToPlay
	r.scratch.OpponentWord = word
	r.commit(ctx)
}

// resolveRound scores the round on the host and broadcasts the result.
func (r *Replica) resolveRound(ctx context.Context, guestWord string) {
	m := r.match
	m.GuestWord = guestWord
	r.scratch.OpponentWord = guestWord

	hostWord := m.HostWord
	if hostWord == "" {
		hostWord = r.scratch.MyWord
	}
	hostPoints := ScoreWord(m.Letters, hostWord)
	guestPoints := ScoreWord(m.Letters, guestWord)
	m.HostScore = saturatingAdd(m.HostScore, hostPoints)
	m.GuestScore = saturatingAdd(m.GuestScore, guestPoints)

	m.appendHistory(RoundRecord{
		Round:           m.CurrentRound,
		HostWord:        hostWord,
		GuestWord:       guestWord,
		HostPoints:      hostPoints,
		GuestPoints:     guestPoints,
		HostScoreAfter:  m.HostScore,
		GuestScoreAfter: m.GuestScore,
		Timestamp:       r.now().UTC(),
	})

	m.CurrentRound = saturatingAdd(m.CurrentRound, 1)
	m.HostWord = ""
	m.GuestWord = ""

	if m.CurrentRound > m.TotalRounds {
		m.Status = StatusEnded
		m.RoundPhase = PhaseRoundComplete
		m.WinnerID = winnerOf(m)
		r.scratch.LastNotification = "Match ended"
	} else {
		m.RoundPhase = PhaseHostToPlay
		r.scratch.LastNotification = fmt.Sprintf("Round %d resolved", m.CurrentRound-1)
	}
	r.scratch.resetRound()

	r.log.Info().
		Str("matchId", m.MatchID).
		Uint32("round", m.CurrentRound-1).
		Uint32("hostPoints", hostPoints).
		Uint32("guestPoints", guestPoints).
		Str("status", string(m.Status)).
		Msg("round resolved")
	r.commit(ctx)

	if guest, ok := m.Guest(); ok {
		r.send(ctx, guest.ID, m.MatchID, RoundSync{Game: m.Clone()})
	}
}

func (r *Replica) onRoundSync(ctx context.Context, env Envelope, msg RoundSync) {
	m, g := r.match, msg.Game
	switch {
	case g == nil:
		r.drop(env, "empty snapshot")
		return
	case m == nil:
		r.drop(env, "no local match")
		return
	case m.IsHost(r.id):
		r.drop(env, "host does not adopt snapshots")
		return
	case g.MatchID != m.MatchID || (env.MatchID != "" && env.MatchID != m.MatchID):
		r.drop(env, "snapshot for another match")
		return
	case env.From != m.HostID || g.HostID != m.HostID:
		r.drop(env, "snapshot not from host")
		return
	}

	r.match = g.Clone()
	r.scratch.resetRound()
	if g.Status == StatusEnded {
		r.scratch.LastNotification = "Match ended"
	}
	r.commit(ctx)
}

func (r *Replica) onLeaveNotice(ctx context.Context, env Envelope) {
	if m := r.match; m != nil && env.MatchID != "" && env.MatchID != m.MatchID {
		r.drop(env, "notice for another match")
		return
	}
	r.match = nil
	r.scratch = Scratch{LastNotification: "Opponent left"}
	if r.pendingJoin == env.From {
		r.pendingJoin = ""
	}
	r.log.Info().Str("from", env.From).Msg("opponent left")
	r.commit(ctx)
}

// ------------------------------- helpers -----------------------------------

// NormalizeIdentity trims spaces and trailing slashes so a typed base URL
// compares equal to the identity a replica advertises.
func NormalizeIdentity(id string) string {
	return strings.TrimRight(strings.TrimSpace(id), "/")
}

// envelope wraps msg for delivery to "to".
func (r *Replica) envelope(to, matchID string, msg Message) Envelope {
	return Envelope{ID: r.newID(), From: r.id, To: to, MatchID: matchID, Message: msg}
}

// send dispatches msg; failures are logged because the local transition already happened.
func (r *Replica) send(ctx context.Context, to, matchID string, msg Message) {
	env := r.envelope(to, matchID, msg)
	if err := r.messenger.Send(ctx, env); err != nil {
		r.log.Error().Err(err).Str("kind", string(msg.Kind())).Str("to", to).Msg("send failed")
	}
}

func (r *Replica) drop(env Envelope, reason string) {
	kind := MessageKind("")
	if env.Message != nil {
		kind = env.Message.Kind()
	}
	r.log.Debug().Str("kind", string(kind)).Str("from", env.From).Str("matchId", env.MatchID).Str("reason", reason).Msg("message ignored")
}

// commit persists the new state and notifies listeners.
func (r *Replica) commit(ctx context.Context) {
	if r.persister != nil {
		if err := r.persister.Save(ctx, r.snapshotLocked()); err != nil {
			r.log.Warn().Err(err).Msg("persist snapshot")
		}
	}
	if len(r.listeners) == 0 {
		return
	}
	v := r.viewLocked()
	for _, fn := range r.listeners {
		fn(v)
	}
}

func (r *Replica) snapshotLocked() Snapshot {
	return Snapshot{ReplicaID: r.id, Match: r.match.Clone(), Scratch: r.scratch, PendingJoin: r.pendingJoin}
}

func (r *Replica) viewLocked() View {
	return NewView(r.id, r.match.Clone(), r.scratch, r.pendingJoin)
}

// allocMatchID returns a time-derived id strictly greater than the last one.
func (r *Replica) allocMatchID() uint64 {
	id := uint64(r.now().UnixMicro())
	if id <= r.lastMatchID {
		id = r.lastMatchID + 1
	}
	r.lastMatchID = id
	return id
}

func clampRounds(n int) uint32 {
	if n < MinRounds {
		return MinRounds
	}
	if n > MaxRounds {
		return MaxRounds
	}
	return uint32(n)
}

func winnerOf(m *Match) string {
	switch {
	case m.HostScore > m.GuestScore:
		return m.HostID
	case m.GuestScore > m.HostScore:
		guest, _ := m.Guest()
		return guest.ID
	default:
		return ""
	}
}

func containsPlayer(m *Match, id string) bool {
	for _, p := range m.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}
