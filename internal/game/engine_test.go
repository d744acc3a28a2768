package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

const (
	hostID  = "http://host.test"
	guestID = "http://guest.test"
)

// epoch is divisible by 8 so the first match of a duel gets the "ATRESN" set.
var epoch = time.UnixMicro(1_600_000_000_000_000)

// wire queues envelopes in send order; flush delivers them through JSON.
type wire struct {
	queue []Envelope
	down  bool
}

func (w *wire) Send(_ context.Context, env Envelope) error {
	if w.down {
		return errors.New("link down")
	}
	w.queue = append(w.queue, env)
	return nil
}

type duel struct {
	t     *testing.T
	ctx   context.Context
	net   *wire
	host  *Replica
	guest *Replica
}

func newDuel(t *testing.T, rounds int) *duel {
	t.Helper()
	d := &duel{t: t, ctx: context.Background(), net: &wire{}}
	clock := func() time.Time { return epoch }
	seq := 0
	ids := func() string { seq++; return fmt.Sprintf("env-%d", seq) }
	d.host = NewReplica(hostID, d.net, WithClock(clock), WithEnvelopeIDs(ids))
	d.guest = NewReplica(guestID, d.net, WithClock(clock), WithEnvelopeIDs(ids))

	d.host.CreateMatch(d.ctx, "Hana", rounds)
	if err := d.guest.JoinMatch(d.ctx, hostID, "Gus"); err != nil {
		t.Fatalf("join: %v", err)
	}
	d.flush()
	return d
}

func (d *duel) replica(id string) *Replica {
	switch id {
	case hostID:
		return d.host
	case guestID:
		return d.guest
	}
	d.t.Fatalf("no replica %q", id)
	return nil
}

// flush delivers every queued envelope, including ones produced while delivering.
func (d *duel) flush() {
	d.t.Helper()
	for len(d.net.queue) > 0 {
		env := d.net.queue[0]
		d.net.queue = d.net.queue[1:]
		d.deliver(env)
	}
}

func (d *duel) deliver(env Envelope) {
	d.t.Helper()
	b, err := json.Marshal(env)
	if err != nil {
		d.t.Fatalf("encode %s: %v", env.ID, err)
	}
	var decoded Envelope
	if err := json.Unmarshal(b, &decoded); err != nil {
		d.t.Fatalf("decode %s: %v", env.ID, err)
	}
	if err := d.replica(decoded.To).Deliver(d.ctx, decoded); err != nil {
		d.t.Fatalf("deliver %s to %s: %v", decoded.Message.Kind(), decoded.To, err)
	}
}

func (d *duel) play(hostWord, guestWord string) {
	d.t.Helper()
	if err := d.host.SubmitWord(d.ctx, hostWord); err != nil {
		d.t.Fatalf("host submit %q: %v", hostWord, err)
	}
	d.flush()
	if err := d.guest.SubmitWord(d.ctx, guestWord); err != nil {
		d.t.Fatalf("guest submit %q: %v", guestWord, err)
	}
	d.flush()
}

func TestCreateMatch(t *testing.T) {
	r := NewReplica(hostID, &wire{}, WithClock(func() time.Time { return epoch }))

	m := r.CreateMatch(context.Background(), " Hana ", 0)
	if m.Status != StatusWaitingForPlayer || m.RoundPhase != PhaseHostToPlay || m.CurrentRound != 1 {
		t.Fatalf("unexpected initial match: %+v", m)
	}
	if m.TotalRounds != MinRounds {
		t.Fatalf("rounds not clamped up: %d", m.TotalRounds)
	}
	if m.Letters != "ATRESN" {
		t.Fatalf("letters = %q, want ATRESN", m.Letters)
	}
	if len(m.Players) != 1 || m.Players[0].ID != hostID || m.Players[0].Name != "Hana" || !m.IsHost(hostID) {
		t.Fatalf("host not seated: %+v", m.Players)
	}

	// Same clock reading: the id must still move forward.
	m2 := r.CreateMatch(context.Background(), "Hana", 99)
	if m2.MatchID == m.MatchID {
		t.Fatal("match id reused")
	}
	if m2.TotalRounds != MaxRounds {
		t.Fatalf("rounds not clamped down: %d", m2.TotalRounds)
	}
	if m2.Letters != "EXAMPL" {
		t.Fatalf("second match letters = %q, want EXAMPL", m2.Letters)
	}
}

func TestJoinSyncsBothReplicas(t *testing.T) {
	d := newDuel(t, 3)

	hv, gv := d.host.View(), d.guest.View()
	if hv.Match.Status != StatusActive || gv.Match == nil || gv.Match.Status != StatusActive {
		t.Fatalf("expected both active: host=%+v guest=%+v", hv.Match, gv.Match)
	}
	if gv.Match.MatchID != hv.Match.MatchID || gv.Match.Letters != hv.Match.Letters {
		t.Fatal("guest adopted a different match")
	}
	if !hv.IsHost || gv.IsHost {
		t.Fatal("roles derived incorrectly")
	}
	if hv.OpponentName != "Gus" || gv.OpponentName != "Hana" {
		t.Fatalf("opponent names: %q / %q", hv.OpponentName, gv.OpponentName)
	}
	if hv.LastNotification != "Player joined" || gv.LastNotification != "Match ready" {
		t.Fatalf("notifications: %q / %q", hv.LastNotification, gv.LastNotification)
	}
	if gv.PendingJoin != "" {
		t.Fatal("pending join not cleared")
	}
}

func TestJoinAcceptsHostWithTrailingSlash(t *testing.T) {
	d := &duel{t: t, ctx: context.Background(), net: &wire{}}
	clock := func() time.Time { return epoch }
	d.host = NewReplica(hostID, d.net, WithClock(clock))
	d.guest = NewReplica(guestID, d.net, WithClock(clock))

	d.host.CreateMatch(d.ctx, "Hana", 1)
	if err := d.guest.JoinMatch(d.ctx, " "+hostID+"/ ", "Gus"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if got := d.guest.View().PendingJoin; got != hostID {
		t.Fatalf("pending join = %q, want %q", got, hostID)
	}
	if to := d.net.queue[0].To; to != hostID {
		t.Fatalf("join request addressed to %q", to)
	}
	d.flush()

	if v := d.guest.View(); v.Match == nil || v.Match.Status != StatusActive {
		t.Fatalf("guest not seated: %+v", v)
	}
	if n := len(d.host.View().Match.Players); n != 2 {
		t.Fatalf("host players = %d", n)
	}
}

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://host.test", "http://host.test"},
		{"http://host.test/", "http://host.test"},
		{"  http://host.test//  ", "http://host.test"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeIdentity(tt.in); got != tt.want {
			t.Fatalf("NormalizeIdentity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoinRequestPreconditions(t *testing.T) {
	ctx := context.Background()
	join := Envelope{From: "http://third.test", To: hostID, Message: JoinRequest{RequesterID: "http://third.test", DisplayName: "Tess"}}

	t.Run("no match", func(t *testing.T) {
		r := NewReplica(hostID, &wire{})
		if err := r.Deliver(ctx, join); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("not host", func(t *testing.T) {
		d := newDuel(t, 1)
		env := join
		env.To = guestID
		before := d.guest.Snapshot()
		if err := d.guest.Deliver(ctx, env); !errors.Is(err, ErrNotHost) {
			t.Fatalf("got %v", err)
		}
		if got := d.guest.Snapshot(); len(got.Match.Players) != len(before.Match.Players) {
			t.Fatal("state mutated on rejected join")
		}
	})
	t.Run("already active", func(t *testing.T) {
		d := newDuel(t, 1)
		if err := d.host.Deliver(ctx, join); !errors.Is(err, ErrNotJoinable) {
			t.Fatalf("got %v", err)
		}
		if n := len(d.host.View().Match.Players); n != 2 {
			t.Fatalf("players = %d", n)
		}
	})
	t.Run("misaddressed", func(t *testing.T) {
		r := NewReplica(guestID, &wire{})
		if err := r.Deliver(ctx, join); !errors.Is(err, ErrMisaddressed) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("join self", func(t *testing.T) {
		r := NewReplica(hostID, &wire{})
		if err := r.JoinMatch(ctx, hostID, "me"); !errors.Is(err, ErrInvalidHost) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestRoundResolvesOnBothReplicas(t *testing.T) {
	d := newDuel(t, 3)

	if err := d.host.SubmitWord(d.ctx, " rates "); err != nil {
		t.Fatal(err)
	}
	if v := d.host.View(); v.Match.RoundPhase != PhaseGuestToPlay || v.Match.HostWord != "RATES" || v.MyWord != "RATES" {
		t.Fatalf("host not staged: %+v", v)
	}
	d.flush()

	gv := d.guest.View()
	if gv.OpponentWord != "RATES" || gv.Match.HostWord != "RATES" || gv.Match.RoundPhase != PhaseGuestToPlay {
		t.Fatalf("guest did not receive host word intact: %+v", gv)
	}

	if err := d.guest.SubmitWord(d.ctx, "stare"); err != nil {
		t.Fatal(err)
	}
	if v := d.guest.View(); v.MyWord != "STARE" || v.Match.GuestWord != "" || v.Match.CurrentRound != 1 {
		t.Fatalf("guest must only stage locally: %+v", v)
	}
	d.flush()

	for name, r := range map[string]*Replica{"host": d.host, "guest": d.guest} {
		v := r.View()
		m := v.Match
		if m.HostScore != 5 || m.GuestScore != 5 {
			t.Fatalf("%s scores = %d/%d, want 5/5", name, m.HostScore, m.GuestScore)
		}
		if m.CurrentRound != 2 || m.RoundPhase != PhaseHostToPlay || m.Status != StatusActive {
			t.Fatalf("%s round state: round=%d phase=%s status=%s", name, m.CurrentRound, m.RoundPhase, m.Status)
		}
		if m.HostWord != "" || m.GuestWord != "" || v.MyWord != "" || v.OpponentWord != "" {
			t.Fatalf("%s words not cleared: %+v", name, v)
		}
		if v.LastRound == nil || v.LastRound.HostWord != "RATES" || v.LastRound.GuestWord != "STARE" {
			t.Fatalf("%s last round: %+v", name, v.LastRound)
		}
		if !v.LastRound.Timestamp.Equal(epoch) {
			t.Fatalf("%s timestamp = %v", name, v.LastRound.Timestamp)
		}
	}
}

func TestSingleRoundMatchEndsWithHostWin(t *testing.T) {
	d := newDuel(t, 1)
	d.play("RATES", "ANT")

	for name, r := range map[string]*Replica{"host": d.host, "guest": d.guest} {
		m := r.View().Match
		if m.Status != StatusEnded || m.RoundPhase != PhaseRoundComplete {
			t.Fatalf("%s not ended: %s/%s", name, m.Status, m.RoundPhase)
		}
		if m.HostScore != 5 || m.GuestScore != 3 {
			t.Fatalf("%s scores = %d/%d", name, m.HostScore, m.GuestScore)
		}
		if m.WinnerID != hostID {
			t.Fatalf("%s winner = %q", name, m.WinnerID)
		}
		if m.CurrentRound != m.TotalRounds+1 {
			t.Fatalf("%s current round = %d", name, m.CurrentRound)
		}
	}
	if err := d.host.SubmitWord(d.ctx, "RATES"); !errors.Is(err, ErrMatchNotActive) {
		t.Fatalf("submit after end: %v", err)
	}
}

func TestGuestWinAndDraw(t *testing.T) {
	d := newDuel(t, 1)
	d.play("ANT", "STERN")
	if m := d.guest.View().Match; m.WinnerID != guestID {
		t.Fatalf("winner = %q, want guest", m.WinnerID)
	}
	if v := d.guest.View(); v.MyScore != 5 || v.OpponentScore != 3 {
		t.Fatalf("guest projection = %d/%d", v.MyScore, v.OpponentScore)
	}

	d = newDuel(t, 1)
	d.play("RATES", "STARE")
	if m := d.host.View().Match; !m.IsDraw() {
		t.Fatalf("expected draw, winner=%q", m.WinnerID)
	}
}

func TestInvalidWordScoresZero(t *testing.T) {
	d := newDuel(t, 2)
	d.play("RATES", "ZZZ")

	m := d.host.View().Match
	if m.GuestScore != 0 || m.HostScore != 5 {
		t.Fatalf("scores = %d/%d", m.HostScore, m.GuestScore)
	}
	if rec := m.History[0]; rec.GuestPoints != 0 || rec.GuestWord != "ZZZ" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestDuplicateWordSubmittedIsNoOp(t *testing.T) {
	d := newDuel(t, 3)

	if err := d.host.SubmitWord(d.ctx, "RATES"); err != nil {
		t.Fatal(err)
	}
	d.flush()
	if err := d.guest.SubmitWord(d.ctx, "STARE"); err != nil {
		t.Fatal(err)
	}
	dup := d.net.queue[0]
	d.flush()

	before := d.host.View().Match
	d.deliver(dup)
	d.deliver(dup)

	after := d.host.View().Match
	if after.CurrentRound != before.CurrentRound || len(after.History) != 1 {
		t.Fatalf("duplicate resolved again: round=%d history=%d", after.CurrentRound, len(after.History))
	}
	if after.GuestScore != before.GuestScore {
		t.Fatal("duplicate changed score")
	}
	if len(d.net.queue) != 0 {
		t.Fatalf("duplicate produced %d outbound messages", len(d.net.queue))
	}
}

func TestDuplicateHostWordIgnoredByGuest(t *testing.T) {
	d := newDuel(t, 3)
	if err := d.host.SubmitWord(d.ctx, "RATES"); err != nil {
		t.Fatal(err)
	}
	first := d.net.queue[0]
	d.flush()

	replay := first
	replay.Message = WordSubmitted{Round: 1, Word: "NEST"}
	d.deliver(replay)
	if got := d.guest.View().Match.HostWord; got != "RATES" {
		t.Fatalf("host word overwritten: %q", got)
	}
}

func TestGuestIgnoresWordFromEarlierRound(t *testing.T) {
	d := newDuel(t, 3)
	if err := d.host.SubmitWord(d.ctx, "RATES"); err != nil {
		t.Fatal(err)
	}
	roundOne := d.net.queue[0]
	d.flush()
	if err := d.guest.SubmitWord(d.ctx, "STARE"); err != nil {
		t.Fatal(err)
	}
	d.flush()

	before := d.guest.View()
	if before.Match.CurrentRound != 2 || before.Match.RoundPhase != PhaseHostToPlay {
		t.Fatalf("guest not in round 2: %+v", before.Match)
	}
	d.deliver(roundOne)

	after := d.guest.View()
	if after.Match.HostWord != "" || after.OpponentWord != "" || after.Match.RoundPhase != PhaseHostToPlay {
		t.Fatalf("stale round-1 word adopted: %+v", after)
	}
	if err := d.guest.SubmitWord(d.ctx, "NEST"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("guest submit after stale word: %v", err)
	}
}

func TestTurnExclusivity(t *testing.T) {
	d := newDuel(t, 3)

	if err := d.guest.SubmitWord(d.ctx, "STARE"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("guest before host: %v", err)
	}
	if err := d.host.SubmitWord(d.ctx, "at"); !errors.Is(err, ErrWordTooShort) {
		t.Fatalf("short word: %v", err)
	}
	if err := d.host.SubmitWord(d.ctx, "RATES"); err != nil {
		t.Fatal(err)
	}
	if err := d.host.SubmitWord(d.ctx, "STARE"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("host twice: %v", err)
	}
	d.flush()
	if err := d.guest.SubmitWord(d.ctx, "STARE"); err != nil {
		t.Fatal(err)
	}
	if err := d.guest.SubmitWord(d.ctx, "NEST"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("guest twice: %v", err)
	}
	if n := len(d.net.queue); n != 1 {
		t.Fatalf("expected exactly one queued guest word, got %d", n)
	}
}

func TestSubmitWithoutActiveMatch(t *testing.T) {
	ctx := context.Background()
	r := NewReplica(hostID, &wire{})
	if err := r.SubmitWord(ctx, "RATES"); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("no match: %v", err)
	}
	r.CreateMatch(ctx, "Hana", 3)
	if err := r.SubmitWord(ctx, "RATES"); !errors.Is(err, ErrMatchNotActive) {
		t.Fatalf("waiting match: %v", err)
	}
}

func TestLeaveDiscardsLocallyRegardlessOfDelivery(t *testing.T) {
	phases := []func(d *duel){
		func(d *duel) {},
		func(d *duel) { _ = d.host.SubmitWord(d.ctx, "RATES") },
		func(d *duel) { _ = d.host.SubmitWord(d.ctx, "RATES"); d.flush() },
	}
	for i, setup := range phases {
		for _, leaver := range []string{hostID, guestID} {
			t.Run(fmt.Sprintf("phase%d/%s", i, leaver), func(t *testing.T) {
				d := newDuel(t, 3)
				setup(d)
				d.net.queue = nil
				d.net.down = true

				r := d.replica(leaver)
				r.LeaveMatch(d.ctx)
				if v := r.View(); v.Match != nil || v.MyWord != "" {
					t.Fatalf("match still present after leave: %+v", v)
				}
			})
		}
	}
}

func TestLeaveNoticeDiscardsOpponent(t *testing.T) {
	d := newDuel(t, 3)
	d.guest.LeaveMatch(d.ctx)
	d.flush()

	v := d.host.View()
	if v.Match != nil {
		t.Fatal("host kept match after opponent left")
	}
	if v.LastNotification != "Opponent left" {
		t.Fatalf("notification = %q", v.LastNotification)
	}
}

func TestLateRoundSyncAfterLeaveIgnored(t *testing.T) {
	d := newDuel(t, 3)
	if err := d.host.SubmitWord(d.ctx, "RATES"); err != nil {
		t.Fatal(err)
	}
	d.flush()
	if err := d.guest.SubmitWord(d.ctx, "STARE"); err != nil {
		t.Fatal(err)
	}
	// Host resolves and queues RoundSync; guest walks away before it lands.
	d.deliver(d.net.queue[0])
	d.net.queue = d.net.queue[1:]
	sync := d.net.queue[0]
	d.net.queue = nil

	d.guest.LeaveMatch(d.ctx)
	d.deliver(sync)
	if v := d.guest.View(); v.Match != nil {
		t.Fatalf("late snapshot resurrected match %s", v.Match.MatchID)
	}
}

func TestInitialStateSyncRequiresPendingJoin(t *testing.T) {
	ctx := context.Background()
	r := NewReplica(guestID, &wire{})
	game := &Match{
		MatchID: "1", HostID: hostID, Status: StatusActive,
		Players: []Player{{ID: hostID}, {ID: guestID}},
		Letters: "ATRESN", TotalRounds: 1, CurrentRound: 1, RoundPhase: PhaseHostToPlay,
	}
	env := Envelope{From: hostID, To: guestID, MatchID: "1", Message: InitialStateSync{Game: game}}
	if err := r.Deliver(ctx, env); err != nil {
		t.Fatal(err)
	}
	if r.View().Match != nil {
		t.Fatal("unsolicited snapshot adopted")
	}
}

func TestWordSubmittedForOtherMatchIgnored(t *testing.T) {
	d := newDuel(t, 3)
	env := Envelope{From: hostID, To: guestID, MatchID: "other", Message: WordSubmitted{Round: 1, Word: "RATES"}}
	d.deliver(env)
	if got := d.guest.View().Match.HostWord; got != "" {
		t.Fatalf("foreign word recorded: %q", got)
	}
}

func TestHistoryKeepsNewest(t *testing.T) {
	m := &Match{}
	for i := 1; i <= MaxHistory+10; i++ {
		m.appendHistory(RoundRecord{Round: uint32(i)})
		if len(m.History) > MaxHistory {
			t.Fatalf("history grew to %d", len(m.History))
		}
	}
	if m.History[0].Round != 11 || m.History[MaxHistory-1].Round != MaxHistory+10 {
		t.Fatalf("wrong eviction order: first=%d last=%d", m.History[0].Round, m.History[MaxHistory-1].Round)
	}
}

func TestSaturatingAdd(t *testing.T) {
	max := ^uint32(0)
	if got := saturatingAdd(max-1, 5); got != max {
		t.Fatalf("got %d", got)
	}
	if got := saturatingAdd(2, 3); got != 5 {
		t.Fatalf("got %d", got)
	}
}

type recordingPersister struct{ snaps []Snapshot }

func (p *recordingPersister) Save(_ context.Context, s Snapshot) error {
	p.snaps = append(p.snaps, s)
	return nil
}

func TestPersistAndNotifyOnChange(t *testing.T) {
	ctx := context.Background()
	p := &recordingPersister{}
	r := NewReplica(hostID, &wire{}, WithPersister(p), WithClock(func() time.Time { return epoch }))
	var views []View
	r.OnChange(func(v View) { views = append(views, v) })

	r.CreateMatch(ctx, "Hana", 2)
	r.LeaveMatch(ctx)

	if len(p.snaps) != 2 || len(views) != 2 {
		t.Fatalf("snapshots=%d views=%d", len(p.snaps), len(views))
	}
	if p.snaps[0].Match == nil || p.snaps[1].Match != nil {
		t.Fatal("snapshots do not follow create/leave")
	}

	restored := NewReplica(hostID, &wire{}, WithClock(func() time.Time { return epoch }))
	restored.Restore(p.snaps[0])
	if got := restored.View().Match.MatchID; got != p.snaps[0].Match.MatchID {
		t.Fatalf("restored match id %q", got)
	}
	if next := restored.CreateMatch(ctx, "Hana", 1); next.MatchID == p.snaps[0].Match.MatchID {
		t.Fatal("restored replica reused a match id")
	}
}

func TestEnvelopeRejectsUnknownKind(t *testing.T) {
	var env Envelope
	err := json.Unmarshal([]byte(`{"id":"x","from":"a","to":"b","kind":"nope","payload":{}}`), &env)
	if !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("got %v", err)
	}
}
