// internal/results/recorder.go
//
// Records finished matches into the results ledger.
// The recorder is registered as a replica change listener; it queues one row
// per match the first time it sees the match in StatusEnded. A single worker
// writes the queue to SQLite, so Observe never waits on the database while
// the replica is locked. Writes are best effort: a failed insert is logged
// and the match is queued again on its next change.

package results

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/game"
)

const recorderQueueSize = 64

type Recorder struct {
	store *Store
	log   zerolog.Logger
	now   func() time.Time

	mu     sync.Mutex // guards seen, closed and queue close
	seen   map[string]struct{}
	closed bool
	queue  chan Result
	done   chan struct{}
}

// NewRecorder starts the write worker. Call Close to stop it.
func NewRecorder(st *Store, log zerolog.Logger) *Recorder {
	rc := &Recorder{
		store: st,
		log:   log,
		now:   time.Now,
		seen:  make(map[string]struct{}),
		queue: make(chan Result, recorderQueueSize),
		done:  make(chan struct{}),
	}
	go rc.run()
	return rc
}

// Observe is a game.Replica change listener. It never blocks.
func (rc *Recorder) Observe(v game.View) {
	m := v.Match
	if m == nil || m.Status != game.StatusEnded {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	if _, ok := rc.seen[m.MatchID]; ok {
		return
	}
	select {
	case rc.queue <- FromView(v, rc.now()):
		rc.seen[m.MatchID] = struct{}{}
	default:
		rc.log.Warn().Str("matchId", m.MatchID).Msg("results queue full")
	}
}

// Close stops accepting results and waits for queued ones to be written.
func (rc *Recorder) Close() {
	rc.mu.Lock()
	if !rc.closed {
		rc.closed = true
		close(rc.queue)
	}
	rc.mu.Unlock()
	<-rc.done
}

func (rc *Recorder) run() {
	defer close(rc.done)
	for res := range rc.queue {
		if err := rc.store.InsertResult(context.Background(), res); err != nil {
			rc.log.Warn().Err(err).Str("matchId", res.MatchID).Msg("record result")
			rc.mu.Lock()
			delete(rc.seen, res.MatchID)
			rc.mu.Unlock()
			continue
		}
		rc.log.Info().Str("matchId", res.MatchID).Str("outcome", string(res.Outcome)).Msg("result recorded")
	}
}

// FromView builds the ledger row for an ended match. The finish time is the
// last round's timestamp when available.
func FromView(v game.View, now time.Time) Result {
	m := v.Match
	role := "guest"
	if v.IsHost {
		role = "host"
	}
	finished := now
	if v.LastRound != nil && !v.LastRound.Timestamp.IsZero() {
		finished = v.LastRound.Timestamp
	}
	outcome := OutcomeDraw
	switch {
	case m.WinnerID == "":
	case m.WinnerID == v.Identity:
		outcome = OutcomeWin
	default:
		outcome = OutcomeLoss
	}
	return Result{
		MatchID:       m.MatchID,
		ReplicaID:     v.Identity,
		Role:          role,
		OpponentID:    v.OpponentID,
		OpponentName:  v.OpponentName,
		MyScore:       v.MyScore,
		OpponentScore: v.OpponentScore,
		Outcome:       outcome,
		Rounds:        m.TotalRounds,
		FinishedAt:    finished,
	}
}
