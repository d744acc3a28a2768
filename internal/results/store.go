package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Outcome is the finished match from this replica's point of view.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

type Result struct {
	MatchID       string    `json:"matchId"`
	ReplicaID     string    `json:"replicaId"`
	Role          string    `json:"role"`
	OpponentID    string    `json:"opponentId"`
	OpponentName  string    `json:"opponentName"`
	MyScore       uint32    `json:"myScore"`
	OpponentScore uint32    `json:"opponentScore"`
	Outcome       Outcome   `json:"outcome"`
	Rounds        uint32    `json:"rounds"`
	FinishedAt    time.Time `json:"finishedAt"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// InsertResult records a finished match. A second insert for the same match is ignored.
func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO match_results
            (match_id, replica_id, role, opponent_id, opponent_name, my_score, opponent_score, outcome, rounds, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.MatchID, r.ReplicaID, r.Role, r.OpponentID, r.OpponentName,
		r.MyScore, r.OpponentScore, string(r.Outcome), r.Rounds, r.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Recent returns the latest finished matches, newest first. Default limit is 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT match_id, replica_id, role, opponent_id, opponent_name, my_score, opponent_score, outcome, rounds, finished_at
        FROM match_results
        ORDER BY finished_at DESC, match_id DESC
        LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		var (
			r        Result
			outcome  string
			finished string
		)
		if err := rows.Scan(&r.MatchID, &r.ReplicaID, &r.Role, &r.OpponentID, &r.OpponentName,
			&r.MyScore, &r.OpponentScore, &outcome, &r.Rounds, &finished); err != nil {
			return nil, err
		}
		r.Outcome = Outcome(outcome)
		at, err := time.Parse(time.RFC3339Nano, finished)
		if err != nil {
			return nil, fmt.Errorf("match %s finished_at: %w", r.MatchID, err)
		}
		r.FinishedAt = at
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary tallies outcomes across all recorded matches.
type Summary struct {
	Played int `json:"played"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(1) FROM match_results GROUP BY outcome`)
	if err != nil {
		return sum, err
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return sum, err
		}
		switch Outcome(outcome) {
		case OutcomeWin:
			sum.Wins = n
		case OutcomeLoss:
			sum.Losses = n
		case OutcomeDraw:
			sum.Draws = n
		}
		sum.Played += n
	}
	return sum, rows.Err()
}
