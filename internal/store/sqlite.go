// internal/store/sqlite.go
//
// SQLite-backed snapshot Store.
// One row per replica in replica_state; match and scratch are stored as JSON
// so the schema does not track every field of game.Match.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/wordduel/internal/game"
)

type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore wraps an opened and migrated database.
func NewSQLiteStore(db *sql.DB) Store {
	return &sqliteStore{db: db, now: time.Now}
}

func (s *sqliteStore) Save(ctx context.Context, snap game.Snapshot) error {
	var matchJSON sql.NullString
	if snap.Match != nil {
		b, err := json.Marshal(snap.Match)
		if err != nil {
			return fmt.Errorf("encode match: %w", err)
		}
		matchJSON = sql.NullString{String: string(b), Valid: true}
	}
	scratchJSON, err := json.Marshal(snap.Scratch)
	if err != nil {
		return fmt.Errorf("encode scratch: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO replica_state (replica_id, match_json, scratch_json, pending_join, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(replica_id) DO UPDATE SET
            match_json=excluded.match_json,
            scratch_json=excluded.scratch_json,
            pending_join=excluded.pending_join,
            updated_at=excluded.updated_at`,
		snap.ReplicaID, matchJSON, string(scratchJSON), snap.PendingJoin, s.now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) Load(ctx context.Context, replicaID string) (game.Snapshot, error) {
	var (
		matchJSON   sql.NullString
		scratchJSON string
		pending     string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT match_json, scratch_json, pending_join FROM replica_state WHERE replica_id=?`, replicaID,
	).Scan(&matchJSON, &scratchJSON, &pending)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return game.Snapshot{}, err
	}

	snap := game.Snapshot{ReplicaID: replicaID, PendingJoin: pending}
	if matchJSON.Valid {
		var m game.Match
		if err := json.Unmarshal([]byte(matchJSON.String), &m); err != nil {
			return game.Snapshot{}, fmt.Errorf("decode match: %w", err)
		}
		snap.Match = &m
	}
	if err := json.Unmarshal([]byte(scratchJSON), &snap.Scratch); err != nil {
		return game.Snapshot{}, fmt.Errorf("decode scratch: %w", err)
	}
	return snap, nil
}
