// internal/store/memory.go
//
// In-memory implementation of the snapshot Store interface.
// This is a lightweight persistence layer used in development/testing, or
// when a replica does not need to survive restarts.
//
// Characteristics:
//   - Stores game.Snapshot values keyed by replica ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Load returns ErrNotFound for unknown replica IDs.

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/robalobadob/wordduel/internal/game"
)

// ErrNotFound is returned by Load when no snapshot exists.
var ErrNotFound = errors.New("snapshot not found")

// Store defines the persistence interface for replica snapshots.
// Implementations may be backed by memory (this file) or SQLite (sqlite.go).
type Store interface {
	// Save persists or replaces the replica snapshot.
	Save(ctx context.Context, snap game.Snapshot) error

	// Load retrieves the snapshot for replicaID.
	// Returns ErrNotFound if the replica never saved one.
	Load(ctx context.Context, replicaID string) (game.Snapshot, error)
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu    sync.RWMutex
	snaps map[string]game.Snapshot
}

// NewMemoryStore constructs a new in-memory Store. main uses it for
// DB_PATH=":memory:", where snapshots cannot outlive the process anyway.
func NewMemoryStore() Store {
	return &memory{snaps: make(map[string]game.Snapshot)}
}

// Save stores a private copy of the snapshot.
func (m *memory) Save(ctx context.Context, snap game.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Match = snap.Match.Clone()
	m.snaps[snap.ReplicaID] = snap
	return nil
}

// Load looks up a snapshot by replica ID.
func (m *memory) Load(ctx context.Context, replicaID string) (game.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.snaps[replicaID]; ok {
		s.Match = s.Match.Clone()
		return s, nil
	}
	return game.Snapshot{}, ErrNotFound
}
