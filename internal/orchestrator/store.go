package orchestrator

import (
	"context"
	"sync"
)

// Store persists published snapshots outside the process so a restart can
// serve the last ranking instead of the placeholder.
// Implementations can be in-memory or remote (see RedisStore).
type Store interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	// LoadSnapshot returns ok=false when nothing has been saved yet.
	LoadSnapshot(ctx context.Context) (snap *Snapshot, ok bool, err error)
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	mu   sync.Mutex
	snap *Snapshot
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// SaveSnapshot implements Store.SaveSnapshot.
func (s *InMemoryStore) SaveSnapshot(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	return nil
}

// LoadSnapshot implements Store.LoadSnapshot.
func (s *InMemoryStore) LoadSnapshot(_ context.Context) (*Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil, false, nil
	}
	return s.snap, true, nil
}
