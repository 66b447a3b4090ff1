package orchestrator

import (
	"errors"
	"sync/atomic"
	"time"
)

// Repository holds the published ranking. Readers always get a complete
// snapshot, never a mix of two cycles.
type Repository interface {
	// Publish replaces the ranking with entries produced by cycle seq.
	// It fails with ErrStaleCycle if a cycle with the same or a higher seq
	// has already published, and with ErrEmptyRanking if entries is empty.
	Publish(seq uint64, entries []RankedEntry) (*Snapshot, error)

	// Restore installs a previously persisted snapshot. It is ignored when the
	// repository already holds a newer one.
	Restore(snap *Snapshot) bool

	// Snapshot returns the ranking currently published.
	Snapshot() *Snapshot
}

var (
	// ErrStaleCycle is returned when a newer cycle has already published.
	ErrStaleCycle = errors.New("stale cycle: a newer ranking is published")

	// ErrEmptyRanking is returned when asked to publish nothing.
	ErrEmptyRanking = errors.New("empty ranking")
)

// PublishedState is a lock-free Repository. Each publish swaps one pointer,
// so a reader sees either the old snapshot or the new one.
type PublishedState struct {
	current atomic.Pointer[Snapshot]
}

// NewPublishedState returns a repository serving placeholder until the
// first publish.
func NewPublishedState(placeholder RankedEntry) *PublishedState {
	r := &PublishedState{}
	r.current.Store(&Snapshot{
		Seq:         0,
		Entries:     []RankedEntry{placeholder},
		PublishedAt: time.Now().UTC(),
	})
	return r
}

// Publish implements Repository.Publish.
func (r *PublishedState) Publish(seq uint64, entries []RankedEntry) (*Snapshot, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyRanking
	}

	next := &Snapshot{
		Seq:         seq,
		Entries:     append([]RankedEntry(nil), entries...),
		PublishedAt: time.Now().UTC(),
	}

	for {
		cur := r.current.Load()
		if cur != nil && cur.Seq >= seq {
			return nil, ErrStaleCycle
		}
		if r.current.CompareAndSwap(cur, next) {
			return next, nil
		}
	}
}

// Restore implements Repository.Restore.
func (r *PublishedState) Restore(snap *Snapshot) bool {
	if snap == nil || len(snap.Entries) == 0 {
		return false
	}
	restored := &Snapshot{
		Seq:         snap.Seq,
		Entries:     append([]RankedEntry(nil), snap.Entries...),
		PublishedAt: snap.PublishedAt,
	}
	for {
		cur := r.current.Load()
		// The placeholder (seq 0) is always replaced.
		if cur != nil && cur.Seq > 0 && cur.Seq >= snap.Seq {
			return false
		}
		if r.current.CompareAndSwap(cur, restored) {
			return true
		}
	}
}

// Snapshot implements Repository.Snapshot.
func (r *PublishedState) Snapshot() *Snapshot {
	return r.current.Load()
}

// Current returns the head of the published ranking.
func (r *PublishedState) Current() RankedEntry {
	return r.current.Load().Current()
}

// All returns a copy of the published ranking.
func (r *PublishedState) All() []RankedEntry {
	return append([]RankedEntry(nil), r.current.Load().Entries...)
}
