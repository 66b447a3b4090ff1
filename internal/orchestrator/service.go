package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNoResults is returned when a cycle produced nothing worth publishing.
// The previously published ranking is kept.
var ErrNoResults = errors.New("no rankable results")

// Service ranks cycle results and delegates publication to the Repository.
// Accepted snapshots are mirrored to an optional Store.
type Service struct {
	repo  Repository
	store Store
	opts  RankOptions
	log   *slog.Logger

	// mirrorMu orders store writes; savedSeq keeps an older cycle from
	// overwriting a newer mirror when saves finish out of order.
	mirrorMu sync.Mutex
	savedSeq uint64

	now func() time.Time
}

// NewService returns a Service. store may be nil to disable mirroring.
func NewService(repo Repository, store Store, opts RankOptions, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		store: store,
		opts:  opts,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Publish ranks the results of cycle seq and makes them the published ranking.
// It returns ErrNoResults when no stream qualifies and ErrStaleCycle when a
// newer cycle already published; in both cases the current ranking is untouched.
func (s *Service) Publish(ctx context.Context, seq uint64, results []PipelineResult) (*Snapshot, error) {
	entries := Rank(results, s.opts, s.now())
	if len(entries) == 0 {
		return nil, ErrNoResults
	}

	snap, err := s.repo.Publish(seq, entries)
	if err != nil {
		return nil, err
	}

	s.mirror(ctx, snap)
	return snap, nil
}

// mirror writes snap to the store. Failures are logged; the in-process
// ranking is authoritative.
func (s *Service) mirror(ctx context.Context, snap *Snapshot) {
	if s.store == nil {
		return
	}
	s.mirrorMu.Lock()
	defer s.mirrorMu.Unlock()

	if snap.Seq <= s.savedSeq {
		return
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		s.log.Warn("mirror snapshot failed",
			slog.Uint64("seq", snap.Seq),
			slog.String("error", err.Error()))
		return
	}
	s.savedSeq = snap.Seq
}

// Restore loads the last mirrored snapshot, if any, and publishes it.
func (s *Service) Restore(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	snap, ok, err := s.store.LoadSnapshot(ctx)
	if err != nil || !ok {
		return false, err
	}
	if !s.repo.Restore(snap) {
		return false, nil
	}

	s.mirrorMu.Lock()
	if snap.Seq > s.savedSeq {
		s.savedSeq = snap.Seq
	}
	s.mirrorMu.Unlock()
	return true, nil
}

// Current returns the best stream to watch right now.
func (s *Service) Current() RankedEntry {
	return s.repo.Snapshot().Current()
}

// All returns a copy of the full ranking, best first.
func (s *Service) All() []RankedEntry {
	snap := s.repo.Snapshot()
	return append([]RankedEntry(nil), snap.Entries...)
}

// Seq returns the cycle that produced the published ranking.
func (s *Service) Seq() uint64 {
	return s.repo.Snapshot().Seq
}

// Snapshot returns the published snapshot. It must not be modified.
func (s *Service) Snapshot() *Snapshot {
	return s.repo.Snapshot()
}
