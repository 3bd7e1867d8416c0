package store

import (
	"context"
	"iter"
	"sync"

	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/model"
)

// Compile-time check to ensure MemoryStore implements the Store interface.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store implementation. It is the default
// backend and the reference for the transactional semantics the planner
// relies on.
type MemoryStore struct {
	mu        sync.RWMutex
	closed    bool
	minima    map[core.MinimumID]model.Minimum
	tstates   map[core.TransitionStateID]model.TransitionState
	distances map[core.Pair]float64
	nextMin   core.MinimumID
	nextTS    core.TransitionStateID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		minima:    make(map[core.MinimumID]model.Minimum),
		tstates:   make(map[core.TransitionStateID]model.TransitionState),
		distances: make(map[core.Pair]float64),
		nextMin:   1,
		nextTS:    1,
	}
}

// Begin opens a transactional scope. Writes are staged in memory and only
// applied on Commit.
func (s *MemoryStore) Begin(_ context.Context) (Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	return &memoryTx{store: s}, nil
}

// BulkWriteDistances persists a batch of distance entries in one shot.
func (s *MemoryStore) BulkWriteDistances(_ context.Context, entries []model.DistanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	for _, e := range entries {
		s.distances[e.Pair] = e.Dist
	}

	return nil
}

// Distances iterates over all persisted distance entries.
func (s *MemoryStore) Distances(ctx context.Context) iter.Seq2[model.DistanceEntry, error] {
	return func(yield func(model.DistanceEntry, error) bool) {
		s.mu.RLock()

		if s.closed {
			s.mu.RUnlock()
			yield(model.DistanceEntry{}, ErrClosed)

			return
		}

		entries := make([]model.DistanceEntry, 0, len(s.distances))
		for p, d := range s.distances {
			entries = append(entries, model.DistanceEntry{Pair: p, Dist: d})
		}

		s.mu.RUnlock()

		for _, e := range entries {
			if ctx.Err() != nil {
				yield(model.DistanceEntry{}, ctx.Err())

				return
			}

			if !yield(e, nil) {
				return
			}
		}
	}
}

// PutMinimum inserts or replaces a minimum record.
func (s *MemoryStore) PutMinimum(_ context.Context, m model.Minimum) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.minima[m.ID] = m
	if m.ID >= s.nextMin {
		s.nextMin = m.ID + 1
	}

	return nil
}

// Minimum fetches a minimum by id.
func (s *MemoryStore) Minimum(_ context.Context, id core.MinimumID) (model.Minimum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return model.Minimum{}, ErrClosed
	}

	m, ok := s.minima[id]
	if !ok {
		return model.Minimum{}, ErrNotFound
	}

	return m, nil
}

// Minima iterates over all minimum records.
func (s *MemoryStore) Minima(ctx context.Context) iter.Seq2[model.Minimum, error] {
	return func(yield func(model.Minimum, error) bool) {
		s.mu.RLock()

		if s.closed {
			s.mu.RUnlock()
			yield(model.Minimum{}, ErrClosed)

			return
		}

		records := make([]model.Minimum, 0, len(s.minima))
		for _, m := range s.minima {
			records = append(records, m)
		}

		s.mu.RUnlock()

		for _, m := range records {
			if ctx.Err() != nil {
				yield(model.Minimum{}, ctx.Err())

				return
			}

			if !yield(m, nil) {
				return
			}
		}
	}
}

// DeleteMinimum removes a minimum record and any persisted distances
// referencing it.
func (s *MemoryStore) DeleteMinimum(_ context.Context, id core.MinimumID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	delete(s.minima, id)

	for p := range s.distances {
		if p.Contains(id) {
			delete(s.distances, p)
		}
	}

	return nil
}

// PutTransitionState inserts or replaces a transition state record.
func (s *MemoryStore) PutTransitionState(_ context.Context, ts model.TransitionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.tstates[ts.ID] = ts
	if ts.ID >= s.nextTS {
		s.nextTS = ts.ID + 1
	}

	return nil
}

// TransitionState fetches a transition state by id.
func (s *MemoryStore) TransitionState(_ context.Context, id core.TransitionStateID) (model.TransitionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return model.TransitionState{}, ErrClosed
	}

	ts, ok := s.tstates[id]
	if !ok {
		return model.TransitionState{}, ErrNotFound
	}

	return ts, nil
}

// TransitionStates iterates over all transition state records.
func (s *MemoryStore) TransitionStates(ctx context.Context) iter.Seq2[model.TransitionState, error] {
	return func(yield func(model.TransitionState, error) bool) {
		s.mu.RLock()

		if s.closed {
			s.mu.RUnlock()
			yield(model.TransitionState{}, ErrClosed)

			return
		}

		records := make([]model.TransitionState, 0, len(s.tstates))
		for _, ts := range s.tstates {
			records = append(records, ts)
		}

		s.mu.RUnlock()

		for _, ts := range records {
			if ctx.Err() != nil {
				yield(model.TransitionState{}, ctx.Err())

				return
			}

			if !yield(ts, nil) {
				return
			}
		}
	}
}

// NextMinimumID allocates a fresh minimum identity.
func (s *MemoryStore) NextMinimumID(_ context.Context) (core.MinimumID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	id := s.nextMin
	s.nextMin++

	return id, nil
}

// NextTransitionStateID allocates a fresh transition state identity.
func (s *MemoryStore) NextTransitionStateID(_ context.Context) (core.TransitionStateID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	id := s.nextTS
	s.nextTS++

	return id, nil
}

// Close marks the store closed. Subsequent operations fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

// memoryTx stages distance writes and applies them atomically on Commit.
type memoryTx struct {
	store  *MemoryStore
	staged []model.DistanceEntry
	done   bool
}

// WriteDistances stages distance entries inside the transaction.
func (tx *memoryTx) WriteDistances(entries []model.DistanceEntry) error {
	if tx.done {
		return ErrTxDone
	}

	tx.staged = append(tx.staged, entries...)

	return nil
}

// Commit applies all staged writes under a single lock acquisition.
func (tx *memoryTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}

	tx.done = true

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	if tx.store.closed {
		return ErrClosed
	}

	for _, e := range tx.staged {
		tx.store.distances[e.Pair] = e.Dist
	}

	tx.staged = nil

	return nil
}

// Rollback discards all staged writes.
func (tx *memoryTx) Rollback() error {
	if tx.done {
		return nil
	}

	tx.done = true
	tx.staged = nil

	return nil
}
