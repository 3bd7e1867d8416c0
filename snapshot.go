package landgo

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/hupe1980/landgo/align"
	"github.com/hupe1980/landgo/blobstore"
	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/distgraph"
	"github.com/hupe1980/landgo/model"
	"github.com/hupe1980/landgo/snapshot"
	"github.com/hupe1980/landgo/store"
)

// SaveSnapshot writes the complete session image to a local file. With an
// empty filename the configured default path is used.
//
// Pending distance writes are force-flushed first, so the snapshot always
// contains every computed distance.
func (s *Session) SaveSnapshot(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if filename == "" {
		filename = s.snapshotPath
	}

	if filename == "" {
		return ErrNoSnapshotPath
	}

	err := s.writeSnapshot(ctx, func(state *snapshot.State) error {
		return snapshot.Save(filename, state, s.snapshotOptions)
	})
	s.logger.LogSnapshot(ctx, filename, err)

	return err
}

// ArchiveSnapshot writes the complete session image to a blob store, for
// shipping landscape databases between machines or to object storage.
func (s *Session) ArchiveSnapshot(ctx context.Context, bs blobstore.Store, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	err := s.writeSnapshot(ctx, func(state *snapshot.State) error {
		return snapshot.Archive(ctx, bs, name, state, s.snapshotOptions)
	})
	s.logger.LogSnapshot(ctx, name, err)

	return err
}

func (s *Session) writeSnapshot(ctx context.Context, write func(state *snapshot.State) error) error {
	if _, err := s.flushPending(ctx, true, time.Now()); err != nil {
		return err
	}

	state, err := s.captureState(ctx)
	if err != nil {
		return translateError(err)
	}

	return write(state)
}

func (s *Session) snapshotOptions(o *snapshot.Options) {
	o.Codec = s.codec
	o.Compression = s.compression
}

// captureState assembles the persisted image. Sections are sorted so the
// same state always encodes to the same bytes.
func (s *Session) captureState(ctx context.Context) (*snapshot.State, error) {
	state := &snapshot.State{}

	for m, err := range s.st.Minima(ctx) {
		if err != nil {
			return nil, err
		}

		state.Minima = append(state.Minima, m)
	}

	for ts, err := range s.st.TransitionStates(ctx) {
		if err != nil {
			return nil, err
		}

		state.TransitionStates = append(state.TransitionStates, ts)
	}

	for d, err := range s.st.Distances(ctx) {
		if err != nil {
			return nil, err
		}

		state.Distances = append(state.Distances, d)
	}

	for m := range s.dg.Nodes() {
		state.Admitted = append(state.Admitted, m.ID)
	}

	for e := range s.dg.Edges() {
		state.Edges = append(state.Edges, e)
	}

	slices.SortFunc(state.Minima, func(a, b model.Minimum) int {
		return cmp.Compare(a.ID, b.ID)
	})
	slices.SortFunc(state.TransitionStates, func(a, b model.TransitionState) int {
		return cmp.Compare(a.ID, b.ID)
	})
	slices.SortFunc(state.Distances, func(a, b model.DistanceEntry) int {
		return comparePairs(a.Pair, b.Pair)
	})
	slices.Sort(state.Admitted)
	slices.SortFunc(state.Edges, func(a, b distgraph.Edge) int {
		return comparePairs(a.Pair, b.Pair)
	})

	return state, nil
}

func comparePairs(a, b core.Pair) int {
	if c := cmp.Compare(a.A, b.A); c != 0 {
		return c
	}

	return cmp.Compare(a.B, b.B)
}

// OpenFromSnapshot restores a session from a snapshot file into the given
// store. The store should be empty; records are written by ID. A nil
// alignFn falls back to cartesian alignment.
//
// The restored session resumes exactly where the saved one stopped: same
// admitted set, same edge weights, warm distance cache, nothing recomputed.
func OpenFromSnapshot(ctx context.Context, st store.Store, filename string, alignFn align.Func, optFns ...Option) (*Session, error) {
	state, err := snapshot.Load(filename)
	if err != nil {
		return nil, err
	}

	return restore(ctx, st, false, state, alignFn, optFns)
}

// OpenFromArchive restores a session from an archived snapshot in a blob
// store. See OpenFromSnapshot for store semantics.
func OpenFromArchive(ctx context.Context, st store.Store, bs blobstore.Store, name string, alignFn align.Func, optFns ...Option) (*Session, error) {
	state, err := snapshot.Fetch(ctx, bs, name)
	if err != nil {
		return nil, err
	}

	return restore(ctx, st, false, state, alignFn, optFns)
}

func restore(ctx context.Context, st store.Store, ownsStore bool, state *snapshot.State, alignFn align.Func, optFns []Option) (*Session, error) {
	for _, m := range state.Minima {
		if err := st.PutMinimum(ctx, m); err != nil {
			return nil, translateError(err)
		}
	}

	for _, ts := range state.TransitionStates {
		if err := st.PutTransitionState(ctx, ts); err != nil {
			return nil, translateError(err)
		}
	}

	if len(state.Distances) > 0 {
		if err := st.BulkWriteDistances(ctx, state.Distances); err != nil {
			return nil, translateError(err)
		}
	}

	s, err := open(ctx, st, ownsStore, alignFn, optFns)
	if err != nil {
		return nil, err
	}

	if _, err := s.cache.Warm(ctx); err != nil {
		return nil, translateError(err)
	}

	minima := make([]model.Minimum, 0, len(state.Admitted))

	for _, id := range state.Admitted {
		m, err := st.Minimum(ctx, id)
		if err != nil {
			return nil, translateError(err)
		}

		minima = append(minima, m)
	}

	s.dg = distgraph.Restore(st, s.cg, s.cache, minima, state.Edges)

	return s, nil
}
