// Package landgo provides an embedded planner for potential energy landscape
// exploration in Go.
//
// Landgo keeps track of which minima of a landscape are connected by known
// transition states and plans which pair of minima an expensive double ended
// search should attempt to connect next. The planning signal is a complete
// weighted graph over explicitly admitted minima:
//
//   - weight 0: the endpoints are connected through known transition states
//   - weight d*d: the cached structural alignment distance, squared
//   - a large sentinel: the pair was attempted and should never be retried
//
// The minimum weight path between two minima is a cheap, educated guess for
// the best chain of connection attempts. Distances are computed through a
// write behind cache so that the expensive alignment routine runs at most
// once per pair across the lifetime of the store.
//
// # Quick Start
//
// Create a session with the in-memory store:
//
//	ctx := context.Background()
//	s, err := landgo.Memory().
//	    Cartesian().            // Alignment routine
//	    FlushThreshold(300).    // Bulk write batch size
//	    Build(ctx)
//	if err != nil {
//	    panic(err)
//	}
//	defer s.Close()
//
// Register landscape features as the external search finds them:
//
//	m1, _ := s.AddMinimum(ctx, -12.5, coords1)
//	m2, _ := s.AddMinimum(ctx, -11.8, coords2)
//	ts, _ := s.AddTransitionState(ctx, -10.2, tsCoords, m1.ID, m2.ID)
//
// Prepare a connection attempt and query the plan:
//
//	if err := s.Initialize(ctx, start, end); err != nil {
//	    panic(err)
//	}
//
//	path, ok := s.ShortestPath(ctx, start.ID, end.ID)
//	if ok {
//	    pair, weight, _ := path.MaxEdge()
//	    // run the expensive local search on pair, then feed the outcome
//	    // back via MarkConnected or MarkUnproductive
//	    _ = pair
//	    _ = weight
//	}
//
// For durable stores see the badgerstore package, and the connect package
// for a ready made driver loop around a local search capability.
package landgo

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/landgo/align"
	"github.com/hupe1980/landgo/codec"
	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/distcache"
	"github.com/hupe1980/landgo/distgraph"
	"github.com/hupe1980/landgo/graph"
	"github.com/hupe1980/landgo/model"
	"github.com/hupe1980/landgo/snapshot"
	"github.com/hupe1980/landgo/store"
)

// Session is a single landscape exploration session. It owns the
// connectivity graph, the planning graph and the distance cache on top of a
// Store, and serializes all mutations behind one lock.
type Session struct {
	mu           sync.RWMutex
	st           store.Store
	ownsStore    bool
	alignFn      align.Func
	cg           *graph.Graph
	cache        *distcache.Cache
	dg           *distgraph.Graph
	codec        codec.Codec
	metrics      MetricsCollector
	logger       *Logger
	snapshotPath string
	compression  snapshot.Compression
	closed       bool
}

// Open creates a session on top of an existing store. The connectivity
// graph is rebuilt from the persisted minima and transition states.
//
// The caller keeps ownership of the store and is responsible for closing it
// after the session.
func Open(ctx context.Context, st store.Store, alignFn align.Func, optFns ...Option) (*Session, error) {
	return open(ctx, st, false, alignFn, optFns)
}

func open(ctx context.Context, st store.Store, ownsStore bool, alignFn align.Func, optFns []Option) (*Session, error) {
	opts := applyOptions(optFns)

	if alignFn == nil {
		alignFn = align.Cartesian
	}

	c := opts.codec
	if c == nil {
		c = codec.Default
	}

	cg, err := graph.FromStore(ctx, st)
	if err != nil {
		return nil, translateError(err)
	}

	var cacheOptFns []func(o *distcache.Options)
	if opts.flushThreshold > 0 {
		cacheOptFns = append(cacheOptFns, func(o *distcache.Options) {
			o.MaxPending = opts.flushThreshold
		})
	}

	cache := distcache.New(st, alignFn, cacheOptFns...)

	return &Session{
		st:           st,
		ownsStore:    ownsStore,
		alignFn:      alignFn,
		cg:           cg,
		cache:        cache,
		dg:           distgraph.New(st, cg, cache),
		codec:        c,
		metrics:      opts.metricsCollector,
		logger:       opts.logger,
		snapshotPath: opts.snapshotPath,
		compression:  opts.compression,
	}, nil
}

// AddMinimum records a newly found minimum and registers it with the
// connectivity graph. The minimum is not admitted to the planning graph;
// admission is always explicit.
func (s *Session) AddMinimum(ctx context.Context, energy float64, coords []float64) (model.Minimum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.Minimum{}, ErrClosed
	}

	id, err := s.st.NextMinimumID(ctx)
	if err != nil {
		return model.Minimum{}, translateError(err)
	}

	m := model.Minimum{ID: id, Energy: energy, Coords: coords}
	if err := s.st.PutMinimum(ctx, m); err != nil {
		return model.Minimum{}, translateError(err)
	}

	s.cg.AddMinimum(m.ID)

	return m, nil
}

// AddTransitionState records a newly found transition state between two
// minima and updates both graphs: the connectivity graph gains the edge, and
// if both endpoints are admitted their planning edge is zeroed.
func (s *Session) AddTransitionState(ctx context.Context, energy float64, coords []float64, min1, min2 core.MinimumID) (model.TransitionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.TransitionState{}, ErrClosed
	}

	id, err := s.st.NextTransitionStateID(ctx)
	if err != nil {
		return model.TransitionState{}, translateError(err)
	}

	ts := model.TransitionState{ID: id, Energy: energy, Coords: coords, Min1: min1, Min2: min2}
	if err := s.st.PutTransitionState(ctx, ts); err != nil {
		return model.TransitionState{}, translateError(err)
	}

	s.cg.AddTransitionState(ts)

	if s.dg.Contains(min1) && s.dg.Contains(min2) {
		if err := s.dg.MarkConnected(min1, min2); err != nil {
			return ts, translateError(err)
		}
	}

	return ts, nil
}

// Minimum fetches a minimum record by id.
func (s *Session) Minimum(ctx context.Context, id core.MinimumID) (model.Minimum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return model.Minimum{}, ErrClosed
	}

	m, err := s.st.Minimum(ctx, id)

	return m, translateError(err)
}

// Admit adds a minimum to the planning graph with an edge to every other
// admitted minimum. Admitting twice is a no-op. The admission and any cache
// flush it triggers form one atomic unit against the store.
func (s *Session) Admit(ctx context.Context, m model.Minimum) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	err := translateError(s.dg.Admit(ctx, m))
	duration := time.Since(start)
	s.metrics.RecordAdmit(duration, err)
	s.logger.LogAdmit(ctx, m.ID, s.dg.Len(), err)

	return err
}

// Initialize prepares the planning graph for connecting start to end: warms
// the cache, primes the start to end distance and admits both endpoints.
// InitOptions widen the initial admission set.
func (s *Session) Initialize(ctx context.Context, start, end model.Minimum, optFns ...func(o *distgraph.InitOptions)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	err := translateError(s.dg.Initialize(ctx, start, end, optFns...))
	s.logger.LogInitialize(ctx, start.ID, end.ID, s.dg.Len(), err)

	return err
}

// Distance returns the structural distance between two minima, computing
// and recording it on a cache miss.
func (s *Session) Distance(ctx context.Context, a, b model.Minimum) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	d, err := s.cache.GetOrCompute(ctx, a, b)

	return d, translateError(err)
}

// ShortestPath returns the minimum weight path between two admitted minima.
// The second return is false when no path exists, a normal outcome that
// signals the driver to widen admission and retry.
func (s *Session) ShortestPath(ctx context.Context, a, b core.MinimumID) (*distgraph.Path, bool) {
	start := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false
	}

	path, found := s.dg.ShortestPath(a, b)
	duration := time.Since(start)
	s.metrics.RecordShortestPath(duration, found)

	hops := 0
	if found {
		hops = len(path.Weights)
	}
	s.logger.LogShortestPath(ctx, a, b, hops, found)

	return path, found
}

// MarkConnected records that a new transition state directly links two
// admitted minima by zeroing their planning edge.
func (s *Session) MarkConnected(ctx context.Context, a, b core.MinimumID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	err := translateError(s.dg.MarkConnected(a, b))
	s.logger.LogMarkConnected(ctx, a, b, err)

	return err
}

// MarkUnproductive records a failed connection attempt so the pair is never
// suggested again. An established connection is silently preserved.
func (s *Session) MarkUnproductive(ctx context.Context, a, b core.MinimumID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.dg.MarkUnproductive(a, b)
	s.logger.LogMarkUnproductive(ctx, a, b)
}

// Merge folds the minimum drop into keep after the external duplicate
// detection declared them structurally identical. Edges, cached distances
// and queued writes move onto keep; drop is removed from both graphs and
// the store, and transition state records referencing drop are rewritten.
func (s *Session) Merge(ctx context.Context, keep, drop core.MinimumID) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	err := translateError(s.merge(ctx, keep, drop))
	duration := time.Since(start)
	s.metrics.RecordMerge(duration, err)
	s.logger.LogMerge(ctx, keep, drop, err)

	return err
}

func (s *Session) merge(ctx context.Context, keep, drop core.MinimumID) error {
	if err := s.dg.Merge(keep, drop); err != nil {
		return err
	}

	s.cg.MergeMinima(keep, drop)

	// Rewrite transition state records so a later rebuild of the
	// connectivity graph does not resurrect the dropped minimum.
	var rewrite []model.TransitionState

	for ts, err := range s.st.TransitionStates(ctx) {
		if err != nil {
			return err
		}

		if ts.Min1 != drop && ts.Min2 != drop {
			continue
		}

		if ts.Min1 == drop {
			ts.Min1 = keep
		}
		if ts.Min2 == drop {
			ts.Min2 = keep
		}

		rewrite = append(rewrite, ts)
	}

	for _, ts := range rewrite {
		if err := s.st.PutTransitionState(ctx, ts); err != nil {
			return err
		}
	}

	return s.st.DeleteMinimum(ctx, drop)
}

// CheckConsistency scans the planning graph and repairs violations of the
// zero weight invariant in place. The report tells whether a genuine
// inconsistency was found.
func (s *Session) CheckConsistency(ctx context.Context) (distgraph.Report, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return distgraph.Report{}, ErrClosed
	}

	report, err := s.dg.CheckConsistency(ctx)
	err = translateError(err)
	duration := time.Since(start)
	s.metrics.RecordRepair(report.EdgesChecked, report.ForcedZero+report.Reweighted, duration)
	s.logger.LogRepair(ctx, report.EdgesChecked, report.Redundant, report.ForcedZero, report.Reweighted, err)

	return report, err
}

// FlushPending writes queued distance entries to the store in bulk. Without
// force it is a no-op below the flush threshold. Returns the number of
// entries written.
func (s *Session) FlushPending(ctx context.Context, force bool) (int, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	return s.flushPending(ctx, force, start)
}

func (s *Session) flushPending(ctx context.Context, force bool, start time.Time) (int, error) {
	n, err := s.cache.FlushPending(ctx, force)
	err = translateError(err)
	duration := time.Since(start)
	s.metrics.RecordFlush(n, duration, err)
	s.logger.LogFlush(ctx, n, force, err)

	return n, err
}

// Admitted reports whether a minimum is part of the planning graph.
func (s *Session) Admitted(id core.MinimumID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dg.Contains(id)
}

// Connected reports whether two minima are connected through known
// transition states.
func (s *Session) Connected(a, b core.MinimumID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cg.AreConnected(a, b)
}

// Stats is a snapshot of session state.
type Stats struct {
	// Minima is the number of minima known to the connectivity graph.
	Minima int

	// Components is the number of connectivity components.
	Components int

	// Admitted is the number of minima in the planning graph.
	Admitted int

	// CachedDistances is the number of distances resident in memory.
	CachedDistances int

	// PendingWrites is the number of distances queued for persistence.
	PendingWrites int
}

// Stats returns statistics about the session.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Minima:          s.cg.Len(),
		Components:      s.cg.ComponentCount(),
		Admitted:        s.dg.Len(),
		CachedDistances: s.cache.Len(),
		PendingWrites:   s.cache.PendingCount(),
	}
}
