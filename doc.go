// Package landgo is an incremental connection planner for potential-energy
// landscapes.
//
// A landscape is a set of local energy minima linked by transition states
// (saddle points). Landgo decides which pair of minima a double-ended search
// should try to connect next, so the expensive structural-alignment and
// saddle-point searches run as rarely as possible. It maintains a complete
// weighted planning graph over admitted minima, keeps it consistent with the
// ground-truth connectivity graph, caches pairwise distances with deferred
// bulk persistence, folds duplicates, and survives partial failures without
// corrupting persisted state.
//
// # Quick Start
//
// In-memory session:
//
//	ctx := context.Background()
//	s, _ := landgo.Memory().Cartesian().Build(ctx)
//	defer s.Close()
//
//	a, _ := s.AddMinimum(ctx, -1.0, []float64{0, 0})
//	b, _ := s.AddMinimum(ctx, -1.2, []float64{3, 4})
//	_ = s.Initialize(ctx, a, b)
//
// Durable session on Badger:
//
//	s, _ := landgo.Badger("./data").Cartesian().Build(ctx)
//
// # Planning Loop
//
// A driver repeats: query the cheapest route, attack its weakest link, feed
// the findings back.
//
//	path, ok := s.ShortestPath(ctx, a.ID, b.ID)
//	pair, weight, _ := path.MaxEdge()
//	// run the expensive search on pair, then:
//	s.AddTransitionState(ctx, energy, coords, pair.A, pair.B) // success
//	s.MarkUnproductive(ctx, pair.A, pair.B)                   // failure
//
// The connect package ships a full reference driver around this loop.
//
// # Edge Weights
//
// Planning edges carry exactly one of three weights: 0 for pairs known to be
// connected, d*d for a cached alignment distance d (squaring favors chains
// of short hops), or distgraph.InfiniteWeight for pairs not worth retrying.
// Infinite edges stay traversable; callers decide when a path through one is
// hopeless.
//
// # Persistence
//
// Distances accumulate in memory and are flushed in bulk, either when the
// pending buffer crosses the configured threshold, explicitly via
// FlushPending, or on Close. The full session image can be written as a
// snapshot file or archived to a blob store and reopened elsewhere:
//
//	_ = s.SaveSnapshot(ctx, "run.snap")
//	s2, _ := landgo.OpenFromSnapshot(ctx, store.NewMemoryStore(), "run.snap", align.Cartesian)
package landgo
