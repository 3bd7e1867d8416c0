// Package distgraph maintains the complete weighted graph used to plan which
// pair of minima to attempt connecting next.
//
// Every admitted minimum is a node with an edge to every other admitted
// minimum. An edge weight of zero means the endpoints are already connected
// through known transition states, InfiniteWeight means the pair should never
// be suggested again, and anything else is the squared pairwise distance. The
// minimum weight path between two nodes is a cheap, educated guess for the
// best chain of expensive connection attempts.
package distgraph

import (
	"context"
	"errors"
	"iter"

	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/distcache"
	"github.com/hupe1980/landgo/graph"
	"github.com/hupe1980/landgo/model"
	"github.com/hupe1980/landgo/store"
)

const (
	// InfiniteWeight marks an edge whose pair should never be retried. It
	// is deliberately finite so such edges stay traversable and a planner
	// can detect that the best remaining path is hopeless.
	InfiniteWeight = 1e20

	// zeroTol is the threshold below which an edge weight counts as a
	// known transition state connection.
	zeroTol = 1e-10

	// detourTol is the shortest path weight above which a nonzero edge
	// between connected endpoints counts as a genuine inconsistency
	// rather than a harmless redundancy.
	detourTol = 1e-5

	// overwriteTol guards established zero weight edges against being
	// overwritten by a never-retry sentinel.
	overwriteTol = 1e-6
)

// ErrNotAdmitted is returned when an operation references a minimum that has
// not been admitted to the graph.
var ErrNotAdmitted = errors.New("distgraph: minimum not admitted")

// Edge is one weighted edge between two admitted minima.
type Edge struct {
	Pair   core.Pair `json:"pair"`
	Weight float64   `json:"weight"`
}

// Graph is the planning graph over admitted minima.
//
// It is not safe for concurrent use. Mutations are expected to arrive from a
// single driver loop; callers that share one graph across goroutines must
// serialize access themselves.
type Graph struct {
	st     store.Store
	cg     *graph.Graph
	cache  *distcache.Cache
	minima map[core.MinimumID]model.Minimum
	adj    map[core.MinimumID]map[core.MinimumID]float64
}

// New creates an empty planning graph on top of the given store,
// connectivity graph and distance cache.
func New(st store.Store, cg *graph.Graph, cache *distcache.Cache) *Graph {
	return &Graph{
		st:     st,
		cg:     cg,
		cache:  cache,
		minima: make(map[core.MinimumID]model.Minimum),
		adj:    make(map[core.MinimumID]map[core.MinimumID]float64),
	}
}

// Restore rebuilds a graph from previously exported nodes and edges without
// recomputing any distances.
func Restore(st store.Store, cg *graph.Graph, cache *distcache.Cache, minima []model.Minimum, edges []Edge) *Graph {
	g := New(st, cg, cache)

	for _, m := range minima {
		g.minima[m.ID] = m
		g.adj[m.ID] = make(map[core.MinimumID]float64)
	}

	for _, e := range edges {
		g.setEdge(e.Pair.A, e.Pair.B, e.Weight)
	}

	return g
}

// Admit adds a minimum as a node with an edge to every other admitted
// minimum. Admitting an already admitted minimum is a no-op.
//
// Nodes in the same connectivity component get zero weight edges without any
// distance computation. All remaining edges are weighted with the squared
// pairwise distance, computed through the cache. The admission and the cache
// flush it may trigger form one atomic unit: on any failure the node, its
// edges and the staged writes are all discarded.
func (g *Graph) Admit(ctx context.Context, m model.Minimum) error {
	if _, ok := g.adj[m.ID]; ok {
		return nil
	}

	tx, err := g.st.Begin(ctx)
	if err != nil {
		return err
	}

	if err := g.admit(ctx, m); err != nil {
		g.removeNode(m.ID)
		_ = tx.Rollback()

		return err
	}

	batch := g.cache.TakePending(false)

	if len(batch) > 0 {
		if err := tx.WriteDistances(batch); err != nil {
			g.cache.Restore(batch)
			g.removeNode(m.ID)
			_ = tx.Rollback()

			return err
		}
	}

	if err := tx.Commit(); err != nil {
		g.cache.Restore(batch)
		g.removeNode(m.ID)

		return err
	}

	return nil
}

func (g *Graph) admit(ctx context.Context, m model.Minimum) error {
	g.minima[m.ID] = m
	g.adj[m.ID] = make(map[core.MinimumID]float64)

	if members, ok := g.cg.ComponentOf(m.ID); ok {
		for other := range members.Iterator() {
			if other == m.ID {
				continue
			}

			if _, admitted := g.adj[other]; admitted {
				g.setEdge(m.ID, other, 0)
			}
		}
	}

	for other, rec := range g.minima {
		if other == m.ID {
			continue
		}

		if _, ok := g.adj[m.ID][other]; ok {
			continue
		}

		d, err := g.cache.GetOrCompute(ctx, m, rec)
		if err != nil {
			return err
		}

		g.setEdge(m.ID, other, weightFor(d))
	}

	return nil
}

// MarkConnected records that a new transition state directly links two
// admitted minima by zeroing their edge. Zero weight does not propagate to
// the rest of the component here; that happens on future admissions or
// during a repair pass.
func (g *Graph) MarkConnected(a, b core.MinimumID) error {
	if _, ok := g.adj[a]; !ok {
		return ErrNotAdmitted
	}

	if _, ok := g.adj[b]; !ok {
		return ErrNotAdmitted
	}

	// A degenerate pair carries no edge.
	if a == b {
		return nil
	}

	g.setEdge(a, b, 0)

	return nil
}

// MarkUnproductive raises an edge to InfiniteWeight so the pair is never
// suggested again. An edge that already records a true connection is left
// untouched, and unknown endpoints are ignored.
func (g *Graph) MarkUnproductive(a, b core.MinimumID) {
	w, ok := g.Weight(a, b)
	if !ok {
		return
	}

	if w < overwriteTol {
		return
	}

	g.setEdge(a, b, InfiniteWeight)
}

// Merge folds drop into keep. Every edge incident to drop is transferred
// onto keep, keeping the lower weight when both minima already had an edge
// to the same node, and drop's node is removed. Cached distances and queued
// writes referencing drop are repointed to keep.
//
// Merging an unadmitted drop only repoints the cache. Keep must be admitted
// if drop is.
func (g *Graph) Merge(keep, drop core.MinimumID) error {
	if keep == drop {
		return nil
	}

	if _, ok := g.adj[drop]; ok {
		if _, ok := g.adj[keep]; !ok {
			return ErrNotAdmitted
		}

		for other, w2 := range g.adj[drop] {
			if other == keep {
				continue
			}

			w := w2
			if w1, ok := g.adj[keep][other]; ok {
				w = min(w1, w2)
			}

			g.setEdge(keep, other, w)
		}

		g.removeNode(drop)
	}

	g.cache.Repoint(keep, drop)

	return nil
}

// ReplaceConnectivity swaps the connectivity graph consulted by admissions
// and repair passes. Used after the driver rebuilds connectivity from
// scratch, for example following a merge cascade.
func (g *Graph) ReplaceConnectivity(cg *graph.Graph) {
	g.cg = cg
}

// Contains reports whether a minimum has been admitted.
func (g *Graph) Contains(id core.MinimumID) bool {
	_, ok := g.adj[id]

	return ok
}

// Len returns the number of admitted minima.
func (g *Graph) Len() int {
	return len(g.adj)
}

// Weight returns the weight of the edge between two admitted minima.
func (g *Graph) Weight(a, b core.MinimumID) (float64, bool) {
	nbrs, ok := g.adj[a]
	if !ok {
		return 0, false
	}

	w, ok := nbrs[b]

	return w, ok
}

// Minimum returns the admitted record for an id.
func (g *Graph) Minimum(id core.MinimumID) (model.Minimum, bool) {
	m, ok := g.minima[id]

	return m, ok
}

// Nodes iterates over the admitted minima.
func (g *Graph) Nodes() iter.Seq[model.Minimum] {
	return func(yield func(model.Minimum) bool) {
		for _, m := range g.minima {
			if !yield(m) {
				return
			}
		}
	}
}

// Edges iterates over all edges, each reported once in canonical pair order.
func (g *Graph) Edges() iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for a, nbrs := range g.adj {
			for b, w := range nbrs {
				if a >= b {
					continue
				}

				if !yield(Edge{Pair: core.MakePair(a, b), Weight: w}) {
					return
				}
			}
		}
	}
}

func (g *Graph) setEdge(a, b core.MinimumID, w float64) {
	g.adj[a][b] = w
	g.adj[b][a] = w
}

func (g *Graph) removeNode(id core.MinimumID) {
	for other := range g.adj[id] {
		delete(g.adj[other], id)
	}

	delete(g.adj, id)
	delete(g.minima, id)
}

// weightFor converts a distance into an edge weight. Squaring favors paths
// with many short edges over paths with fewer but longer edges.
func weightFor(dist float64) float64 {
	return dist * dist
}
