// Package graph maintains the ground-truth connectivity graph of the
// landscape: one node per known minimum, one edge per non-degenerate
// transition state. It answers the two questions the planner keeps asking,
// "are these minima connected by some chain of transition states" and "which
// minima share a component", in near-constant time by tracking connected
// components as Roaring bitmap sets.
package graph

import (
	"context"
	"iter"

	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/model"
)

// Source yields persisted records for rebuilding the graph. A store
// implementation satisfies it.
type Source interface {
	Minima(ctx context.Context) iter.Seq2[model.Minimum, error]
	TransitionStates(ctx context.Context) iter.Seq2[model.TransitionState, error]
}

// Graph is the connectivity graph. It is not safe for concurrent mutation;
// the session serializes access.
type Graph struct {
	adj     map[core.MinimumID]map[core.MinimumID]struct{}
	comp    map[core.MinimumID]core.MinimumID // node -> component representative
	members map[core.MinimumID]*Bitmap       // representative -> component members
}

// New creates an empty connectivity graph.
func New() *Graph {
	return &Graph{
		adj:     make(map[core.MinimumID]map[core.MinimumID]struct{}),
		comp:    make(map[core.MinimumID]core.MinimumID),
		members: make(map[core.MinimumID]*Bitmap),
	}
}

// FromStore builds the graph from all persisted minima and transition states.
func FromStore(ctx context.Context, src Source) (*Graph, error) {
	g := New()
	for m, err := range src.Minima(ctx) {
		if err != nil {
			return nil, err
		}
		g.AddMinimum(m.ID)
	}
	for ts, err := range src.TransitionStates(ctx) {
		if err != nil {
			return nil, err
		}
		g.AddTransitionState(ts)
	}
	return g, nil
}

// AddMinimum registers a minimum as an isolated node. Idempotent.
func (g *Graph) AddMinimum(id core.MinimumID) {
	if _, ok := g.adj[id]; ok {
		return
	}
	g.adj[id] = make(map[core.MinimumID]struct{})
	g.comp[id] = id
	bm := NewBitmap()
	bm.Add(id)
	g.members[id] = bm
}

// AddTransitionState links the endpoints of ts. Degenerate states (equal
// endpoints after a merge) register the node but add no edge.
func (g *Graph) AddTransitionState(ts model.TransitionState) {
	g.AddMinimum(ts.Min1)
	if ts.Degenerate() {
		return
	}
	g.AddMinimum(ts.Min2)
	g.link(ts.Min1, ts.Min2)
}

func (g *Graph) link(a, b core.MinimumID) {
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}

	ra, rb := g.comp[a], g.comp[b]
	if ra == rb {
		return
	}

	// Union by size: fold the smaller component into the larger one.
	ma, mb := g.members[ra], g.members[rb]
	if ma.Cardinality() < mb.Cardinality() {
		ra, rb = rb, ra
		ma, mb = mb, ma
	}
	for id := range mb.Iterator() {
		g.comp[id] = ra
	}
	ma.Or(mb)
	delete(g.members, rb)
}

// RemoveMinimum removes a node and its incident edges. Removing a node can
// split its component, so membership for the remainder is recomputed by
// traversal.
func (g *Graph) RemoveMinimum(id core.MinimumID) {
	neighbors, ok := g.adj[id]
	if !ok {
		return
	}

	rep := g.comp[id]
	old := g.members[rep]

	for n := range neighbors {
		delete(g.adj[n], id)
	}
	delete(g.adj, id)
	delete(g.comp, id)
	delete(g.members, rep)
	old.Remove(id)

	g.rebuildComponents(old)
}

// rebuildComponents reassigns representatives and membership for the nodes
// in seed by breadth-first traversal over the current adjacency.
func (g *Graph) rebuildComponents(seed *Bitmap) {
	visited := NewBitmap()
	for start := range seed.Iterator() {
		if visited.Contains(start) {
			continue
		}

		bm := NewBitmap()
		frontier := []core.MinimumID{start}
		visited.Add(start)
		bm.Add(start)
		for len(frontier) > 0 {
			cur := frontier[len(frontier)-1]
			frontier = frontier[:len(frontier)-1]
			for n := range g.adj[cur] {
				if visited.Contains(n) {
					continue
				}
				visited.Add(n)
				bm.Add(n)
				frontier = append(frontier, n)
			}
		}

		for id := range bm.Iterator() {
			g.comp[id] = start
		}
		g.members[start] = bm
	}
}

// MergeMinima repoints all of drop's edges onto keep and removes drop.
// Used when the duplicate-detection capability folds two minima together.
func (g *Graph) MergeMinima(keep, drop core.MinimumID) {
	if _, ok := g.adj[drop]; !ok {
		return
	}
	g.AddMinimum(keep)
	for n := range g.adj[drop] {
		if n == keep {
			continue
		}
		g.link(keep, n)
	}
	g.RemoveMinimum(drop)
}

// AreConnected reports whether a and b share a connected component.
func (g *Graph) AreConnected(a, b core.MinimumID) bool {
	ra, ok := g.comp[a]
	if !ok {
		return false
	}
	rb, ok := g.comp[b]
	if !ok {
		return false
	}
	return ra == rb
}

// ComponentOf returns the membership set of id's component. The returned
// bitmap is live graph state; callers must not mutate it. The second return
// is false for unknown minima.
func (g *Graph) ComponentOf(id core.MinimumID) (*Bitmap, bool) {
	rep, ok := g.comp[id]
	if !ok {
		return nil, false
	}
	return g.members[rep], true
}

// Contains reports whether id is a known node.
func (g *Graph) Contains(id core.MinimumID) bool {
	_, ok := g.adj[id]
	return ok
}

// Len returns the number of known minima.
func (g *Graph) Len() int {
	return len(g.adj)
}

// ComponentCount returns the number of connected components.
func (g *Graph) ComponentCount() int {
	return len(g.members)
}

// Degree returns the number of distinct neighbors of id.
func (g *Graph) Degree(id core.MinimumID) int {
	return len(g.adj[id])
}

// Minima iterates over all known minima in unspecified order.
func (g *Graph) Minima() iter.Seq[core.MinimumID] {
	return func(yield func(core.MinimumID) bool) {
		for id := range g.adj {
			if !yield(id) {
				return
			}
		}
	}
}

// Replace swaps this graph's state for other's. The planner calls this after
// the driver rebuilt the ground truth from the store following bulk external
// mutation.
func (g *Graph) Replace(other *Graph) {
	g.adj = other.adj
	g.comp = other.comp
	g.members = other.members
}
