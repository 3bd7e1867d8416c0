package distgraph

import (
	"container/heap"
	"slices"

	"github.com/hupe1980/landgo/core"
	"github.com/hupe1980/landgo/queue"
)

// Path is an ordered walk through the planning graph. Weights holds the edge
// weight between each consecutive node pair, so len(Weights) is always
// len(Nodes)-1.
type Path struct {
	Nodes   []core.MinimumID
	Weights []float64
}

// Total returns the summed weight of the path.
func (p *Path) Total() float64 {
	total := 0.0
	for _, w := range p.Weights {
		total += w
	}

	return total
}

// MaxEdge returns the heaviest edge on the path, the weakest link a driver
// should attempt to connect next. The second return is the edge weight. A
// single node path has no edges and reports false.
func (p *Path) MaxEdge() (core.Pair, float64, bool) {
	if p == nil || len(p.Weights) == 0 {
		return core.Pair{}, 0, false
	}

	maxIdx := 0
	for i, w := range p.Weights {
		if w > p.Weights[maxIdx] {
			maxIdx = i
		}
	}

	return core.MakePair(p.Nodes[maxIdx], p.Nodes[maxIdx+1]), p.Weights[maxIdx], true
}

// ShortestPath returns the minimum weight path between two admitted minima
// using Dijkstra's algorithm. The second return is false when no path
// exists, which is a normal outcome rather than an error. Never-retry edges
// stay traversable, so a returned path may still contain an InfiniteWeight
// edge; callers decide whether such a path is worth pursuing.
func (g *Graph) ShortestPath(a, b core.MinimumID) (*Path, bool) {
	if _, ok := g.adj[a]; !ok {
		return nil, false
	}

	if _, ok := g.adj[b]; !ok {
		return nil, false
	}

	if a == b {
		return &Path{Nodes: []core.MinimumID{a}}, true
	}

	dist := map[core.MinimumID]float64{a: 0}
	prev := make(map[core.MinimumID]core.MinimumID)
	visited := make(map[core.MinimumID]struct{})

	pq := &queue.PriorityQueue{}
	heap.Push(pq, &queue.PriorityQueueItem{Node: a, Weight: 0})

	for pq.Len() > 0 {
		item, _ := heap.Pop(pq).(*queue.PriorityQueueItem)

		u := item.Node
		if _, seen := visited[u]; seen {
			continue
		}

		visited[u] = struct{}{}

		if u == b {
			break
		}

		for v, w := range g.adj[u] {
			if _, seen := visited[v]; seen {
				continue
			}

			alt := dist[u] + w
			if cur, ok := dist[v]; !ok || alt < cur {
				dist[v] = alt
				prev[v] = u

				heap.Push(pq, &queue.PriorityQueueItem{Node: v, Weight: alt})
			}
		}
	}

	if _, reached := visited[b]; !reached {
		return nil, false
	}

	nodes := []core.MinimumID{b}
	for cur := b; cur != a; {
		p, ok := prev[cur]
		if !ok {
			return nil, false
		}

		nodes = append(nodes, p)
		cur = p
	}

	slices.Reverse(nodes)

	weights := make([]float64, len(nodes)-1)
	for i := range weights {
		weights[i] = g.adj[nodes[i]][nodes[i+1]]
	}

	return &Path{Nodes: nodes, Weights: weights}, true
}
