package distgraph

import (
	"context"
)

// Report summarizes one consistency repair pass.
type Report struct {
	// EdgesChecked is the number of edges scanned.
	EdgesChecked int

	// Redundant counts nonzero edges between connected endpoints where a
	// zero weight path already existed. These are harmless and were
	// zeroed for clarity.
	Redundant int

	// ForcedZero counts genuine inconsistencies where connected
	// endpoints had no zero weight path at all. The direct edge was
	// forced to zero.
	ForcedZero int

	// Reweighted counts genuine inconsistencies where a zero weight edge
	// joined endpoints that are not actually connected. The edge was
	// restored to its distance based weight.
	Reweighted int
}

// Inconsistent reports whether the pass found any genuine inconsistency.
// Repeated inconsistencies usually indicate a driver sequencing bug and
// deserve a warning level signal.
func (r Report) Inconsistent() bool {
	return r.ForcedZero+r.Reweighted > 0
}

// CheckConsistency scans every edge and repairs violations of the zero
// weight invariant: endpoints connected in the connectivity graph must be
// joined by a zero weight path, and zero weight edges must join connected
// endpoints. Violations are repaired in place and counted, never treated as
// fatal.
func (g *Graph) CheckConsistency(ctx context.Context) (Report, error) {
	var report Report

	edges := make([]Edge, 0, len(g.adj))
	for e := range g.Edges() {
		edges = append(edges, e)
	}

	for _, e := range edges {
		report.EdgesChecked++

		a, b := e.Pair.A, e.Pair.B
		connected := g.cg.AreConnected(a, b)
		zero := e.Weight < zeroTol

		switch {
		case connected && !zero:
			// A zero weight path elsewhere in the graph makes the
			// direct edge a mere redundancy. Without one the graph
			// missed a real connection.
			path, ok := g.ShortestPath(a, b)
			if ok && path.Total() <= detourTol {
				report.Redundant++
			} else {
				report.ForcedZero++
			}

			g.setEdge(a, b, 0)

		case !connected && zero:
			report.Reweighted++

			d, err := g.cache.GetOrCompute(ctx, g.minima[a], g.minima[b])
			if err != nil {
				return report, err
			}

			g.setEdge(a, b, weightFor(d))
		}
	}

	return report, nil
}
