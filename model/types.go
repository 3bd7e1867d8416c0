package model

import (
	"fmt"

	"github.com/hupe1980/landgo/core"
)

// Minimum is a locally energy-minimal configuration of the landscape.
// Records are immutable once created; a merge supersedes one record by
// folding its identity into another, it never mutates this struct.
type Minimum struct {
	ID     core.MinimumID `json:"id"`
	Energy float64        `json:"energy"`
	Coords []float64      `json:"coords"`
}

// String returns a short representation for logs.
func (m Minimum) String() string {
	return fmt.Sprintf("Min(%d E=%.6g)", m.ID, m.Energy)
}

// TransitionState is a saddle point connecting exactly two minima.
// After a merge both endpoints may coincide; such a record is degenerate
// and logically ignored by the connectivity graph.
type TransitionState struct {
	ID     core.TransitionStateID `json:"id"`
	Energy float64                `json:"energy"`
	Coords []float64              `json:"coords"`
	Min1   core.MinimumID         `json:"min1"`
	Min2   core.MinimumID         `json:"min2"`
}

// Degenerate reports whether both endpoints coincide.
func (ts TransitionState) Degenerate() bool {
	return ts.Min1 == ts.Min2
}

// Pair returns the canonical endpoint pair.
func (ts TransitionState) Pair() core.Pair {
	return core.MakePair(ts.Min1, ts.Min2)
}

// String returns a short representation for logs.
func (ts TransitionState) String() string {
	return fmt.Sprintf("TS(%d %d<->%d E=%.6g)", ts.ID, ts.Min1, ts.Min2, ts.Energy)
}

// DistanceEntry is one persisted pairwise distance. Symmetric: the canonical
// pair stands for both orderings, and at most one value exists per pair.
type DistanceEntry struct {
	Pair core.Pair `json:"pair"`
	Dist float64   `json:"dist"`
}
