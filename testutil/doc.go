// Package testutil provides testing utilities for landgo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random landscape coordinates and
// deterministic clustered minima layouts.
//
// # Random Coordinate Generation
//
//	rng := testutil.NewRNG(seed)
//	coords := rng.Coords(3, 10)            // uniform [0, 10) per axis
//	nearby := rng.CoordsNear(coords, 0.5)  // gaussian displacement
//
// # Clustered Landscapes
//
//	all := rng.ClusteredCoords(20, 3, 2, 100, 0.5)
//
// Member i belongs to cluster i%clusters, so tests can tell intra-cluster
// pairs from inter-cluster pairs without extra bookkeeping.
package testutil
