// Package align defines the structural-alignment distance contract consumed
// by the distance cache.
//
// The alignment routine is the expensive collaborator of the whole planner:
// for real systems it minimizes the distance between two configurations over
// permutational, rotational and translational symmetry. This package only
// fixes the calling convention and ships cheap reference implementations for
// tests and simple systems.
package align

import (
	"fmt"
	"math"
)

// Result is the outcome of one alignment.
//
// AlignedA and AlignedB are the input coordinates moved into optimal mutual
// alignment. Callers that only need the scalar distance may ignore them.
type Result struct {
	Dist     float64
	AlignedA []float64
	AlignedB []float64
}

// Func computes the optimized distance between two configurations.
//
// Implementations must be symmetric and deterministic for a given pair of
// coordinate sets (up to realignment) and must return a non-negative
// distance. They may be arbitrarily expensive.
type Func func(a, b []float64) (Result, error)

// ErrCoordsMismatch indicates two configurations of different size.
type ErrCoordsMismatch struct {
	LenA int
	LenB int
}

func (e *ErrCoordsMismatch) Error() string {
	return fmt.Sprintf("coords length mismatch: %d vs %d", e.LenA, e.LenB)
}

// Cartesian is the trivial alignment: plain Euclidean distance over the
// flattened coordinates with identity realignment. Suitable for systems
// without continuous or permutational symmetry, and for tests.
func Cartesian(a, b []float64) (Result, error) {
	if len(a) != len(b) {
		return Result{}, &ErrCoordsMismatch{LenA: len(a), LenB: len(b)}
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return Result{
		Dist:     math.Sqrt(sum),
		AlignedA: a,
		AlignedB: b,
	}, nil
}

// Periodic returns an alignment for orthorhombic periodic boxes: each
// Cartesian component is wrapped to its minimum image before the Euclidean
// distance is taken. boxvec holds the box lengths per spatial dimension;
// coordinates are interpreted as consecutive points of len(boxvec)
// components each.
func Periodic(boxvec []float64) Func {
	return func(a, b []float64) (Result, error) {
		if len(a) != len(b) {
			return Result{}, &ErrCoordsMismatch{LenA: len(a), LenB: len(b)}
		}
		if len(boxvec) == 0 || len(a)%len(boxvec) != 0 {
			return Result{}, fmt.Errorf("coords length %d not divisible by box dimension %d", len(a), len(boxvec))
		}

		aligned := make([]float64, len(b))
		var sum float64
		for i := range a {
			box := boxvec[i%len(boxvec)]
			d := a[i] - b[i]
			d -= box * math.Round(d/box)
			aligned[i] = a[i] - d
			sum += d * d
		}

		return Result{
			Dist:     math.Sqrt(sum),
			AlignedA: a,
			AlignedB: aligned,
		}, nil
	}
}
