package core

// MinimumID is the stable identity key of a minimum.
// It is strictly 32-bit so hot-path structures (adjacency maps, component
// bitmaps, heap entries) stay dense and cheap.
type MinimumID uint32

// TransitionStateID is the stable identity key of a transition state.
type TransitionStateID uint32

// MaxMinimumID is the maximum possible value for a MinimumID.
const MaxMinimumID = ^MinimumID(0)

// Pair is a canonical unordered pair of minima. The constructor orders the
// endpoints, so Pair values compare equal regardless of argument order and
// can be used directly as map keys.
type Pair struct {
	A MinimumID `json:"a"`
	B MinimumID `json:"b"`
}

// MakePair returns the canonical pair for (a, b).
func MakePair(a, b MinimumID) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Contains reports whether id is one of the pair's endpoints.
func (p Pair) Contains(id MinimumID) bool {
	return p.A == id || p.B == id
}

// Other returns the endpoint opposite to id. It must only be called with one
// of the pair's endpoints.
func (p Pair) Other(id MinimumID) MinimumID {
	if p.A == id {
		return p.B
	}
	return p.A
}

// Replace returns the canonical pair with old substituted by new. Used when
// a merge repoints cached distances onto the surviving minimum.
func (p Pair) Replace(old, new MinimumID) Pair {
	a, b := p.A, p.B
	if a == old {
		a = new
	}
	if b == old {
		b = new
	}
	return MakePair(a, b)
}

// Degenerate reports whether both endpoints coincide.
func (p Pair) Degenerate() bool {
	return p.A == p.B
}

// Key packs the pair into a single uint64, suitable for ordered store keys.
func (p Pair) Key() uint64 {
	return uint64(p.A)<<32 | uint64(p.B)
}

// PairFromKey is the inverse of Pair.Key.
func PairFromKey(key uint64) Pair {
	return Pair{A: MinimumID(key >> 32), B: MinimumID(key)}
}
