package testutil

import (
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Energy returns a pseudo-random energy in [low, high).
func (r *RNG) Energy(low, high float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return low + r.rand.Float64()*(high-low)
}

// Coords returns uniform coordinates in [0, boxSize) per axis.
func (r *RNG) Coords(dim int, boxSize float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coordsLocked(dim, boxSize)
}

// coordsLocked is the internal implementation (caller must hold lock).
func (r *RNG) coordsLocked(dim int, boxSize float64) []float64 {
	coords := make([]float64, dim)
	for i := range coords {
		coords[i] = r.rand.Float64() * boxSize
	}
	return coords
}

// CoordsNear returns center displaced by Gaussian noise with the given
// standard deviation per axis. Useful for building near-duplicate minima.
func (r *RNG) CoordsNear(center []float64, spread float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	coords := make([]float64, len(center))
	for i := range coords {
		coords[i] = center[i] + r.rand.NormFloat64()*spread
	}
	return coords
}

// ClusteredCoords generates coordinates clustered around random centroids.
// Member i belongs to cluster i%clusters. Centroids are uniform in
// [0, boxSize) per axis; members are centroid plus Gaussian noise with the
// given spread. Uses a single backing array for efficiency.
//
// With boxSize much larger than spread, intra-cluster distances stay far
// below inter-cluster distances, which is the layout the connectivity and
// planning tests rely on.
func (r *RNG) ClusteredCoords(num, dim, clusters int, boxSize, spread float64) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	centroids := make([][]float64, clusters)
	for i := range centroids {
		centroids[i] = r.coordsLocked(dim, boxSize)
	}

	data := make([]float64, num*dim)
	all := make([][]float64, num)

	for i := range num {
		centroid := centroids[i%clusters]
		coords := data[i*dim : (i+1)*dim]

		for j := range dim {
			coords[j] = centroid[j] + r.rand.NormFloat64()*spread
		}
		all[i] = coords
	}

	return all
}
