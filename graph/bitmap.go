package graph

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/landgo/core"
)

// Bitmap is a set of minima backed by a 32-bit Roaring Bitmap.
// Component membership sets can grow to the whole landscape, so a compressed
// representation keeps union and iteration cheap.
type Bitmap struct {
	rb *roaring.Bitmap
}

// NewBitmap creates a new empty bitmap.
func NewBitmap() *Bitmap {
	return &Bitmap{
		rb: roaring.New(),
	}
}

// Add adds a MinimumID to the bitmap.
func (b *Bitmap) Add(id core.MinimumID) {
	b.rb.Add(uint32(id))
}

// Remove removes a MinimumID from the bitmap.
func (b *Bitmap) Remove(id core.MinimumID) {
	b.rb.Remove(uint32(id))
}

// Contains checks if a MinimumID is in the bitmap.
func (b *Bitmap) Contains(id core.MinimumID) bool {
	return b.rb.Contains(uint32(id))
}

// IsEmpty returns true if the bitmap is empty.
func (b *Bitmap) IsEmpty() bool {
	return b.rb.IsEmpty()
}

// Cardinality returns the number of elements in the bitmap.
func (b *Bitmap) Cardinality() uint64 {
	return b.rb.GetCardinality()
}

// Clone returns a deep copy of the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{
		rb: b.rb.Clone(),
	}
}

// Or merges other into the bitmap.
func (b *Bitmap) Or(other *Bitmap) {
	b.rb.Or(other.rb)
}

// Iterator returns an iterator over the bitmap in ascending order.
func (b *Bitmap) Iterator() iter.Seq[core.MinimumID] {
	return func(yield func(core.MinimumID) bool) {
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(core.MinimumID(it.Next())) {
				return
			}
		}
	}
}

// ToSlice returns the members as a slice, ascending.
func (b *Bitmap) ToSlice() []core.MinimumID {
	out := make([]core.MinimumID, 0, b.rb.GetCardinality())
	for id := range b.Iterator() {
		out = append(out, id)
	}
	return out
}
