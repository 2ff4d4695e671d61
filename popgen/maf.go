package popgen

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/breedkit/gblup/genotype"
)

// MarkerSet is a set of marker indices backed by a 32-bit roaring bitmap.
type MarkerSet struct {
	rb *roaring.Bitmap
}

// NewMarkerSet creates an empty marker set.
func NewMarkerSet() *MarkerSet {
	return &MarkerSet{
		rb: roaring.New(),
	}
}

// Add adds a marker index to the set.
func (s *MarkerSet) Add(j int) {
	s.rb.Add(uint32(j))
}

// Contains checks whether a marker index is in the set.
func (s *MarkerSet) Contains(j int) bool {
	return s.rb.Contains(uint32(j))
}

// Cardinality returns the number of markers in the set.
func (s *MarkerSet) Cardinality() uint64 {
	return s.rb.GetCardinality()
}

// Indices materializes the set as a sorted slice of marker indices.
func (s *MarkerSet) Indices() []int {
	out := make([]int, 0, s.rb.GetCardinality())
	it := s.rb.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Iterator returns an iterator over the marker indices in ascending order.
func (s *MarkerSet) Iterator() iter.Seq[int] {
	return func(yield func(int) bool) {
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(int(it.Next())) {
				return
			}
		}
	}
}

// And intersects the set with another.
func (s *MarkerSet) And(other *MarkerSet) {
	s.rb.And(other.rb)
}

// Or unions the set with another.
func (s *MarkerSet) Or(other *MarkerSet) {
	s.rb.Or(other.rb)
}

// FilterMAF returns the markers whose minor-allele frequency is at least
// minMAF. Markers without any calls never pass.
func FilterMAF(mx *genotype.Matrix, minMAF float64) *MarkerSet {
	set := NewMarkerSet()
	for j := 0; j < mx.Markers(); j++ {
		calls, sum := mx.MarkerCalls(j)
		if calls == 0 {
			continue
		}
		freq := sum / (2 * float64(calls))
		if min(freq, 1-freq) >= minMAF {
			set.Add(j)
		}
	}
	return set
}
