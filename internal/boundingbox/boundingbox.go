// Package boundingbox implements the axis-aligned hyper-rectangle used by
// RandomCutTree to decide where a random cut falls, and by the density
// visitor to measure how much a query point would enlarge a subtree's box.
package boundingbox

import (
	"math"

	"github.com/streamrcf/rcforest/pkg/errors"
)

// BoundingBox is an axis-aligned hyper-rectangle with an incrementally
// maintained RangeSum, so merges never need to re-sum every dimension.
type BoundingBox struct {
	Min      []float64
	Max      []float64
	RangeSum float64
}

// FromPoint builds the degenerate (zero-volume) box containing exactly one
// point.
func FromPoint(point []float64) *BoundingBox {
	min := append([]float64(nil), point...)
	max := append([]float64(nil), point...)
	return &BoundingBox{Min: min, Max: max, RangeSum: 0}
}

// Dimensions returns the box's dimensionality.
func (b *BoundingBox) Dimensions() int {
	return len(b.Min)
}

// Range returns max[dim] - min[dim].
func (b *BoundingBox) Range(dim int) float64 {
	return b.Max[dim] - b.Min[dim]
}

// Contains reports whether point lies within [min, max] on every dimension.
func (b *BoundingBox) Contains(point []float64) bool {
	for i, v := range point {
		if v < b.Min[i] || v > b.Max[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of b.
func (b *BoundingBox) Clone() *BoundingBox {
	return &BoundingBox{
		Min:      append([]float64(nil), b.Min...),
		Max:      append([]float64(nil), b.Max...),
		RangeSum: b.RangeSum,
	}
}

// MergedWithPoint returns a new box that is the union of b and point,
// leaving b unmodified.
func (b *BoundingBox) MergedWithPoint(point []float64) *BoundingBox {
	out := b.Clone()
	out.MergePoint(point)
	return out
}

// MergePoint expands b in place to also cover point, updating RangeSum
// incrementally.
func (b *BoundingBox) MergePoint(point []float64) {
	for i, v := range point {
		if v < b.Min[i] {
			b.RangeSum += b.Min[i] - v
			b.Min[i] = v
		} else if v > b.Max[i] {
			b.RangeSum += v - b.Max[i]
			b.Max[i] = v
		}
	}
}

// Merged returns a new box that is the union of b and other, leaving both
// unmodified.
func (b *BoundingBox) Merged(other *BoundingBox) *BoundingBox {
	out := b.Clone()
	out.Merge(other)
	return out
}

// Merge expands b in place to also cover other, updating RangeSum
// incrementally.
func (b *BoundingBox) Merge(other *BoundingBox) {
	for i := range b.Min {
		if other.Min[i] < b.Min[i] {
			b.RangeSum += b.Min[i] - other.Min[i]
			b.Min[i] = other.Min[i]
		}
		if other.Max[i] > b.Max[i] {
			b.RangeSum += other.Max[i] - b.Max[i]
			b.Max[i] = other.Max[i]
		}
	}
}

// Equal reports exact (==, no tolerance) equality of every min and max
// coordinate between b and other.
func (b *BoundingBox) Equal(other *BoundingBox) bool {
	if other == nil || len(b.Min) != len(other.Min) {
		return false
	}
	for i := range b.Min {
		if b.Min[i] != other.Min[i] || b.Max[i] != other.Max[i] {
			return false
		}
	}
	return true
}

// DrawCut draws a uniform random cut over b: u in [0, RangeSum) selects a
// dimension by accumulating per-dimension ranges, then a uniform offset
// within that dimension's range gives the cut value. The half-open
// contract [min, max) is preserved by nudging a cut that lands exactly on
// max one ULP toward min. Fails with DegenerateBox if b has a zero
// RangeSum (a single point).
func (b *BoundingBox) DrawCut(u float64) (dim int, value float64, err error) {
	if b.RangeSum <= 0 {
		return 0, 0, errors.ErrDegenerateBox
	}

	target := u * b.RangeSum
	var acc float64
	for i := range b.Min {
		r := b.Range(i)
		if r <= 0 {
			continue
		}
		if target < acc+r {
			localOffset := target - acc
			value = b.Min[i] + localOffset
			if value == b.Max[i] && b.Min[i] < b.Max[i] {
				value = math.Nextafter(b.Max[i], b.Min[i])
			}
			return i, value, nil
		}
		acc += r
	}

	// Floating point rounding can push target to the edge of the final
	// dimension; fall back to the last dimension with positive range.
	for i := len(b.Min) - 1; i >= 0; i-- {
		if b.Range(i) > 0 {
			value = math.Nextafter(b.Max[i], b.Min[i])
			return i, value, nil
		}
	}
	return 0, 0, errors.ErrDegenerateBox
}
