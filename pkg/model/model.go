// Package model holds the value types exchanged across the forest's public
// API: the per-dimension attribution vector, near-neighbor result, density
// estimate and its interpolation measure, and extrapolated range forecast.
package model

// DiVector pairs a "low-side" and "high-side" signed contribution per
// dimension. Summing High and Low across all dimensions reproduces the
// scalar anomaly score that the same traversal would have produced.
type DiVector struct {
	High []float64
	Low  []float64
}

// NewDiVector allocates a zeroed DiVector with the given dimensionality.
func NewDiVector(dimensions int) *DiVector {
	return &DiVector{
		High: make([]float64, dimensions),
		Low:  make([]float64, dimensions),
	}
}

// Dimensions returns the point width this vector was built for.
func (d *DiVector) Dimensions() int {
	return len(d.High)
}

// Sum returns the scalar reduction: the total of every high- and low-side
// component. A score visitor's DiVector sums to its own scalar score.
func (d *DiVector) Sum() float64 {
	var total float64
	for i := range d.High {
		total += d.High[i] + d.Low[i]
	}
	return total
}

// Add accumulates other's components into d in place.
func (d *DiVector) Add(other *DiVector) {
	for i := range d.High {
		d.High[i] += other.High[i]
		d.Low[i] += other.Low[i]
	}
}

// Scale multiplies every component by s in place.
func (d *DiVector) Scale(s float64) {
	for i := range d.High {
		d.High[i] *= s
		d.Low[i] *= s
	}
}

// InterpolationMeasure carries the three DiVectors the density visitor
// accumulates while descending a tree: separation mass, box distance, and
// the probability mass implied by each. A finisher reduces it to a single
// scalar density.
type InterpolationMeasure struct {
	Measure   *DiVector
	Distances *DiVector
	ProbMass  *DiVector
}

// NewInterpolationMeasure allocates a zeroed measure for the given
// dimensionality.
func NewInterpolationMeasure(dimensions int) *InterpolationMeasure {
	return &InterpolationMeasure{
		Measure:   NewDiVector(dimensions),
		Distances: NewDiVector(dimensions),
		ProbMass:  NewDiVector(dimensions),
	}
}

// Add accumulates other's components into m in place.
func (m *InterpolationMeasure) Add(other *InterpolationMeasure) {
	m.Measure.Add(other.Measure)
	m.Distances.Add(other.Distances)
	m.ProbMass.Add(other.ProbMass)
}

// Scale multiplies every component by s in place.
func (m *InterpolationMeasure) Scale(s float64) {
	m.Measure.Scale(s)
	m.Distances.Scale(s)
	m.ProbMass.Scale(s)
}

// DensityOutput is the result of a density query: a scalar estimate plus
// the interpolation measure it was derived from, for callers that want the
// per-dimension breakdown.
type DensityOutput struct {
	Density float64
	Measure *InterpolationMeasure
}

// Neighbor is a sampled point within a query's distance threshold, together
// with its L-infinity box distance and the multiset of sequence indexes
// that inserted it (when storeSequenceIndexesEnabled is set).
type Neighbor struct {
	Point           []float64
	Distance        float64
	SequenceIndexes []int64
}

// RangeVector is an extrapolation result: a predicted value per horizon
// step, bracketed by an upper and lower bound derived from the spread of
// the forest's current sampler weights.
type RangeVector struct {
	Values []float64
	Upper  []float64
	Lower  []float64
}

// NewRangeVector allocates a zeroed range vector for the given horizon.
func NewRangeVector(horizon int) *RangeVector {
	return &RangeVector{
		Values: make([]float64, horizon),
		Upper:  make([]float64, horizon),
		Lower:  make([]float64, horizon),
	}
}
