package forest

import (
	"math"

	"github.com/streamrcf/rcforest/pkg/model"
)

// SumScores implements the default sum-then-finisher aggregator (spec
// §4.7) for scalar visitor results: Σ result / numTrees.
func SumScores(perTree []float64) float64 {
	if len(perTree) == 0 {
		return 0
	}
	var sum float64
	for _, s := range perTree {
		sum += s
	}
	return sum / float64(len(perTree))
}

// NormalizeScore applies the fixed forest-level normalizer (spec §4.5
// "Normalization") to an already-averaged score.
func NormalizeScore(avgScore float64, treeMass int64) float64 {
	return avgScore / math.Log2(float64(treeMass)+1)
}

// SumDiVectors averages a DiVector per tree into one forest-level
// attribution, matching the same sum-then-finisher contract as SumScores.
func SumDiVectors(dimensions int, perTree []*model.DiVector) *model.DiVector {
	total := model.NewDiVector(dimensions)
	for _, di := range perTree {
		total.Add(di)
	}
	if len(perTree) > 0 {
		total.Scale(1 / float64(len(perTree)))
	}
	return total
}

// SumInterpolationMeasures averages an InterpolationMeasure per tree into
// one forest-level measure.
func SumInterpolationMeasures(dimensions int, perTree []*model.InterpolationMeasure) *model.InterpolationMeasure {
	total := model.NewInterpolationMeasure(dimensions)
	for _, m := range perTree {
		total.Add(m)
	}
	if len(perTree) > 0 {
		total.Scale(1 / float64(len(perTree)))
	}
	return total
}

// NearestNeighbor picks the closest of the per-tree candidates, discarding
// trees that found nothing within threshold. This is the forest-level
// finisher for the near-neighbor visitor: there is nothing to sum, only a
// single winner by distance.
func NearestNeighbor(perTree []*model.Neighbor) *model.Neighbor {
	var best *model.Neighbor
	for _, n := range perTree {
		if n == nil {
			continue
		}
		if best == nil || n.Distance < best.Distance {
			best = n
		}
	}
	return best
}

// imputeCandidate pairs a per-tree completion with the induced score the
// tree's own ImputeVisitor assigned it.
type imputeCandidate struct {
	point []float64
	score float64
}

// BestImputation picks the per-tree completion with the lowest induced
// anomaly score, the forest-level analogue of the per-node "lower induced
// score wins" rule the imputation visitor itself uses at trigger nodes.
func BestImputation(candidates []imputeCandidate) []float64 {
	var best *imputeCandidate
	for i := range candidates {
		c := candidates[i]
		if c.point == nil {
			continue
		}
		if best == nil || c.score < best.score {
			best = &c
		}
	}
	if best == nil {
		return nil
	}
	return best.point
}

// ConvergingAccumulator is the one-sided accumulator for approximate
// queries (spec §4.7): it accepts per-tree values until either every
// component has reported or the running mean's confidence interval is
// tight enough relative to precision, whichever comes first.
type ConvergingAccumulator struct {
	precision  float64
	minSamples int
	n          int
	sum        float64
	sumSq      float64
}

// NewConvergingAccumulator builds an accumulator that will not report
// converged before minSamples values have been observed, and thereafter
// considers itself converged once the sample standard error is within
// precision of the running mean.
func NewConvergingAccumulator(precision float64, minSamples int) *ConvergingAccumulator {
	return &ConvergingAccumulator{precision: precision, minSamples: minSamples}
}

// Observe folds one more per-tree value into the running estimate.
func (c *ConvergingAccumulator) Observe(value float64) {
	c.n++
	c.sum += value
	c.sumSq += value * value
}

// Converged reports whether enough values have been observed that the
// running mean's standard error is within the configured precision.
func (c *ConvergingAccumulator) Converged() bool {
	if c.n < c.minSamples {
		return false
	}
	mean := c.Mean()
	if mean == 0 {
		return true
	}
	variance := c.sumSq/float64(c.n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	stderr := math.Sqrt(variance / float64(c.n))
	return stderr <= c.precision*math.Abs(mean)
}

// Mean returns the running mean of every value observed so far.
func (c *ConvergingAccumulator) Mean() float64 {
	if c.n == 0 {
		return 0
	}
	return c.sum / float64(c.n)
}

// Count returns the number of values folded in so far.
func (c *ConvergingAccumulator) Count() int { return c.n }
