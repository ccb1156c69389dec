package visitor

import "github.com/streamrcf/rcforest/internal/tree"

// ScoreVisitor computes the standard recursive anomaly score (spec §4.5
// "Anomaly score"). The forest normalizes the raw per-tree result by
// score / log2(treeMass + 1) after the traversal completes.
type ScoreVisitor struct {
	point         []float64
	treeMass      int64
	seenThreshold int64
	score         float64
}

// NewScoreVisitor builds a score visitor for point against a tree whose
// total mass is treeMass. An exact match uses scoreSeen instead of
// scoreUnseen only when the leaf's mass is strictly greater than
// seenThreshold.
func NewScoreVisitor(point []float64, treeMass int64, seenThreshold int64) *ScoreVisitor {
	return &ScoreVisitor{point: point, treeMass: treeMass, seenThreshold: seenThreshold}
}

func (v *ScoreVisitor) AcceptLeaf(leaf tree.NodeView, depth int) {
	if pointsEqual(leaf.Point(), v.point) && leaf.Mass() > v.seenThreshold {
		v.score = damp(leaf.Mass(), v.treeMass) * scoreSeen(depth, leaf.Mass())
		return
	}
	v.score = scoreUnseen(depth, leaf.Mass())
}

func (v *ScoreVisitor) Accept(node tree.NodeView, depth int) {
	box := node.BoundingBox()
	oldRange := box.RangeSum
	newRange := box.MergedWithPoint(v.point).RangeSum
	if newRange <= oldRange {
		// The box already contains the point: probability of separation is
		// zero at this node and at every ancestor above it, so the score is
		// already final.
		return
	}
	p := (newRange - oldRange) / newRange
	v.score = p*scoreUnseen(depth, node.Mass()) + (1-p)*v.score
}

func (v *ScoreVisitor) Result() interface{} { return v.score }

// Score returns the raw (un-normalized) scalar result.
func (v *ScoreVisitor) Score() float64 { return v.score }
