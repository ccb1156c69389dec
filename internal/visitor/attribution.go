package visitor

import (
	"github.com/streamrcf/rcforest/internal/tree"
	"github.com/streamrcf/rcforest/pkg/model"
)

// AttributionVisitor runs the same recurrence as ScoreVisitor but keeps a
// per-dimension, per-side (low/high) DiVector whose total sum reproduces
// the scalar score (spec §4.5 "Anomaly attribution").
type AttributionVisitor struct {
	point         []float64
	treeMass      int64
	seenThreshold int64
	di            *model.DiVector
}

func NewAttributionVisitor(dimensions int, point []float64, treeMass int64, seenThreshold int64) *AttributionVisitor {
	return &AttributionVisitor{
		point:         point,
		treeMass:      treeMass,
		seenThreshold: seenThreshold,
		di:            model.NewDiVector(dimensions),
	}
}

func (v *AttributionVisitor) AcceptLeaf(leaf tree.NodeView, depth int) {
	var score float64
	if pointsEqual(leaf.Point(), v.point) && leaf.Mass() > v.seenThreshold {
		score = damp(leaf.Mass(), v.treeMass) * scoreSeen(depth, leaf.Mass())
	} else {
		score = scoreUnseen(depth, leaf.Mass())
	}
	// No separation direction is known at the leaf itself; split the
	// contribution evenly across both sides of every dimension.
	share := score / float64(2*len(v.point))
	for d := range v.point {
		v.di.Low[d] = share
		v.di.High[d] = share
	}
}

func (v *AttributionVisitor) Accept(node tree.NodeView, depth int) {
	box := node.BoundingBox()
	oldRange := box.RangeSum
	newRange := box.MergedWithPoint(v.point).RangeSum
	if newRange <= oldRange {
		return
	}
	p := (newRange - oldRange) / newRange
	contribution := p * scoreUnseen(depth, node.Mass())
	spread := newRange - oldRange

	v.di.Scale(1 - p)

	for d := range v.point {
		var delta float64
		low := v.point[d] < box.Min[d]
		high := v.point[d] > box.Max[d]
		switch {
		case low:
			delta = box.Min[d] - v.point[d]
		case high:
			delta = v.point[d] - box.Max[d]
		default:
			continue
		}
		share := contribution * delta / spread
		if low {
			v.di.Low[d] += share
		} else {
			v.di.High[d] += share
		}
	}
}

func (v *AttributionVisitor) Result() interface{} { return v.di }
