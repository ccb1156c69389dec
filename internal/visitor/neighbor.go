package visitor

import (
	"github.com/streamrcf/rcforest/internal/tree"
	"github.com/streamrcf/rcforest/pkg/model"
)

// NeighborVisitor returns the sampled point nearest the query, by L-inf
// box-distance, if it is within threshold (spec §4.5 "Near-neighbor").
// Single-path traversal only reaches the one leaf consistent with the
// query's own cuts, so there is nothing left to compare at ancestors.
type NeighborVisitor struct {
	point     []float64
	threshold float64
	best      *model.Neighbor
}

func NewNeighborVisitor(point []float64, threshold float64) *NeighborVisitor {
	return &NeighborVisitor{point: point, threshold: threshold}
}

func (v *NeighborVisitor) AcceptLeaf(leaf tree.NodeView, depth int) {
	leafPoint := leaf.Point()
	dist := linfDistance(v.point, leafPoint)
	if dist > v.threshold {
		return
	}
	v.best = &model.Neighbor{
		Point:           append([]float64(nil), leafPoint...),
		Distance:        dist,
		SequenceIndexes: append([]int64(nil), leaf.SequenceIndexes()...),
	}
}

func (v *NeighborVisitor) Accept(node tree.NodeView, depth int) {}

func (v *NeighborVisitor) Result() interface{} { return v.best }
