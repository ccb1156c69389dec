package visitor

import (
	"math"

	"github.com/streamrcf/rcforest/internal/tree"
)

// ImputeVisitor is the multi-path visitor that fills in missing
// coordinates (spec §4.5 "Imputation"). At a node whose cut dimension is
// one of the missing indexes, it explores both children and keeps the
// completion with the lower induced anomaly score; elsewhere it descends
// canonically, refining that score through the same p-blended recurrence
// ScoreVisitor uses.
type ImputeVisitor struct {
	point    []float64
	missing  map[int]bool
	treeMass int64

	result []float64
	score  float64
}

func NewImputeVisitor(point []float64, missingIndexes []int, treeMass int64) *ImputeVisitor {
	missing := make(map[int]bool, len(missingIndexes))
	for _, idx := range missingIndexes {
		missing[idx] = true
	}
	return &ImputeVisitor{
		point:    append([]float64(nil), point...),
		missing:  missing,
		treeMass: treeMass,
		score:    math.Inf(1),
	}
}

func (v *ImputeVisitor) Trigger(node tree.NodeView) bool {
	return v.missing[node.CutDimension()]
}

func (v *ImputeVisitor) NewCopy() tree.MultiVisitor {
	return &ImputeVisitor{
		point:    append([]float64(nil), v.point...),
		missing:  v.missing,
		treeMass: v.treeMass,
		score:    math.Inf(1),
	}
}

func (v *ImputeVisitor) Combine(other tree.MultiVisitor) {
	o, ok := other.(*ImputeVisitor)
	if !ok || o.result == nil {
		return
	}
	if o.score < v.score {
		v.score = o.score
		v.result = o.result
	}
}

func (v *ImputeVisitor) AcceptLeaf(leaf tree.NodeView, depth int) {
	candidate := append([]float64(nil), v.point...)
	leafPoint := leaf.Point()
	for idx := range v.missing {
		candidate[idx] = leafPoint[idx]
	}
	sv := NewScoreVisitor(candidate, v.treeMass, 1)
	sv.AcceptLeaf(leaf, depth)
	if sv.score < v.score {
		v.score = sv.score
		v.result = candidate
	}
}

func (v *ImputeVisitor) Accept(node tree.NodeView, depth int) {
	if v.result == nil {
		return
	}
	box := node.BoundingBox()
	oldRange := box.RangeSum
	newRange := box.MergedWithPoint(v.result).RangeSum
	if newRange <= oldRange {
		return
	}
	p := (newRange - oldRange) / newRange
	v.score = p*scoreUnseen(depth, node.Mass()) + (1-p)*v.score
}

func (v *ImputeVisitor) Result() interface{} { return v.result }

// Score returns the induced anomaly score of the chosen completion, so a
// forest-level aggregator can pick the best completion across trees.
func (v *ImputeVisitor) Score() float64 { return v.score }
