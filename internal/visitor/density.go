package visitor

import (
	"github.com/streamrcf/rcforest/internal/tree"
	"github.com/streamrcf/rcforest/pkg/model"
)

// DensityVisitor accumulates an interpolation-based density estimate: mass
// and distance contributions at the matched leaf, plus a probability-mass
// contribution at every separating ancestor (spec §4.5 "Simple density").
type DensityVisitor struct {
	point   []float64
	measure *model.InterpolationMeasure
}

func NewDensityVisitor(dimensions int, point []float64) *DensityVisitor {
	return &DensityVisitor{point: point, measure: model.NewInterpolationMeasure(dimensions)}
}

func (v *DensityVisitor) AcceptLeaf(leaf tree.NodeView, depth int) {
	leafPoint := leaf.Point()
	for d := range v.point {
		dist := leafPoint[d] - v.point[d]
		if dist < 0 {
			dist = -dist
		}
		if v.point[d] <= leafPoint[d] {
			v.measure.Distances.Low[d] += dist
			v.measure.Measure.Low[d] += float64(leaf.Mass())
		} else {
			v.measure.Distances.High[d] += dist
			v.measure.Measure.High[d] += float64(leaf.Mass())
		}
	}
}

func (v *DensityVisitor) Accept(node tree.NodeView, depth int) {
	box := node.BoundingBox()
	oldRange := box.RangeSum
	newRange := box.MergedWithPoint(v.point).RangeSum
	if newRange <= oldRange {
		return
	}
	p := (newRange - oldRange) / newRange
	for d := range v.point {
		if v.point[d] < box.Min[d] {
			v.measure.ProbMass.Low[d] += p * (box.Min[d] - v.point[d])
		} else if v.point[d] > box.Max[d] {
			v.measure.ProbMass.High[d] += p * (v.point[d] - box.Max[d])
		}
	}
}

func (v *DensityVisitor) Result() interface{} { return v.measure }

// FinishDensity summarizes an InterpolationMeasure (at forest level, the
// measure already averaged across trees) into a scalar density:
// accumulated mass per unit of accumulated distance and separation
// probability.
func FinishDensity(measure *model.InterpolationMeasure) model.DensityOutput {
	totalMass := measure.Measure.Sum()
	totalSpread := measure.Distances.Sum() + measure.ProbMass.Sum()
	if totalSpread == 0 {
		return model.DensityOutput{Density: 0, Measure: measure}
	}
	return model.DensityOutput{Density: totalMass / totalSpread, Measure: measure}
}
