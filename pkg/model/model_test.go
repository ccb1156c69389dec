package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiVector_Sum(t *testing.T) {
	d := NewDiVector(3)
	d.High[0] = 1.5
	d.Low[0] = 0.5
	d.High[2] = 2.0

	assert.Equal(t, 4.0, d.Sum())
	assert.Equal(t, 3, d.Dimensions())
}

func TestDiVector_AddAndScale(t *testing.T) {
	a := NewDiVector(2)
	a.High[0] = 1
	a.Low[1] = 2

	b := NewDiVector(2)
	b.High[0] = 3
	b.Low[1] = 4

	a.Add(b)
	assert.Equal(t, []float64{4, 0}, a.High)
	assert.Equal(t, []float64{0, 6}, a.Low)

	a.Scale(0.5)
	assert.Equal(t, []float64{2, 0}, a.High)
	assert.Equal(t, []float64{0, 3}, a.Low)
}

func TestInterpolationMeasure_AddScale(t *testing.T) {
	m := NewInterpolationMeasure(2)
	m.Measure.High[0] = 1
	m.Distances.Low[1] = 2
	m.ProbMass.High[1] = 3

	other := NewInterpolationMeasure(2)
	other.Measure.High[0] = 1
	other.Distances.Low[1] = 2
	other.ProbMass.High[1] = 3

	m.Add(other)
	assert.Equal(t, 2.0, m.Measure.High[0])
	assert.Equal(t, 4.0, m.Distances.Low[1])
	assert.Equal(t, 6.0, m.ProbMass.High[1])

	m.Scale(0.5)
	assert.Equal(t, 1.0, m.Measure.High[0])
	assert.Equal(t, 2.0, m.Distances.Low[1])
	assert.Equal(t, 3.0, m.ProbMass.High[1])
}

func TestNewRangeVector(t *testing.T) {
	rv := NewRangeVector(5)
	assert.Len(t, rv.Values, 5)
	assert.Len(t, rv.Upper, 5)
	assert.Len(t, rv.Lower, 5)
}
