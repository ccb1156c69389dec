package rcforest

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsZeroDimensions(t *testing.T) {
	_, err := New(Options{Dimensions: 0})
	require.Error(t, err)
}

func TestNew_FillsDefaults(t *testing.T) {
	f, err := New(Options{Dimensions: 3})
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestForest_UpdateAndScore(t *testing.T) {
	opts := DefaultOptions()
	opts.Dimensions = 2
	opts.NumberOfTrees = 10
	opts.SampleSize = 64
	opts.OutputAfter = 20
	opts.RandomSeed = 42

	f, err := New(opts)
	require.NoError(t, err)

	jitter := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		point := []float64{jitter.Float64()*0.2 - 0.1, jitter.Float64()*0.2 - 0.1}
		_, err := f.Update(point)
		require.NoError(t, err)
	}

	inlier, err := f.Score([]float64{0, 0})
	require.NoError(t, err)
	outlier, err := f.Score([]float64{50, 50})
	require.NoError(t, err)

	assert.Greater(t, outlier, inlier)
}

func TestForest_DeterministicUnderFixedSeed(t *testing.T) {
	build := func() *Forest {
		opts := DefaultOptions()
		opts.Dimensions = 2
		opts.NumberOfTrees = 8
		opts.SampleSize = 32
		opts.OutputAfter = 10
		opts.RandomSeed = 7
		opts.ParallelExecutionEnabled = false

		f, err := New(opts)
		require.NoError(t, err)
		return f
	}

	a := build()
	b := build()

	jitter := rand.New(rand.NewPCG(3, 4))
	points := make([][]float64, 0, 100)
	for i := 0; i < 100; i++ {
		points = append(points, []float64{jitter.Float64(), jitter.Float64()})
	}

	for _, p := range points {
		_, err := a.Update(p)
		require.NoError(t, err)
		_, err = b.Update(p)
		require.NoError(t, err)
	}

	query := []float64{0.5, 0.5}
	scoreA, err := a.Score(query)
	require.NoError(t, err)
	scoreB, err := b.Score(query)
	require.NoError(t, err)

	assert.Equal(t, scoreA, scoreB)
}

func TestForest_ShutdownIsNoopWithTracingDisabled(t *testing.T) {
	f, err := New(Options{Dimensions: 2})
	require.NoError(t, err)

	require.NoError(t, f.Shutdown(context.Background()))
}

func TestNew_ConstructionTraceReportsPhases(t *testing.T) {
	opts := DefaultOptions()
	opts.Dimensions = 2
	opts.NumberOfTrees = 4
	opts.SampleSize = 16

	f, err := New(opts)
	require.NoError(t, err)

	trace := f.ConstructionTrace()
	assert.Contains(t, trace, "point store")
	assert.Contains(t, trace, "components")
	assert.Contains(t, trace, "wiring")
}

func TestForest_UpdateFloat32Widens(t *testing.T) {
	opts := DefaultOptions()
	opts.Dimensions = 2
	opts.NumberOfTrees = 3
	opts.SampleSize = 16

	f, err := New(opts)
	require.NoError(t, err)

	_, err = f.UpdateFloat32([]float32{1.5, -2.5})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.TotalUpdates())
}
