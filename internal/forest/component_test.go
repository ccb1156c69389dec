package forest

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamrcf/rcforest/internal/pointstore"
	"github.com/streamrcf/rcforest/internal/sampler"
	"github.com/streamrcf/rcforest/internal/tree"
)

func newTestComponent(t *testing.T, capacity int, ps *pointstore.PointStore) *Component {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	s, err := sampler.New(capacity, 0.001, rng)
	require.NoError(t, err)
	tr, err := tree.NewTree(ps.Dimensions(), capacity, 1.0, rng, ps, true, false)
	require.NoError(t, err)
	return NewComponent(s, tr)
}

func TestComponent_UpdateAddsPointWhenAccepted(t *testing.T) {
	ps := pointstore.New(2, 16)
	c := newTestComponent(t, 4, ps)

	ref, err := ps.Add([]float64{1, 2})
	require.NoError(t, err)

	result, err := c.Update(ref, 0)
	require.NoError(t, err)
	assert.False(t, result.Noop)
	assert.Equal(t, int32(noRef), int32(result.Deleted))
	assert.Equal(t, 1, c.Tree.Size())
}

func TestComponent_UpdateFillsCapacityThenEvicts(t *testing.T) {
	ps := pointstore.New(2, 64)
	capacity := 4
	c := newTestComponent(t, capacity, ps)

	var sawEviction bool
	for i := 0; i < 40; i++ {
		ref, err := ps.Add([]float64{float64(i), float64(i * 2)})
		require.NoError(t, err)
		result, err := c.Update(ref, int64(i))
		require.NoError(t, err)
		if !result.Noop && result.Deleted != noRef {
			sawEviction = true
		}
		assert.LessOrEqual(t, c.Tree.Size(), capacity)
		assert.LessOrEqual(t, c.Sampler.Size(), capacity)
	}
	assert.True(t, sawEviction, "expected at least one eviction once the sampler filled up")
}

func TestComponent_SamplerAndTreeStaySizeConsistent(t *testing.T) {
	ps := pointstore.New(2, 64)
	capacity := 5
	c := newTestComponent(t, capacity, ps)

	for i := 0; i < 30; i++ {
		ref, err := ps.Add([]float64{float64(i % 7), float64(-i % 5)})
		require.NoError(t, err)
		_, err = c.Update(ref, int64(i))
		require.NoError(t, err)
	}

	assert.Equal(t, int64(c.Sampler.Size()), c.Tree.Mass())
}
