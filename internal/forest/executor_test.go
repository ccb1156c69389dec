package forest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_SequentialRunsInIndexOrder(t *testing.T) {
	e := NewExecutor(1)
	var order []int

	results, err := e.Run(context.Background(), 5, func(_ context.Context, idx int) (interface{}, error) {
		order = append(order, idx)
		return idx * idx, nil
	})
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i*i, r.(int))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestExecutor_ParallelPreservesResultOrder(t *testing.T) {
	e := NewExecutor(4)

	results, err := e.Run(context.Background(), 50, func(_ context.Context, idx int) (interface{}, error) {
		return idx, nil
	})
	require.NoError(t, err)
	require.Len(t, results, 50)
	for i, r := range results {
		assert.Equal(t, i, r.(int))
	}
}

func TestExecutor_ZeroComponentsReturnsNil(t *testing.T) {
	e := NewExecutor(2)
	results, err := e.Run(context.Background(), 0, func(_ context.Context, idx int) (interface{}, error) {
		return idx, nil
	})
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestExecutor_PropagatesFirstError(t *testing.T) {
	e := NewExecutor(2)
	boom := errors.New("boom")

	_, err := e.Run(context.Background(), 3, func(_ context.Context, idx int) (interface{}, error) {
		if idx == 1 {
			return nil, boom
		}
		return idx, nil
	})
	require.Error(t, err)
	assert.Equal(t, boom, err)
}
