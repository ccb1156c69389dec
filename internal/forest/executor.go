package forest

import (
	"context"

	"github.com/streamrcf/rcforest/pkg/parallel"
)

// Executor fans a per-component task out across every component in the
// forest and joins the results in component order (spec §4.8/§5:
// "parallel-by-tree fork/join over a bounded worker pool of size P").
// Setting P to 1 degenerates the same WorkerPool into the sequential,
// deterministic-replay executor rather than forking a second code path.
type Executor struct {
	pool *parallel.WorkerPool[int, interface{}]
}

// NewExecutor builds an Executor with maxWorkers concurrent workers.
// maxWorkers=1 is the sequential executor spec §5 requires for
// deterministic testing; parallelExecutionEnabled=false at the forest
// level always constructs one of these.
func NewExecutor(maxWorkers int) *Executor {
	cfg := parallel.DefaultPoolConfig().WithWorkers(maxWorkers)
	return &Executor{pool: parallel.NewWorkerPool[int, interface{}](cfg)}
}

// Run invokes fn once per index in [0, numComponents), returning the
// per-index results in index order and the first error encountered, if
// any. A worker panic is not recovered: spec §5 requires panics to
// propagate as a fatal forest error rather than be swallowed.
func (e *Executor) Run(ctx context.Context, numComponents int, fn func(ctx context.Context, idx int) (interface{}, error)) ([]interface{}, error) {
	if numComponents == 0 {
		return nil, nil
	}

	indexes := make([]int, numComponents)
	for i := range indexes {
		indexes[i] = i
	}

	results := e.pool.ExecuteFunc(ctx, indexes, fn)

	out := make([]interface{}, numComponents)
	var firstErr error
	for _, r := range results {
		out[r.Input] = r.Result
		if r.Error != nil && firstErr == nil {
			firstErr = r.Error
		}
	}
	return out, firstErr
}
