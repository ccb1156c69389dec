package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Execute(t *testing.T) {
	pool := NewWorkerPool[int, int](DefaultPoolConfig())

	inputs := []int{1, 2, 3, 4, 5}
	results := pool.ExecuteFunc(context.Background(), inputs, func(ctx context.Context, n int) (int, error) {
		return n * n, nil
	})

	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		want := inputs[i] * inputs[i]
		if r.Result != want {
			t.Errorf("result %d: expected %d, got %d", i, want, r.Result)
		}
		if r.Error != nil {
			t.Errorf("result %d: unexpected error %v", i, r.Error)
		}
	}
}

func TestWorkerPool_SequentialSingleWorker(t *testing.T) {
	pool := NewWorkerPool[int, int](DefaultPoolConfig().WithWorkers(1))

	var order []int
	inputs := []int{0, 1, 2, 3, 4}
	pool.ExecuteFunc(context.Background(), inputs, func(ctx context.Context, n int) (int, error) {
		order = append(order, n)
		return n, nil
	})

	if len(order) != len(inputs) {
		t.Fatalf("expected %d executions, got %d", len(inputs), len(order))
	}
	for i, v := range order {
		if v != i {
			t.Errorf("expected strict submission order with one worker, got %v", order)
			break
		}
	}
}

func TestWorkerPool_Timeout(t *testing.T) {
	config := DefaultPoolConfig().WithTimeout(10 * time.Millisecond)
	pool := NewWorkerPool[int, int](config)

	inputs := []int{1, 2, 3}
	results := pool.ExecuteFunc(context.Background(), inputs, func(ctx context.Context, n int) (int, error) {
		select {
		case <-time.After(100 * time.Millisecond):
			return n, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})

	for _, r := range results {
		if r.Error == nil {
			t.Error("expected timeout error, got nil")
		}
	}
}

func TestWorkerPool_Metrics(t *testing.T) {
	config := DefaultPoolConfig().WithMetrics()
	pool := NewWorkerPool[int, int](config)

	inputs := []int{1, 2, 3, 4, 5}
	pool.ExecuteFunc(context.Background(), inputs, func(ctx context.Context, n int) (int, error) {
		if n == 3 {
			return 0, errors.New("boom")
		}
		return n, nil
	})

	metrics := pool.Metrics()
	if metrics.TotalTasks != 5 {
		t.Errorf("expected 5 total tasks, got %d", metrics.TotalTasks)
	}
	if metrics.FailedTasks != 1 {
		t.Errorf("expected 1 failed task, got %d", metrics.FailedTasks)
	}
	if metrics.CompletedTasks != 4 {
		t.Errorf("expected 4 completed tasks, got %d", metrics.CompletedTasks)
	}
}

func TestMapReduce(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	sum := MapReduce(context.Background(), items, DefaultPoolConfig(),
		func(ctx context.Context, n int) float64 {
			return float64(n * n)
		},
		func(mapped []float64) float64 {
			total := 0.0
			for _, v := range mapped {
				total += v
			}
			return total
		},
	)

	if sum != 55.0 {
		t.Errorf("expected sum of squares 55.0, got %f", sum)
	}
}

func TestMapReduce_Empty(t *testing.T) {
	sum := MapReduce[int, float64, float64](context.Background(), nil, DefaultPoolConfig(),
		func(ctx context.Context, n int) float64 { return float64(n) },
		func(mapped []float64) float64 {
			total := 0.0
			for _, v := range mapped {
				total += v
			}
			return total
		},
	)
	if sum != 0 {
		t.Errorf("expected zero value for empty input, got %f", sum)
	}
}

func TestForEach(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var sum atomic.Int64

	processed, err := ForEach(context.Background(), items, DefaultPoolConfig(), func(ctx context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 5 {
		t.Errorf("expected 5 processed, got %d", processed)
	}
	if sum.Load() != 15 {
		t.Errorf("expected sum 15, got %d", sum.Load())
	}
}

func TestForEach_PropagatesError(t *testing.T) {
	items := []int{1, 2, 3}
	wantErr := errors.New("component failed")

	_, err := ForEach(context.Background(), items, DefaultPoolConfig(), func(ctx context.Context, n int) error {
		if n == 2 {
			return wantErr
		}
		return nil
	})

	if err == nil {
		t.Fatal("expected an error to be returned")
	}
}

func BenchmarkWorkerPool_Execute(b *testing.B) {
	pool := NewWorkerPool[int, int](DefaultPoolConfig())
	inputs := make([]int, 100)
	for i := range inputs {
		inputs[i] = i
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.ExecuteFunc(context.Background(), inputs, func(ctx context.Context, n int) (int, error) {
			return n * n, nil
		})
	}
}

func BenchmarkMapReduce(b *testing.B) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MapReduce(context.Background(), items, DefaultPoolConfig(),
			func(ctx context.Context, n int) float64 { return float64(n * n) },
			func(mapped []float64) float64 {
				total := 0.0
				for _, v := range mapped {
					total += v
				}
				return total
			},
		)
	}
}
