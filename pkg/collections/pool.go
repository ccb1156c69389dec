package collections

import (
	"sync"
)

// SlicePool is a generic pool for slices of any type.
type SlicePool[T any] struct {
	pool       sync.Pool
	initialCap int
}

// NewSlicePool creates a new slice pool with the given initial capacity.
func NewSlicePool[T any](initialCap int) *SlicePool[T] {
	if initialCap <= 0 {
		initialCap = 64
	}
	return &SlicePool[T]{
		initialCap: initialCap,
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]T, 0, initialCap)
				return &s
			},
		},
	}
}

// Get gets a slice from the pool.
func (p *SlicePool[T]) Get() *[]T {
	return p.pool.Get().(*[]T)
}

// Put returns a slice to the pool after clearing it.
func (p *SlicePool[T]) Put(s *[]T) {
	*s = (*s)[:0]
	p.pool.Put(s)
}

// MapPool is a generic pool for maps.
type MapPool[K comparable, V any] struct {
	pool       sync.Pool
	initialCap int
}

// NewMapPool creates a new map pool with the given initial capacity.
func NewMapPool[K comparable, V any](initialCap int) *MapPool[K, V] {
	if initialCap <= 0 {
		initialCap = 64
	}
	return &MapPool[K, V]{
		initialCap: initialCap,
		pool: sync.Pool{
			New: func() interface{} {
				return make(map[K]V, initialCap)
			},
		},
	}
}

// Get gets a map from the pool.
func (p *MapPool[K, V]) Get() map[K]V {
	return p.pool.Get().(map[K]V)
}

// Put returns a map to the pool after clearing it.
func (p *MapPool[K, V]) Put(m map[K]V) {
	for k := range m {
		delete(m, k)
	}
	p.pool.Put(m)
}
