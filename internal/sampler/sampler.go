// Package sampler implements the time-biased reservoir (StreamSampler) each
// forest component uses to decide which points survive into its tree.
// There is no third-party priority-queue library in the retrieved corpus,
// so the max-heap backing the reservoir is grounded directly on the
// standard library's container/heap, which exists for exactly this case.
package sampler

import (
	"container/heap"
	"math"
	"math/rand/v2"

	"github.com/streamrcf/rcforest/pkg/errors"
	"github.com/streamrcf/rcforest/internal/pointstore"
)

// Entry is a single weighted reservoir slot.
type Entry struct {
	Ref      pointstore.Ref
	Weight   float64
	Sequence int64
}

// entryHeap is a max-heap on Weight: the caller wants O(1) access to the
// *largest* weight (the next eviction candidate) and O(log n) replacement.
type entryHeap []Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].Weight > h[j].Weight } // max-heap
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(Entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// pendingAccept is the AcceptState stashed by acceptPoint between the call
// that decides admission and the call that commits the reference.
type pendingAccept struct {
	sequence int64
	weight   float64
	evicting bool
}

// StreamSampler is a time-biased reservoir sampler of bounded capacity
// (spec §4.2). It is not safe for concurrent use; each component's worker
// owns its sampler exclusively (spec §4.8).
type StreamSampler struct {
	capacity int
	lambda   float64
	rng      *rand.Rand

	heap entryHeap

	pending *pendingAccept
	evicted *Entry
}

// New creates a StreamSampler with the given capacity, time-decay
// coefficient, and a dedicated RNG (forest-derived per spec §9 so that a
// fixed forest seed reproduces bit-identical results).
func New(capacity int, lambda float64, rng *rand.Rand) (*StreamSampler, error) {
	if capacity < 1 {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "sampler capacity must be at least 1", nil)
	}
	return &StreamSampler{
		capacity: capacity,
		lambda:   lambda,
		rng:      rng,
		heap:     make(entryHeap, 0, capacity),
	}, nil
}

// Size returns the number of entries currently held.
func (s *StreamSampler) Size() int {
	return len(s.heap)
}

// Capacity returns the sampler's configured capacity.
func (s *StreamSampler) Capacity() int {
	return s.capacity
}

// Full reports whether the sampler is at capacity.
func (s *StreamSampler) Full() bool {
	return len(s.heap) >= s.capacity
}

// AcceptPoint decides whether the point at sequence should be admitted. On
// true, the caller must follow with AddPoint using the tree-resolved
// reference before calling AcceptPoint again. The entry that would be
// evicted, if any, is fixed at this point (the heap root cannot change
// before the matching AddPoint under the one-pending-accept-at-a-time
// protocol), so callers may consult GetEvictedPoint immediately rather
// than waiting for AddPoint to actually pop it.
func (s *StreamSampler) AcceptPoint(sequence int64) bool {
	u := s.rng.Float64()
	for u == 0 {
		u = s.rng.Float64()
	}
	weight := -s.lambda*float64(sequence) + math.Log(-math.Log(u))

	if len(s.heap) < s.capacity {
		s.pending = &pendingAccept{sequence: sequence, weight: weight}
		s.evicted = nil
		return true
	}

	if weight < s.heap[0].Weight {
		s.pending = &pendingAccept{sequence: sequence, weight: weight, evicting: true}
		root := s.heap[0]
		s.evicted = &root
		return true
	}

	return false
}

// AddPoint commits the pending AcceptState using ref, which may differ
// from the caller's original point reference when the tree deduped the
// insert. It panics if called without a preceding successful AcceptPoint,
// matching the fatal-on-protocol-violation contract of the sampler state
// machine.
func (s *StreamSampler) AddPoint(ref pointstore.Ref) {
	if s.pending == nil {
		panic("sampler: AddPoint called without a preceding AcceptPoint")
	}

	if s.pending.evicting {
		heap.Pop(&s.heap)
	}

	heap.Push(&s.heap, Entry{
		Ref:      ref,
		Weight:   s.pending.weight,
		Sequence: s.pending.sequence,
	})

	s.pending = nil
}

// GetEvictedPoint returns the entry the pending (or just-committed) accept
// will evict, if any. Its result is valid only until the next AcceptPoint
// call.
func (s *StreamSampler) GetEvictedPoint() (Entry, bool) {
	if s.evicted == nil {
		return Entry{}, false
	}
	return *s.evicted, true
}

// Entries returns a snapshot of every live entry, in no particular order.
func (s *StreamSampler) Entries() []Entry {
	out := make([]Entry, len(s.heap))
	copy(out, s.heap)
	return out
}

