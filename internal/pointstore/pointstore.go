// Package pointstore implements the forest's shared, reference-counted
// arena of sample points. Every component that accepts a point holds a
// reference into the arena rather than a private copy, so a point observed
// by all numTrees components costs one vector's worth of memory, not
// numTrees copies.
package pointstore

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/streamrcf/rcforest/pkg/collections"
	rcerrors "github.com/streamrcf/rcforest/pkg/errors"
)

// keyBufPool supplies the scratch byte buffer encodeKey serializes a point
// into before hashing it into the dedup map, avoiding an allocation on
// every Add call.
var keyBufPool = collections.NewSlicePool[byte](256)

// Ref is an opaque reference into a PointStore. Slots are numbered from 0;
// a negative value never denotes a live point.
type Ref int32

// noRef marks an arena slot as free.
const noRef Ref = -1

// PointStore is an arena of fixed-dimension vectors addressed by integer
// reference, with bitwise deduplication and reference counting. Its
// struct-of-arrays layout (one slice per field, indexed by Ref) mirrors the
// arena-with-integer-index discipline used elsewhere in this codebase for
// dense, append-mostly collections: one slice per field instead of one
// struct per element, so a full scan touches only the fields it needs.
type PointStore struct {
	mu sync.RWMutex

	dimensions int
	capacity   int

	vectors  [][]float64
	refcount []int32
	// free holds reclaimed slot indexes, LIFO, so a burst of inserts after
	// a burst of evictions reuses the just-freed slots (cache-warm).
	free []Ref

	// dedup maps a vector's bit-exact encoding to the Ref already holding
	// it, so two components inserting identical points share one slot.
	dedup map[string]Ref
}

// New creates a PointStore for vectors of the given dimensionality with a
// fixed capacity (spec §3: bounded at numberOfTrees * sampleSize).
func New(dimensions, capacity int) *PointStore {
	return &PointStore{
		dimensions: dimensions,
		capacity:   capacity,
		vectors:    make([][]float64, 0, capacity),
		refcount:   make([]int32, 0, capacity),
		dedup:      make(map[string]Ref, capacity),
	}
}

// Dimensions returns the point width this store was constructed for.
func (s *PointStore) Dimensions() int {
	return s.dimensions
}

// Size returns the number of live (refcount > 0) slots.
func (s *PointStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dedup)
}

// Add inserts point, returning the Ref a caller should hold. If a
// bitwise-identical point already exists, its Ref is returned with its
// refcount incremented instead of allocating a new slot.
func (s *PointStore) Add(point []float64) (Ref, error) {
	if len(point) != s.dimensions {
		return noRef, rcerrors.Wrap(rcerrors.CodeInvalidArgument, "point dimensionality mismatch", nil)
	}

	key := encodeKey(point)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ref, ok := s.dedup[key]; ok {
		s.refcount[ref]++
		return ref, nil
	}

	var ref Ref
	if n := len(s.free); n > 0 {
		ref = s.free[n-1]
		s.free = s.free[:n-1]
		s.vectors[ref] = append([]float64(nil), point...)
		s.refcount[ref] = 1
	} else {
		if len(s.vectors) >= s.capacity {
			return noRef, rcerrors.ErrCapacityExceeded
		}
		ref = Ref(len(s.vectors))
		s.vectors = append(s.vectors, append([]float64(nil), point...))
		s.refcount = append(s.refcount, 1)
	}
	s.dedup[key] = ref
	return ref, nil
}

// IncRef adds one holder to ref's refcount. Used when a caller wants to
// retain a reference it did not originate (e.g. the shared-store
// coordinator handing the same ref to multiple components).
func (s *PointStore) IncRef(ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(ref) {
		return rcerrors.ErrInvalidRef
	}
	s.refcount[ref]++
	return nil
}

// DecRef removes one holder from ref's refcount, reclaiming the slot when
// it reaches zero.
func (s *PointStore) DecRef(ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(ref) {
		return rcerrors.ErrInvalidRef
	}
	s.refcount[ref]--
	if s.refcount[ref] == 0 {
		key := encodeKey(s.vectors[ref])
		delete(s.dedup, key)
		s.vectors[ref] = nil
		s.free = append(s.free, ref)
	}
	return nil
}

// Get returns the vector stored at ref. The returned slice is owned by the
// store and must not be mutated by the caller.
func (s *PointStore) Get(ref Ref) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.liveLocked(ref) {
		return nil, rcerrors.ErrInvalidRef
	}
	return s.vectors[ref], nil
}

// RefCount returns the current refcount for ref, or 0 if ref is not live.
func (s *PointStore) RefCount(ref Ref) int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.liveLocked(ref) {
		return 0
	}
	return s.refcount[ref]
}

// TotalRefCount sums the refcount of every live slot. Spec property 6: this
// equals the sum of sampler sizes across all components.
func (s *PointStore) TotalRefCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, rc := range s.refcount {
		total += int64(rc)
	}
	return total
}

func (s *PointStore) liveLocked(ref Ref) bool {
	if ref < 0 || int(ref) >= len(s.vectors) {
		return false
	}
	return s.refcount[ref] > 0
}

// encodeKey produces a bit-exact dedup key. Components must canonicalize
// -0.0 to +0.0 before calling Add; the store itself does no normalization,
// only bit comparison. The scratch buffer is borrowed from keyBufPool and
// returned before this function returns: string(buf) copies the bytes, so
// reusing the buffer afterward is safe.
func encodeKey(point []float64) string {
	need := 8 * len(point)
	bufPtr := keyBufPool.Get()
	buf := *bufPtr
	if cap(buf) < need {
		buf = make([]byte, need)
	} else {
		buf = buf[:need]
	}
	for i, v := range point {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	key := string(buf)
	*bufPtr = buf
	keyBufPool.Put(bufPtr)
	return key
}
