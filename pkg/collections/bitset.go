// Package collections provides generic data structures used by the point
// store and tree packages to avoid per-call allocation on the hot path.
package collections

import (
	"math/bits"
)

// ============================================================================
// Bitset - direct-mapped bounding-box cache membership set
// ============================================================================

// Bitset is a memory-efficient boolean set using bit manipulation. The
// direct-mapped bounding-box cache (spec §3, cacheFraction >= 0.5) uses one
// Bitset to record which internal-node indexes are eligible to be cached,
// at 1 bit per node instead of one map entry per cached node.
type Bitset struct {
	bits []uint64
	size int
}

// NewBitset creates a new bitset with the given size.
func NewBitset(size int) *Bitset {
	if size <= 0 {
		size = 64
	}
	numWords := (size + 63) / 64
	return &Bitset{
		bits: make([]uint64, numWords),
		size: size,
	}
}

// Set sets the bit at index i.
func (b *Bitset) Set(i int) {
	if i < 0 {
		return
	}
	wordIdx := i / 64
	if wordIdx >= len(b.bits) {
		b.grow(i + 1)
	}
	b.bits[wordIdx] |= 1 << (i % 64)
	if i >= b.size {
		b.size = i + 1
	}
}

// Clear clears the bit at index i.
func (b *Bitset) Clear(i int) {
	if i < 0 || i/64 >= len(b.bits) {
		return
	}
	b.bits[i/64] &^= 1 << (i % 64)
}

// Test returns true if the bit at index i is set.
func (b *Bitset) Test(i int) bool {
	if i < 0 || i/64 >= len(b.bits) {
		return false
	}
	return b.bits[i/64]&(1<<(i%64)) != 0
}

// SetAll sets all bits to 1.
func (b *Bitset) SetAll() {
	for i := range b.bits {
		b.bits[i] = ^uint64(0)
	}
}

// ClearAll clears all bits to 0.
func (b *Bitset) ClearAll() {
	for i := range b.bits {
		b.bits[i] = 0
	}
}

// Count returns the number of set bits (population count).
func (b *Bitset) Count() int {
	count := 0
	for _, word := range b.bits {
		count += bits.OnesCount64(word)
	}
	return count
}

// Size returns the size of the bitset.
func (b *Bitset) Size() int {
	return b.size
}

// grow expands the bitset to accommodate at least newSize elements.
func (b *Bitset) grow(newSize int) {
	numWords := (newSize + 63) / 64
	if numWords <= len(b.bits) {
		return
	}
	newCap := len(b.bits) * 2
	if newCap < numWords {
		newCap = numWords
	}
	newBits := make([]uint64, newCap)
	copy(newBits, b.bits)
	b.bits = newBits
}

// Clone creates a copy of the bitset.
func (b *Bitset) Clone() *Bitset {
	newBits := make([]uint64, len(b.bits))
	copy(newBits, b.bits)
	return &Bitset{
		bits: newBits,
		size: b.size,
	}
}

// Or performs bitwise OR with another bitset (union).
func (b *Bitset) Or(other *Bitset) {
	if other == nil {
		return
	}
	if len(other.bits) > len(b.bits) {
		b.grow(other.size)
	}
	for i := 0; i < len(other.bits) && i < len(b.bits); i++ {
		b.bits[i] |= other.bits[i]
	}
	if other.size > b.size {
		b.size = other.size
	}
}

// And performs bitwise AND with another bitset (intersection).
func (b *Bitset) And(other *Bitset) {
	if other == nil {
		b.ClearAll()
		return
	}
	minLen := len(b.bits)
	if len(other.bits) < minLen {
		minLen = len(other.bits)
	}
	for i := 0; i < minLen; i++ {
		b.bits[i] &= other.bits[i]
	}
	for i := minLen; i < len(b.bits); i++ {
		b.bits[i] = 0
	}
}

// AndNot performs bitwise AND NOT with another bitset (difference).
func (b *Bitset) AndNot(other *Bitset) {
	if other == nil {
		return
	}
	minLen := len(b.bits)
	if len(other.bits) < minLen {
		minLen = len(other.bits)
	}
	for i := 0; i < minLen; i++ {
		b.bits[i] &^= other.bits[i]
	}
}

// Iterate calls fn for each set bit index, in ascending order. Stops early
// if fn returns false.
func (b *Bitset) Iterate(fn func(i int) bool) {
	for wordIdx, word := range b.bits {
		if word == 0 {
			continue
		}
		base := wordIdx * 64
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			if !fn(base + tz) {
				return
			}
			word &= word - 1
		}
	}
}

// ToSlice returns a slice of all set bit indices.
func (b *Bitset) ToSlice() []int {
	result := make([]int, 0, b.Count())
	b.Iterate(func(i int) bool {
		result = append(result, i)
		return true
	})
	return result
}

// ============================================================================
// VersionedBitset - O(1) cache invalidation via version stamping
// ============================================================================

// VersionedBitset marks membership by stamping a version rather than a bit,
// so invalidating every cached box after each tree insert or delete costs
// O(1) instead of an O(n) clear: Reset just bumps the current version.
type VersionedBitset struct {
	versions []uint32
	current  uint32
	size     int
}

// NewVersionedBitset creates a new versioned bitset.
func NewVersionedBitset(size int) *VersionedBitset {
	if size <= 0 {
		size = 64
	}
	return &VersionedBitset{
		versions: make([]uint32, size),
		current:  1,
		size:     size,
	}
}

// Set marks index i as valid in the current version.
func (v *VersionedBitset) Set(i int) {
	if i < 0 {
		return
	}
	if i >= len(v.versions) {
		v.grow(i + 1)
	}
	v.versions[i] = v.current
}

// Test returns true if index i is valid in the current version.
func (v *VersionedBitset) Test(i int) bool {
	if i < 0 || i >= len(v.versions) {
		return false
	}
	return v.versions[i] == v.current
}

// Reset invalidates every previously-set index in O(1).
func (v *VersionedBitset) Reset() {
	v.current++
	if v.current == 0 {
		for i := range v.versions {
			v.versions[i] = 0
		}
		v.current = 1
	}
}

// grow expands the versioned bitset.
func (v *VersionedBitset) grow(newSize int) {
	if newSize <= len(v.versions) {
		return
	}
	newCap := len(v.versions) * 2
	if newCap < newSize {
		newCap = newSize
	}
	newVersions := make([]uint32, newCap)
	copy(newVersions, v.versions)
	v.versions = newVersions
	v.size = newSize
}

// Size returns the size of the versioned bitset.
func (v *VersionedBitset) Size() int {
	return v.size
}
