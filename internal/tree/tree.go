// Package tree implements RandomCutTree, the struct-of-arrays binary tree
// each forest component maintains over its sampled points (spec §3, §4.4).
// Internal and leaf nodes live in disjoint arrays; a node is addressed by a
// single signed nodeID whose sign distinguishes which array it indexes,
// mirroring the arena-with-integer-index pattern the pointstore package
// uses for its own slots.
package tree

import (
	"math/rand/v2"

	"github.com/streamrcf/rcforest/internal/boundingbox"
	"github.com/streamrcf/rcforest/internal/pointstore"
	"github.com/streamrcf/rcforest/pkg/errors"
)

// nodeID addresses either an internal node (id >= 0) or a leaf (id < 0,
// encoding leaf index j as -(j+1)). nullNode is the sentinel for "absent".
type nodeID int32

const nullNode nodeID = -1 << 30

func isLeaf(id nodeID) bool { return id < 0 && id != nullNode }

func encodeLeaf(idx int32) nodeID     { return -nodeID(idx) - 1 }
func encodeInternal(idx int32) nodeID { return nodeID(idx) }
func leafIdx(id nodeID) int32         { return int32(-(id + 1)) }
func internalIdx(id nodeID) int32     { return int32(id) }

const noRef pointstore.Ref = -1

// RandomCutTree maintains a binary tree over at most capacity point
// references. It is not safe for concurrent use; each component's worker
// owns its tree exclusively (spec §4.8).
type RandomCutTree struct {
	dimensions int
	capacity   int

	ps  *pointstore.PointStore
	rng *rand.Rand

	root nodeID

	iParent       []nodeID
	iLeft         []nodeID
	iRight        []nodeID
	iCutDim       []int32
	iCutVal       []float64
	iMass         []int64
	iCenterOfMass [][]float64
	iFree         []int32

	lParent       []nodeID
	lPointRef     []pointstore.Ref
	lMass         []int64
	lSeqIdx       [][]int64
	lCenterOfMass [][]float64
	lFree         []int32

	storeSequenceIndexesEnabled bool
	centerOfMassEnabled         bool

	cache *boxCache
}

// NewTree creates an empty tree over the given dimensionality and capacity
// (the sampler's sampleSize: at most capacity leaves, capacity-1
// internals). rng is the component's dedicated RNG, so a fixed forest seed
// reproduces bit-identical trees (spec §9).
func NewTree(dimensions, capacity int, cacheFraction float64, rng *rand.Rand, ps *pointstore.PointStore, storeSequenceIndexesEnabled, centerOfMassEnabled bool) (*RandomCutTree, error) {
	if dimensions <= 0 {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "tree dimensions must be positive", nil)
	}
	if capacity <= 0 {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "tree capacity must be positive", nil)
	}
	if cacheFraction < 0 || cacheFraction > 1 {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "cacheFraction must be in [0,1]", nil)
	}
	return &RandomCutTree{
		dimensions:                  dimensions,
		capacity:                    capacity,
		ps:                          ps,
		rng:                         rng,
		root:                        nullNode,
		cache:                       newBoxCache(cacheFraction, capacity-1),
		storeSequenceIndexesEnabled: storeSequenceIndexesEnabled,
		centerOfMassEnabled:         centerOfMassEnabled,
	}, nil
}

// Dimensions returns the tree's point width.
func (t *RandomCutTree) Dimensions() int { return t.dimensions }

// Size returns the number of live leaves.
func (t *RandomCutTree) Size() int {
	return len(t.lParent) - len(t.lFree)
}

// Mass returns the tree's total mass (root mass, or 0 if empty).
func (t *RandomCutTree) Mass() int64 {
	if t.root == nullNode {
		return 0
	}
	if isLeaf(t.root) {
		return t.lMass[leafIdx(t.root)]
	}
	return t.iMass[internalIdx(t.root)]
}

// IsEmpty reports whether the tree holds no points.
func (t *RandomCutTree) IsEmpty() bool { return t.root == nullNode }

// AddPoint inserts ref (already resident in the point store) at
// sequenceIndex, returning the reference the tree actually recorded. That
// reference differs from ref only when the tree deduped against an
// existing leaf holding a bitwise-identical point (spec §4.4.2).
func (t *RandomCutTree) AddPoint(ref pointstore.Ref, sequenceIndex int64) (pointstore.Ref, error) {
	point, err := t.ps.Get(ref)
	if err != nil {
		return noRef, err
	}

	if t.root == nullNode {
		t.root = t.allocLeaf(ref, sequenceIndex)
		return ref, nil
	}

	newRoot, addedRef, err := t.insertRec(t.root, point, ref, sequenceIndex)
	if err != nil {
		t.cache.invalidateAll()
		return noRef, err
	}
	t.root = newRoot
	t.setParent(t.root, nullNode)
	t.cache.invalidateAll()
	return addedRef, nil
}

func (t *RandomCutTree) insertRec(id nodeID, point []float64, ref pointstore.Ref, sequenceIndex int64) (nodeID, pointstore.Ref, error) {
	if isLeaf(id) {
		idx := leafIdx(id)
		leafPoint, err := t.ps.Get(t.lPointRef[idx])
		if err != nil {
			return id, noRef, err
		}
		if equalPoints(leafPoint, point) {
			t.lMass[idx]++
			if t.storeSequenceIndexesEnabled {
				t.lSeqIdx[idx] = append(t.lSeqIdx[idx], sequenceIndex)
			}
			if t.centerOfMassEnabled {
				addInPlace(t.lCenterOfMass[idx], point)
			}
			return id, t.lPointRef[idx], nil
		}
		oldBox := boundingbox.FromPoint(leafPoint)
		return t.splice(id, oldBox, point, ref, sequenceIndex, t.lMass[idx])
	}

	idx := internalIdx(id)
	oldBox := t.computeBox(id)
	if oldBox.Contains(point) {
		return t.recurseOwnCut(id, idx, point, ref, sequenceIndex)
	}

	merged := oldBox.Clone()
	merged.MergePoint(point)

	u := t.rng.Float64()
	cutDim, cutVal, err := merged.DrawCut(u)
	if err != nil {
		return id, noRef, err
	}
	if cutSeparates(oldBox, cutDim, cutVal) {
		return t.spliceAt(id, cutDim, cutVal, point, ref, sequenceIndex, t.iMass[idx])
	}
	// The drawn cut falls entirely within this subtree's own box, so it
	// cannot separate point from it: descend using id's existing cut
	// instead of splicing (spec: "recurse into the side consistent with
	// the existing cut at node"). This is the routine outcome once a
	// subtree's box is narrower than the merged box on the cut
	// dimension, which is the common case in a tree with real depth.
	return t.recurseOwnCut(id, idx, point, ref, sequenceIndex)
}

// recurseOwnCut descends into the child of internal node id (at slot idx)
// that id's own cut already assigns point to, then updates id's mass and
// center of mass once the recursion returns.
func (t *RandomCutTree) recurseOwnCut(id nodeID, idx int32, point []float64, ref pointstore.Ref, sequenceIndex int64) (nodeID, pointstore.Ref, error) {
	goLeft := point[t.iCutDim[idx]] <= t.iCutVal[idx]
	var child nodeID
	if goLeft {
		child = t.iLeft[idx]
	} else {
		child = t.iRight[idx]
	}
	// idx is stable across the recursive call, but the recursion may
	// append to t.iLeft/t.iRight (reallocating their backing arrays), so
	// the child slot is written back by index rather than through a
	// pointer taken before the call.
	newChild, addedRef, err := t.insertRec(child, point, ref, sequenceIndex)
	if err != nil {
		return id, noRef, err
	}
	if goLeft {
		t.iLeft[idx] = newChild
	} else {
		t.iRight[idx] = newChild
	}
	t.setParent(newChild, id)
	t.iMass[idx]++
	if t.centerOfMassEnabled {
		addInPlace(t.iCenterOfMass[idx], point)
	}
	return id, addedRef, nil
}

// splice handles a leaf whose stored point differs from the new point: the
// old box is a single point, so a cut drawn over the merged box is
// guaranteed to separate them barring a degenerate zero-range draw, which
// would indicate a corrupted tree (spec §4.4.6).
func (t *RandomCutTree) splice(id nodeID, oldBox *boundingbox.BoundingBox, point []float64, ref pointstore.Ref, sequenceIndex int64, oldMass int64) (nodeID, pointstore.Ref, error) {
	merged := oldBox.Clone()
	merged.MergePoint(point)

	u := t.rng.Float64()
	cutDim, cutVal, err := merged.DrawCut(u)
	if err != nil {
		return id, noRef, err
	}
	if !cutSeparates(oldBox, cutDim, cutVal) {
		return id, noRef, errors.Wrap(errors.CodeInternal, "random cut failed to separate new point from existing leaf", nil)
	}
	return t.spliceAt(id, cutDim, cutVal, point, ref, sequenceIndex, oldMass)
}

// spliceAt builds the new internal node once a separating cut is known: id
// (an existing leaf or subtree) and a fresh leaf for point become its
// children, with point's side decided by cutDim/cutVal.
func (t *RandomCutTree) spliceAt(id nodeID, cutDim int, cutVal float64, point []float64, ref pointstore.Ref, sequenceIndex int64, oldMass int64) (nodeID, pointstore.Ref, error) {
	newLeaf := t.allocLeaf(ref, sequenceIndex)

	var left, right nodeID
	if point[cutDim] <= cutVal {
		left, right = newLeaf, id
	} else {
		left, right = id, newLeaf
	}

	newInternal := t.allocInternal(cutDim, cutVal, left, right, oldMass+1)
	t.setParent(left, newInternal)
	t.setParent(right, newInternal)
	return newInternal, ref, nil
}

// DeletePoint removes one instance of ref/sequenceIndex from the tree
// (spec §4.4.3).
func (t *RandomCutTree) DeletePoint(ref pointstore.Ref, sequenceIndex int64) error {
	if t.root == nullNode {
		return errors.ErrEmptyTree
	}
	point, err := t.ps.Get(ref)
	if err != nil {
		return err
	}

	if isLeaf(t.root) {
		idx := leafIdx(t.root)
		if t.lPointRef[idx] != ref {
			return errors.ErrPointMismatch
		}
		if t.storeSequenceIndexesEnabled && !removeOneSeq(&t.lSeqIdx[idx], sequenceIndex) {
			return errors.ErrSequenceNotFound
		}
		if t.lMass[idx] > 1 {
			t.lMass[idx]--
			if t.centerOfMassEnabled {
				subInPlace(t.lCenterOfMass[idx], point)
			}
			return nil
		}
		t.freeLeaf(idx)
		t.root = nullNode
		t.cache.invalidateAll()
		return nil
	}

	newRoot, err := t.deleteRec(t.root, point, ref, sequenceIndex)
	if err != nil {
		return err
	}
	t.root = newRoot
	if t.root != nullNode {
		t.setParent(t.root, nullNode)
	}
	t.cache.invalidateAll()
	return nil
}

func (t *RandomCutTree) deleteRec(id nodeID, point []float64, ref pointstore.Ref, sequenceIndex int64) (nodeID, error) {
	idx := internalIdx(id)

	goLeft := point[t.iCutDim[idx]] <= t.iCutVal[idx]
	var childID, siblingID nodeID
	if goLeft {
		childID, siblingID = t.iLeft[idx], t.iRight[idx]
	} else {
		childID, siblingID = t.iRight[idx], t.iLeft[idx]
	}

	if isLeaf(childID) {
		lidx := leafIdx(childID)
		if t.lPointRef[lidx] != ref {
			return id, errors.ErrPointMismatch
		}
		if t.storeSequenceIndexesEnabled && !removeOneSeq(&t.lSeqIdx[lidx], sequenceIndex) {
			return id, errors.ErrSequenceNotFound
		}
		if t.lMass[lidx] > 1 {
			t.lMass[lidx]--
			t.iMass[idx]--
			if t.centerOfMassEnabled {
				subInPlace(t.lCenterOfMass[lidx], point)
				subInPlace(t.iCenterOfMass[idx], point)
			}
			return id, nil
		}
		// Splice out the leaf and its parent (this internal node); the
		// sibling takes this node's place in the grandparent.
		t.freeLeaf(lidx)
		t.cache.forget(idx)
		t.freeInternal(idx)
		return siblingID, nil
	}

	newChild, err := t.deleteRec(childID, point, ref, sequenceIndex)
	if err != nil {
		return id, err
	}
	if goLeft {
		t.iLeft[idx] = newChild
	} else {
		t.iRight[idx] = newChild
	}
	t.setParent(newChild, id)
	t.iMass[idx]--
	if t.centerOfMassEnabled {
		subInPlace(t.iCenterOfMass[idx], point)
	}
	return id, nil
}

// computeBox returns the bounding box for id, consulting the cache for
// internal nodes and falling back to a recursive union of its children
// (spec §4.4.4: "paying O(subtree size) rather than O(1)" when uncached).
func (t *RandomCutTree) computeBox(id nodeID) *boundingbox.BoundingBox {
	if isLeaf(id) {
		point, _ := t.ps.Get(t.lPointRef[leafIdx(id)])
		return boundingbox.FromPoint(point)
	}
	idx := internalIdx(id)
	if box, ok := t.cache.get(idx); ok {
		return box
	}
	box := t.computeBox(t.iLeft[idx]).Merged(t.computeBox(t.iRight[idx]))
	t.cache.set(idx, box)
	return box
}

func (t *RandomCutTree) setParent(id, parent nodeID) {
	if id == nullNode {
		return
	}
	if isLeaf(id) {
		t.lParent[leafIdx(id)] = parent
	} else {
		t.iParent[internalIdx(id)] = parent
	}
}

func (t *RandomCutTree) allocLeaf(ref pointstore.Ref, sequenceIndex int64) nodeID {
	var com []float64
	if t.centerOfMassEnabled {
		point, _ := t.ps.Get(ref)
		com = append([]float64(nil), point...)
	}
	var seq []int64
	if t.storeSequenceIndexesEnabled {
		seq = []int64{sequenceIndex}
	}

	if n := len(t.lFree); n > 0 {
		idx := t.lFree[n-1]
		t.lFree = t.lFree[:n-1]
		t.lParent[idx] = nullNode
		t.lPointRef[idx] = ref
		t.lMass[idx] = 1
		t.lSeqIdx[idx] = seq
		t.lCenterOfMass[idx] = com
		return encodeLeaf(idx)
	}

	idx := int32(len(t.lParent))
	t.lParent = append(t.lParent, nullNode)
	t.lPointRef = append(t.lPointRef, ref)
	t.lMass = append(t.lMass, 1)
	t.lSeqIdx = append(t.lSeqIdx, seq)
	t.lCenterOfMass = append(t.lCenterOfMass, com)
	return encodeLeaf(idx)
}

func (t *RandomCutTree) freeLeaf(idx int32) {
	t.lParent[idx] = nullNode
	t.lPointRef[idx] = noRef
	t.lMass[idx] = 0
	t.lSeqIdx[idx] = nil
	t.lCenterOfMass[idx] = nil
	t.lFree = append(t.lFree, idx)
}

func (t *RandomCutTree) allocInternal(cutDim int, cutVal float64, left, right nodeID, mass int64) nodeID {
	var com []float64
	if t.centerOfMassEnabled {
		com = addVectors(t.nodeCenterOfMass(left), t.nodeCenterOfMass(right))
	}

	var idx int32
	if n := len(t.iFree); n > 0 {
		idx = t.iFree[n-1]
		t.iFree = t.iFree[:n-1]
		t.iParent[idx] = nullNode
		t.iLeft[idx] = left
		t.iRight[idx] = right
		t.iCutDim[idx] = int32(cutDim)
		t.iCutVal[idx] = cutVal
		t.iMass[idx] = mass
		t.iCenterOfMass[idx] = com
	} else {
		idx = int32(len(t.iParent))
		t.iParent = append(t.iParent, nullNode)
		t.iLeft = append(t.iLeft, left)
		t.iRight = append(t.iRight, right)
		t.iCutDim = append(t.iCutDim, int32(cutDim))
		t.iCutVal = append(t.iCutVal, cutVal)
		t.iMass = append(t.iMass, mass)
		t.iCenterOfMass = append(t.iCenterOfMass, com)
	}
	t.cache.decideEligible(idx, t.rng)
	return encodeInternal(idx)
}

func (t *RandomCutTree) freeInternal(idx int32) {
	t.iParent[idx] = nullNode
	t.iLeft[idx] = nullNode
	t.iRight[idx] = nullNode
	t.iMass[idx] = 0
	t.iCenterOfMass[idx] = nil
	t.iFree = append(t.iFree, idx)
}

func (t *RandomCutTree) nodeCenterOfMass(id nodeID) []float64 {
	if !t.centerOfMassEnabled || id == nullNode {
		return nil
	}
	if isLeaf(id) {
		return t.lCenterOfMass[leafIdx(id)]
	}
	return t.iCenterOfMass[internalIdx(id)]
}

func equalPoints(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// cutSeparates reports whether a cut at cutVal on cutDim places box
// entirely on one side, per the half-open convention [min, max).
func cutSeparates(box *boundingbox.BoundingBox, cutDim int, cutVal float64) bool {
	return cutVal < box.Min[cutDim] || cutVal >= box.Max[cutDim]
}

func removeOneSeq(multiset *[]int64, sequenceIndex int64) bool {
	s := *multiset
	for i, v := range s {
		if v == sequenceIndex {
			s[i] = s[len(s)-1]
			*multiset = s[:len(s)-1]
			return true
		}
	}
	return false
}

func addVectors(a, b []float64) []float64 {
	if a == nil && b == nil {
		return nil
	}
	out := append([]float64(nil), a...)
	addInPlace(out, b)
	return out
}

func addInPlace(dst, src []float64) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func subInPlace(dst, src []float64) {
	for i := range dst {
		dst[i] -= src[i]
	}
}
