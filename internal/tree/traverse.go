package tree

import (
	"github.com/streamrcf/rcforest/internal/boundingbox"
	"github.com/streamrcf/rcforest/internal/pointstore"
	"github.com/streamrcf/rcforest/pkg/collections"
)

// NodeView exposes a read-only snapshot of a tree node to visitors,
// without giving them access to the tree's internal arrays (spec §4.5).
type NodeView interface {
	IsLeaf() bool
	Depth() int
	Mass() int64
	CutDimension() int
	CutValue() float64
	BoundingBox() *boundingbox.BoundingBox
	PointRef() pointstore.Ref
	Point() []float64
	SequenceIndexes() []int64
	CenterOfMass() ([]float64, bool)
}

// Visitor computes a result from a single-path traversal (spec §4.5).
type Visitor interface {
	AcceptLeaf(leaf NodeView, depth int)
	Accept(node NodeView, depth int)
	Result() interface{}
}

// MultiVisitor additionally decides, at each internal node, whether to
// split the traversal across both children (used by imputation).
type MultiVisitor interface {
	Visitor
	Trigger(node NodeView) bool
	NewCopy() MultiVisitor
	Combine(other MultiVisitor)
}

type nodeHandle struct {
	t     *RandomCutTree
	id    nodeID
	depth int
}

func (t *RandomCutTree) nodeView(id nodeID, depth int) NodeView {
	return nodeHandle{t: t, id: id, depth: depth}
}

func (h nodeHandle) IsLeaf() bool { return isLeaf(h.id) }
func (h nodeHandle) Depth() int   { return h.depth }

func (h nodeHandle) Mass() int64 {
	if isLeaf(h.id) {
		return h.t.lMass[leafIdx(h.id)]
	}
	return h.t.iMass[internalIdx(h.id)]
}

func (h nodeHandle) CutDimension() int {
	if isLeaf(h.id) {
		return -1
	}
	return int(h.t.iCutDim[internalIdx(h.id)])
}

func (h nodeHandle) CutValue() float64 {
	if isLeaf(h.id) {
		return 0
	}
	return h.t.iCutVal[internalIdx(h.id)]
}

func (h nodeHandle) BoundingBox() *boundingbox.BoundingBox {
	return h.t.computeBox(h.id)
}

func (h nodeHandle) PointRef() pointstore.Ref {
	if !isLeaf(h.id) {
		return noRef
	}
	return h.t.lPointRef[leafIdx(h.id)]
}

func (h nodeHandle) Point() []float64 {
	if !isLeaf(h.id) {
		return nil
	}
	point, err := h.t.ps.Get(h.t.lPointRef[leafIdx(h.id)])
	if err != nil {
		return nil
	}
	return point
}

func (h nodeHandle) SequenceIndexes() []int64 {
	if !isLeaf(h.id) {
		return nil
	}
	return h.t.lSeqIdx[leafIdx(h.id)]
}

func (h nodeHandle) CenterOfMass() ([]float64, bool) {
	if !h.t.centerOfMassEnabled {
		return nil, false
	}
	return h.t.nodeCenterOfMass(h.id), true
}

// pathPool supplies the backing array for Traverse's descent-path stack, so
// a single-path traversal (called once per component per query) does not
// allocate on every call.
var pathPool = collections.NewSlicePool[nodeID](32)

// Traverse descends from the root to the leaf determined by point,
// building the path, then replays acceptLeaf followed by accept on each
// ancestor from leaf-parent up to root (spec §4.4.4).
func (t *RandomCutTree) Traverse(point []float64, visitor Visitor) interface{} {
	if t.root == nullNode {
		return visitor.Result()
	}

	bufPtr := pathPool.Get()
	path := collections.NewStackFromSlice(*bufPtr)
	defer func() {
		*bufPtr = path.Data()
		pathPool.Put(bufPtr)
	}()

	cur := t.root
	depth := 0
	for !isLeaf(cur) {
		path.Push(cur)
		idx := internalIdx(cur)
		if point[t.iCutDim[idx]] <= t.iCutVal[idx] {
			cur = t.iLeft[idx]
		} else {
			cur = t.iRight[idx]
		}
		depth++
	}

	visitor.AcceptLeaf(t.nodeView(cur, depth), depth)

	for {
		id, ok := path.Pop()
		if !ok {
			break
		}
		depth--
		visitor.Accept(t.nodeView(id, depth), depth)
	}

	return visitor.Result()
}

// TraverseMulti descends from the root, letting multiVisitor's Trigger
// decide, at each internal node, between splitting into both children
// (combining cloned results before Accept) and a canonical single-child
// descend (spec §4.4.4).
func (t *RandomCutTree) TraverseMulti(point []float64, visitor MultiVisitor) interface{} {
	if t.root == nullNode {
		return visitor.Result()
	}
	t.traverseMultiRec(t.root, point, visitor, 0)
	return visitor.Result()
}

func (t *RandomCutTree) traverseMultiRec(id nodeID, point []float64, visitor MultiVisitor, depth int) {
	if isLeaf(id) {
		visitor.AcceptLeaf(t.nodeView(id, depth), depth)
		return
	}

	view := t.nodeView(id, depth)
	idx := internalIdx(id)

	if visitor.Trigger(view) {
		left := visitor.NewCopy()
		right := visitor.NewCopy()
		t.traverseMultiRec(t.iLeft[idx], point, left, depth+1)
		t.traverseMultiRec(t.iRight[idx], point, right, depth+1)
		visitor.Combine(left)
		visitor.Combine(right)
		visitor.Accept(view, depth)
		return
	}

	var next nodeID
	if point[t.iCutDim[idx]] <= t.iCutVal[idx] {
		next = t.iLeft[idx]
	} else {
		next = t.iRight[idx]
	}
	t.traverseMultiRec(next, point, visitor, depth+1)
	visitor.Accept(view, depth)
}
