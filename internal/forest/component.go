// Package forest assembles the per-component samplers and trees into a
// single forest, fanning update and query work across them through the
// executor and coordinator (spec §4.6-§4.8).
package forest

import (
	"github.com/streamrcf/rcforest/internal/pointstore"
	"github.com/streamrcf/rcforest/internal/sampler"
	"github.com/streamrcf/rcforest/internal/tree"
	"github.com/streamrcf/rcforest/pkg/errors"
)

const noRef pointstore.Ref = -1

// UpdateResult is what a component's Update reports back to the
// coordinator so it can reconcile the shared point store's refcounts.
type UpdateResult struct {
	Added   pointstore.Ref
	Deleted pointstore.Ref
	Noop    bool
}

// Component pairs one sampler with one tree (spec's "SamplerPlusTree").
// It owns its sampler and tree exclusively; only the shared PointStore
// backing ref is safe to touch from another goroutine concurrently.
type Component struct {
	Sampler *sampler.StreamSampler
	Tree    *tree.RandomCutTree
}

// NewComponent pairs a sampler and tree that were already constructed with
// the same capacity and a shared, per-component RNG lineage.
func NewComponent(s *sampler.StreamSampler, t *tree.RandomCutTree) *Component {
	return &Component{Sampler: s, Tree: t}
}

// Update runs the component's atomic accept/evict/insert sequence (spec
// §4.6). ref must already be resident in the shared point store.
func (c *Component) Update(ref pointstore.Ref, sequenceIndex int64) (UpdateResult, error) {
	if !c.Sampler.AcceptPoint(sequenceIndex) {
		return UpdateResult{Noop: true, Deleted: noRef}, nil
	}

	deleted := noRef
	if evicted, ok := c.Sampler.GetEvictedPoint(); ok {
		if err := c.Tree.DeletePoint(evicted.Ref, evicted.Sequence); err != nil {
			return UpdateResult{}, errors.Wrap(errors.CodeInternal, "component update failed to evict", err)
		}
		deleted = evicted.Ref
	}

	addedRef, err := c.Tree.AddPoint(ref, sequenceIndex)
	if err != nil {
		return UpdateResult{}, err
	}
	c.Sampler.AddPoint(addedRef)

	return UpdateResult{Added: addedRef, Deleted: deleted}, nil
}
