package forest

import (
	"github.com/streamrcf/rcforest/internal/pointstore"
)

// Coordinator lifts an incoming point into the references each component's
// Update will operate on, then reconciles the shared point store's
// refcounts once every component has run (spec §4.7).
type Coordinator interface {
	// Refs returns one reference per component for this update.
	Refs(ps *pointstore.PointStore, point []float64, numComponents int) ([]pointstore.Ref, error)
	// Complete reconciles refcounts after every component's Update result
	// is known. refs is whatever Refs returned for this same update.
	Complete(ps *pointstore.PointStore, refs []pointstore.Ref, results []UpdateResult) error
}

// SharedStoreCoordinator stores the point once and hands every component
// the same reference. Complete applies each component's (added, deleted)
// outcome to the refcount and then drops the one hold it took out on the
// caller's behalf in Refs, leaving only the holds components actually
// acquired by accepting the point.
type SharedStoreCoordinator struct{}

func NewSharedStoreCoordinator() *SharedStoreCoordinator { return &SharedStoreCoordinator{} }

func (SharedStoreCoordinator) Refs(ps *pointstore.PointStore, point []float64, numComponents int) ([]pointstore.Ref, error) {
	ref, err := ps.Add(point)
	if err != nil {
		return nil, err
	}
	refs := make([]pointstore.Ref, numComponents)
	for i := range refs {
		refs[i] = ref
	}
	return refs, nil
}

func (SharedStoreCoordinator) Complete(ps *pointstore.PointStore, refs []pointstore.Ref, results []UpdateResult) error {
	for _, r := range results {
		if r.Noop {
			continue
		}
		if r.Added != noRef {
			if err := ps.IncRef(r.Added); err != nil {
				return err
			}
		}
		if r.Deleted != noRef {
			if err := ps.DecRef(r.Deleted); err != nil {
				return err
			}
		}
	}
	if len(refs) == 0 {
		return nil
	}
	return ps.DecRef(refs[0])
}

// PassthroughCoordinator gives every component its own independent hold on
// the point: each component adds it to the shared store itself (dedup
// collapses identical points onto one slot, incrementing its refcount per
// holder), so there is no separate caller-side hold to release and the
// coordinator carries no state across an update.
type PassthroughCoordinator struct{}

func NewPassthroughCoordinator() *PassthroughCoordinator { return &PassthroughCoordinator{} }

func (PassthroughCoordinator) Refs(ps *pointstore.PointStore, point []float64, numComponents int) ([]pointstore.Ref, error) {
	refs := make([]pointstore.Ref, numComponents)
	for i := range refs {
		ref, err := ps.Add(point)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	return refs, nil
}

func (PassthroughCoordinator) Complete(ps *pointstore.PointStore, refs []pointstore.Ref, results []UpdateResult) error {
	for i, r := range results {
		if r.Noop {
			if err := ps.DecRef(refs[i]); err != nil {
				return err
			}
			continue
		}
		if r.Deleted != noRef {
			if err := ps.DecRef(r.Deleted); err != nil {
				return err
			}
		}
	}
	return nil
}
