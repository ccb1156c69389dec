package tree

import (
	"math/rand/v2"

	"github.com/streamrcf/rcforest/internal/boundingbox"
	"github.com/streamrcf/rcforest/pkg/collections"
)

// boxCache materializes a deterministic subset of internal-node bounding
// boxes (spec §3 "Bounding-box cache"). At cacheFraction >= 0.5 it is
// direct-mapped: a plain Bitset records which node indexes were chosen
// eligible at creation time, and a VersionedBitset tracks which of those
// are currently valid so that every insert/delete can invalidate the whole
// cache in O(1) via one version bump rather than walking the touched path.
// Below 0.5 the same membership/validity pair is kept sparsely in maps,
// since most indexes will never be cached and a bitset would waste space.
type boxCache struct {
	fraction float64
	direct   bool

	eligible *collections.Bitset
	valid    *collections.VersionedBitset
	boxes    []*boundingbox.BoundingBox

	sparseEligible map[int32]bool
	sparseBoxes    map[int32]*boundingbox.BoundingBox
}

// sparseEligiblePool and sparseBoxesPool supply the backing maps for
// low-cacheFraction trees. Since a tree holds exactly one boxCache for its
// lifetime, these maps are borrowed once at construction and never
// returned: the pool exists so repeated tree construction (as in repeated
// test runs, or a forest rebuilding components) reuses already-grown map
// buckets instead of starting every tree's cache from an empty map.
var sparseEligiblePool = collections.NewMapPool[int32, bool](64)
var sparseBoxesPool = collections.NewMapPool[int32, *boundingbox.BoundingBox](64)

func newBoxCache(fraction float64, capacityHint int) *boxCache {
	c := &boxCache{fraction: fraction}
	if fraction >= 0.5 {
		c.direct = true
		c.eligible = collections.NewBitset(capacityHint)
		c.valid = collections.NewVersionedBitset(capacityHint)
		c.boxes = make([]*boundingbox.BoundingBox, capacityHint)
	} else {
		c.sparseEligible = sparseEligiblePool.Get()
		c.sparseBoxes = sparseBoxesPool.Get()
	}
	return c
}

// decideEligible draws the one-time PRNG decision for whether idx's box may
// ever be cached. Called once per internal-node allocation (spec §3:
// "a PRNG-seeded bit set... if fraction >= 0.5 else a sparse index map").
func (c *boxCache) decideEligible(idx int32, rng *rand.Rand) {
	keep := rng.Float64() < c.fraction
	if c.direct {
		if keep {
			c.eligible.Set(int(idx))
		} else {
			c.eligible.Clear(int(idx))
		}
		return
	}
	if keep {
		c.sparseEligible[idx] = true
	} else {
		delete(c.sparseEligible, idx)
	}
}

func (c *boxCache) get(idx int32) (*boundingbox.BoundingBox, bool) {
	if c.direct {
		if int(idx) >= len(c.boxes) || !c.valid.Test(int(idx)) {
			return nil, false
		}
		return c.boxes[idx], true
	}
	b, ok := c.sparseBoxes[idx]
	return b, ok
}

func (c *boxCache) set(idx int32, box *boundingbox.BoundingBox) {
	if c.direct {
		if !c.eligible.Test(int(idx)) {
			return
		}
		if int(idx) >= len(c.boxes) {
			grown := make([]*boundingbox.BoundingBox, idx+1)
			copy(grown, c.boxes)
			c.boxes = grown
		}
		c.boxes[idx] = box
		c.valid.Set(int(idx))
		return
	}
	if !c.sparseEligible[idx] {
		return
	}
	c.sparseBoxes[idx] = box
}

// invalidateAll discards every materialized box. Called once per AddPoint
// or DeletePoint, after the structural update completes, rather than
// threading per-ancestor invalidation through the recursion.
func (c *boxCache) invalidateAll() {
	if c.direct {
		c.valid.Reset()
		return
	}
	for k := range c.sparseBoxes {
		delete(c.sparseBoxes, k)
	}
}

// forget drops any cached entry for a freed internal-node index so a
// future reuse of that index starts from a clean slate.
func (c *boxCache) forget(idx int32) {
	if c.direct {
		if int(idx) < len(c.boxes) {
			c.boxes[idx] = nil
		}
		return
	}
	delete(c.sparseEligible, idx)
	delete(c.sparseBoxes, idx)
}
