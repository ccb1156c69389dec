// Package visitor implements the built-in traversal visitors RandomCutTree
// drives: anomaly score, attribution, imputation, density, and
// near-neighbor (spec §4.5). Each visitor satisfies tree.Visitor or
// tree.MultiVisitor and is constructed fresh per query, matching the
// forest's "visitors are per-call allocations, never shared" rule.
package visitor

import "math"

// scoreUnseen is the contribution of a node the query point did not match:
// it decays both with depth and with the log of the node's mass, so a
// point separated at a shallow depth or from a light subtree scores higher
// than one separated deep in a dense subtree.
func scoreUnseen(depth int, mass int64) float64 {
	return 1.0 / (float64(depth) + math.Log2(float64(mass)+1.0))
}

// scoreSeen is the contribution when the query point exactly matches a
// leaf already in the tree: it depends only on depth, since an exact match
// carries no separation information of its own.
func scoreSeen(depth int, mass int64) float64 {
	return 1.0 / (float64(depth) + 1.0)
}

// damp discounts a seen point's own contribution in proportion to how many
// duplicates of it the tree already holds, so a point that keeps
// reappearing doesn't inflate its own anomaly score.
func damp(leafMass, treeMass int64) float64 {
	if treeMass == 0 {
		return 1.0
	}
	return 1.0 - float64(leafMass)/(2.0*float64(treeMass))
}

func linfDistance(a, b []float64) float64 {
	var maxDist float64
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if d > maxDist {
			maxDist = d
		}
	}
	return maxDist
}

func pointsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
