// Package forest assembles the per-component samplers and trees into a
// single forest, fanning update and query work across them through the
// executor and coordinator (spec §4.6-§4.8).
package forest

import (
	"context"
	"math"
	"sync/atomic"

	"go.opentelemetry.io/otel"

	"github.com/streamrcf/rcforest/internal/pointstore"
	"github.com/streamrcf/rcforest/internal/tree"
	"github.com/streamrcf/rcforest/internal/visitor"
	"github.com/streamrcf/rcforest/pkg/errors"
	"github.com/streamrcf/rcforest/pkg/model"
	"github.com/streamrcf/rcforest/pkg/utils"
)

var tracer = otel.Tracer("github.com/streamrcf/rcforest/internal/forest")

// UpdateSummary reports what a forest-level Update did across every
// component, for callers that want update-time diagnostics.
type UpdateSummary struct {
	TotalUpdates int64
	Accepted     int
	Evicted      int
}

// Forest is the public engine: an ordered set of (sampler, tree)
// components sharing one point store, fanned out by an Executor and
// reconciled by a Coordinator (spec §4.7).
type Forest struct {
	dimensions  int
	sampleSize  int
	outputAfter int64

	components  []*Component
	ps          *pointstore.PointStore
	coordinator Coordinator
	executor    *Executor

	totalUpdates int64
	nextSequence int64

	seenThreshold int64

	logger utils.Logger
}

// NewForest assembles a Forest from already-constructed components. ps
// must be the same PointStore every component's tree was built against.
func NewForest(dimensions, sampleSize int, outputAfter int64, components []*Component, ps *pointstore.PointStore, coordinator Coordinator, executor *Executor) *Forest {
	return &Forest{
		dimensions:  dimensions,
		sampleSize:  sampleSize,
		outputAfter: outputAfter,
		components:  components,
		ps:          ps,
		coordinator: coordinator,
		executor:    executor,
		logger:      &utils.NullLogger{},
	}
}

// SetLogger replaces the forest's logger. A nil logger restores the
// default no-op logger.
func (f *Forest) SetLogger(logger utils.Logger) {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	f.logger = logger
}

// TotalUpdates returns the number of points the forest has ingested.
func (f *Forest) TotalUpdates() int64 { return atomic.LoadInt64(&f.totalUpdates) }

// ready reports whether the forest has seen enough updates to return
// non-default query results (spec §6's outputAfter construction option).
func (f *Forest) ready() bool { return f.TotalUpdates() >= f.outputAfter }

// canonicalizeZero returns a copy of point with every -0.0 replaced by
// +0.0, the coordinator's clean-copy rule (spec §4.1) applied before any
// point reaches the shared store's bitwise dedup comparison.
func canonicalizeZero(point []float64) []float64 {
	clean := make([]float64, len(point))
	for i, v := range point {
		if v == 0 {
			clean[i] = 0
		} else {
			clean[i] = v
		}
	}
	return clean
}

// Update ingests one point: it is canonicalized, handed to the
// coordinator for reference allocation, fanned out to every component,
// and the resulting refcount deltas are reconciled before totalUpdates
// advances (spec §4.7, §5 "advanced exactly once per update after the
// barrier").
func (f *Forest) Update(point []float64) (UpdateSummary, error) {
	ctx, span := tracer.Start(context.Background(), "Forest.Update")
	defer span.End()

	if len(point) != f.dimensions {
		return UpdateSummary{}, errors.Wrap(errors.CodeInvalidArgument, "point dimensionality mismatch", nil)
	}
	clean := canonicalizeZero(point)
	sequence := atomic.AddInt64(&f.nextSequence, 1) - 1

	refs, err := f.coordinator.Refs(f.ps, clean, len(f.components))
	if err != nil {
		f.logger.Error("coordinator failed to allocate refs for sequence %d: %v", sequence, err)
		return UpdateSummary{}, err
	}

	raw, err := f.executor.Run(ctx, len(f.components), func(_ context.Context, idx int) (interface{}, error) {
		return f.components[idx].Update(refs[idx], sequence)
	})
	if err != nil {
		f.logger.Error("component update failed at sequence %d: %v", sequence, err)
		return UpdateSummary{}, err
	}

	results := make([]UpdateResult, len(raw))
	summary := UpdateSummary{}
	for i, r := range raw {
		res := r.(UpdateResult)
		results[i] = res
		if res.Noop {
			continue
		}
		summary.Accepted++
		if res.Deleted != noRef {
			summary.Evicted++
		}
	}

	if err := f.coordinator.Complete(f.ps, refs, results); err != nil {
		f.logger.Error("coordinator failed to reconcile refcounts at sequence %d: %v", sequence, err)
		return UpdateSummary{}, err
	}

	f.logger.Debug("update %d: accepted by %d/%d components, evicted %d", sequence, summary.Accepted, len(f.components), summary.Evicted)

	summary.TotalUpdates = atomic.AddInt64(&f.totalUpdates, 1)
	return summary, nil
}

// Score returns the forest's anomaly score for point: the sum-then-
// finisher average of every component's ScoreVisitor result, normalized
// by the fixed forest-level normalizer (spec §4.5 "Normalization"). Before
// outputAfter updates have been ingested it returns 0.
func (f *Forest) Score(point []float64) (float64, error) {
	if !f.ready() {
		return 0, nil
	}
	ctx, span := tracer.Start(context.Background(), "Forest.Score")
	defer span.End()
	clean := canonicalizeZero(point)

	raw, err := f.executor.Run(ctx, len(f.components), func(_ context.Context, idx int) (interface{}, error) {
		t := f.components[idx].Tree
		sv := visitor.NewScoreVisitor(clean, t.Mass(), f.seenThreshold)
		t.Traverse(clean, sv)
		return sv.Score(), nil
	})
	if err != nil {
		return 0, err
	}

	scores := make([]float64, len(raw))
	for i, r := range raw {
		scores[i] = r.(float64)
	}
	avg := SumScores(scores)
	return NormalizeScore(avg, int64(f.sampleSize)), nil
}

// Attribution returns the forest-level DiVector whose sum reproduces
// Score(point) (up to the same averaging the score itself uses, before
// normalization).
func (f *Forest) Attribution(point []float64) (*model.DiVector, error) {
	if !f.ready() {
		return model.NewDiVector(f.dimensions), nil
	}
	ctx, span := tracer.Start(context.Background(), "Forest.Attribution")
	defer span.End()
	clean := canonicalizeZero(point)

	raw, err := f.executor.Run(ctx, len(f.components), func(_ context.Context, idx int) (interface{}, error) {
		t := f.components[idx].Tree
		av := visitor.NewAttributionVisitor(f.dimensions, clean, t.Mass(), f.seenThreshold)
		t.Traverse(clean, av)
		return av.Result(), nil
	})
	if err != nil {
		return nil, err
	}

	perTree := make([]*model.DiVector, len(raw))
	for i, r := range raw {
		perTree[i] = r.(*model.DiVector)
	}
	return SumDiVectors(f.dimensions, perTree), nil
}

// Density returns the forest-level density estimate for point (spec §4.5
// "Simple density").
func (f *Forest) Density(point []float64) (model.DensityOutput, error) {
	if !f.ready() {
		return model.DensityOutput{Measure: model.NewInterpolationMeasure(f.dimensions)}, nil
	}
	ctx, span := tracer.Start(context.Background(), "Forest.Density")
	defer span.End()
	clean := canonicalizeZero(point)

	raw, err := f.executor.Run(ctx, len(f.components), func(_ context.Context, idx int) (interface{}, error) {
		t := f.components[idx].Tree
		dv := visitor.NewDensityVisitor(f.dimensions, clean)
		t.Traverse(clean, dv)
		return dv.Result(), nil
	})
	if err != nil {
		return model.DensityOutput{}, err
	}

	perTree := make([]*model.InterpolationMeasure, len(raw))
	for i, r := range raw {
		perTree[i] = r.(*model.InterpolationMeasure)
	}
	measure := SumInterpolationMeasures(f.dimensions, perTree)
	return visitor.FinishDensity(measure), nil
}

// Neighbors returns the forest's nearest sampled point to query within
// threshold, across every component (spec §4.5 "Near-neighbor").
func (f *Forest) Neighbors(point []float64, threshold float64) (*model.Neighbor, error) {
	if !f.ready() {
		return nil, nil
	}
	ctx, span := tracer.Start(context.Background(), "Forest.Neighbors")
	defer span.End()
	clean := canonicalizeZero(point)

	raw, err := f.executor.Run(ctx, len(f.components), func(_ context.Context, idx int) (interface{}, error) {
		t := f.components[idx].Tree
		nv := visitor.NewNeighborVisitor(clean, threshold)
		t.Traverse(clean, nv)
		return nv.Result(), nil
	})
	if err != nil {
		return nil, err
	}

	perTree := make([]*model.Neighbor, len(raw))
	for i, r := range raw {
		if r == nil {
			continue
		}
		perTree[i] = r.(*model.Neighbor)
	}
	return NearestNeighbor(perTree), nil
}

// Impute fills point's coordinates at missingIndexes with the completion
// that scores lowest across every component (spec §4.5 "Imputation").
func (f *Forest) Impute(point []float64, missingIndexes []int) ([]float64, error) {
	if !f.ready() {
		return append([]float64(nil), point...), nil
	}
	ctx, span := tracer.Start(context.Background(), "Forest.Impute")
	defer span.End()

	raw, err := f.executor.Run(ctx, len(f.components), func(_ context.Context, idx int) (interface{}, error) {
		t := f.components[idx].Tree
		iv := visitor.NewImputeVisitor(point, missingIndexes, t.Mass())
		t.TraverseMulti(point, iv)
		return imputeCandidate{point: iv.Result().([]float64), score: iv.Score()}, nil
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]imputeCandidate, len(raw))
	for i, r := range raw {
		candidates[i] = r.(imputeCandidate)
	}
	best := BestImputation(candidates)
	if best == nil {
		return append([]float64(nil), point...), nil
	}
	return best, nil
}

// Extrapolate returns a horizon-length range vector whose Values stay zero
// and whose Upper/Lower band is plus/minus the per-component standard
// deviation of sampler entry weights, averaged over components. The core ships only this
// minimal range-vector construction; shingling, seasonality, and
// higher-level forecast post-processing are wrapper concerns (spec's
// Non-goals) layered outside the forest.
func (f *Forest) Extrapolate(horizon int) (*model.RangeVector, error) {
	rv := model.NewRangeVector(horizon)
	if !f.ready() || horizon == 0 {
		return rv, nil
	}
	_, span := tracer.Start(context.Background(), "Forest.Extrapolate")
	defer span.End()

	var spread float64
	for _, c := range f.components {
		entries := c.Sampler.Entries()
		if len(entries) == 0 {
			continue
		}
		var sum, sumSq float64
		for _, e := range entries {
			sum += e.Weight
			sumSq += e.Weight * e.Weight
		}
		n := float64(len(entries))
		mean := sum / n
		variance := sumSq/n - mean*mean
		if variance > 0 {
			spread += math.Sqrt(variance)
		}
	}
	if len(f.components) > 0 {
		spread /= float64(len(f.components))
	}

	for i := range rv.Values {
		rv.Upper[i] = spread
		rv.Lower[i] = -spread
	}
	return rv, nil
}

// Components exposes the underlying components for diagnostics and tests.
func (f *Forest) Components() []*Component { return f.components }

// Tree returns the idx'th component's tree, for diagnostics and tests.
func (f *Forest) Tree(idx int) *tree.RandomCutTree { return f.components[idx].Tree }
