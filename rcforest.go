// Package rcforest is the public API of the streaming Random Cut Forest
// anomaly-detection engine: construct a Forest from Options, feed it
// points with Update, and query it with Score, Attribution, Density,
// Neighbors, Impute, or Extrapolate. Shingling, thresholding, and other
// higher-level post-processing are left to wrappers built on top of this
// surface; the core only ever sees already-shingled, fixed-width points.
package rcforest

import (
	"context"
	"math/rand/v2"
	"runtime"

	"github.com/streamrcf/rcforest/internal/forest"
	"github.com/streamrcf/rcforest/internal/pointstore"
	"github.com/streamrcf/rcforest/internal/sampler"
	"github.com/streamrcf/rcforest/internal/tree"
	"github.com/streamrcf/rcforest/pkg/errors"
	"github.com/streamrcf/rcforest/pkg/model"
	"github.com/streamrcf/rcforest/pkg/telemetry"
	"github.com/streamrcf/rcforest/pkg/utils"
)

// Precision names a point component width. New does not consult it: the
// engine always stores and computes in double precision, Update accepts
// float64 points, and UpdateFloat32 widens float32 points, whatever the
// configured Precision.
type Precision int

const (
	Double Precision = iota
	Single
)

// Options are the forest's construction options (spec §6).
type Options struct {
	// Dimensions is the point width. Required.
	Dimensions int

	// NumberOfTrees is the component count. Default 50.
	NumberOfTrees int

	// SampleSize is each component's sampler capacity. Default 256.
	SampleSize int

	// TimeDecay is the sampler's time-decay coefficient lambda. Default
	// 1/(10*SampleSize).
	TimeDecay float64

	// OutputAfter is the number of updates before queries stop returning
	// their zero value. Default SampleSize/4.
	OutputAfter int64

	// ParallelExecutionEnabled selects the worker-pool executor over the
	// sequential, P=1 executor. Default true.
	ParallelExecutionEnabled bool

	// ThreadPoolSize is the worker count when ParallelExecutionEnabled is
	// true. 0 selects a runtime.NumCPU()-derived default.
	ThreadPoolSize int

	// StoreSequenceIndexesEnabled maintains each leaf's sequence-index
	// multiset, consumed by Neighbors' result.
	StoreSequenceIndexesEnabled bool

	// CenterOfMassEnabled maintains a running point-sum per subtree.
	CenterOfMassEnabled bool

	// BoundingBoxCacheFraction in [0,1] selects what fraction of internal
	// nodes cache their bounding box. Default 1.0.
	BoundingBoxCacheFraction float64

	// RandomSeed is the forest's single seed; per-tree RNGs are derived
	// from it deterministically (spec §9), so two forests built with the
	// same seed and fed the same stream agree bit-for-bit.
	RandomSeed uint64

	// Precision is the nominal input width. Double by default; New does not
	// read it.
	Precision Precision

	// SharedPointStore selects the shared-store coordinator (points are
	// deduplicated and refcounted across components) over the passthrough
	// coordinator (each component holds its own copy). Default true; the
	// shared store is the realistic, memory-bounded default and is what
	// every other construction option assumes.
	SharedPointStore bool
}

// DefaultOptions returns Options with every spec §6 default applied,
// leaving Dimensions at its zero value for the caller to fill in.
func DefaultOptions() Options {
	sampleSize := 256
	return Options{
		NumberOfTrees:            50,
		SampleSize:               sampleSize,
		TimeDecay:                1.0 / (10.0 * float64(sampleSize)),
		OutputAfter:              int64(sampleSize / 4),
		ParallelExecutionEnabled: true,
		BoundingBoxCacheFraction: 1.0,
		SharedPointStore:         true,
	}
}

// validate fills in zero-valued defaults and rejects out-of-range options.
func (o *Options) validate() error {
	if o.Dimensions <= 0 {
		return errors.Wrap(errors.CodeInvalidArgument, "dimensions must be positive", nil)
	}
	if o.NumberOfTrees <= 0 {
		o.NumberOfTrees = 50
	}
	if o.SampleSize <= 0 {
		o.SampleSize = 256
	}
	if o.TimeDecay <= 0 {
		o.TimeDecay = 1.0 / (10.0 * float64(o.SampleSize))
	}
	if o.OutputAfter <= 0 {
		o.OutputAfter = int64(o.SampleSize / 4)
	}
	if o.BoundingBoxCacheFraction < 0 || o.BoundingBoxCacheFraction > 1 {
		return errors.Wrap(errors.CodeInvalidArgument, "boundingBoxCacheFraction must be in [0,1]", nil)
	}
	if o.ParallelExecutionEnabled && o.ThreadPoolSize <= 0 {
		workers := runtime.NumCPU()
		if workers > 8 {
			workers = 8
		}
		if workers < 2 {
			workers = 2
		}
		o.ThreadPoolSize = workers
	}
	return nil
}

// splitmix64 is the standard SplitMix64 step, used to derive each
// component's RNG seed from the forest's single seed (spec §9: "derived
// from the forest seed by a deterministic derivation, e.g. a splitmix
// step per component").
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	z := x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// deriveComponentSeed returns the two PCG seed words for component index
// idx, reshuffling the component order does not change any individual
// component's stream because each index maps to an independent splitmix
// step rather than a shared running generator.
func deriveComponentSeed(root uint64, idx int) (uint64, uint64) {
	a := splitmix64(root + uint64(idx)*2 + 1)
	b := splitmix64(a)
	return a, b
}

// Forest is a streaming Random Cut Forest: an ordered set of samplers and
// trees sharing one point store, queried and updated through this type's
// methods (internal/forest.Forest does the actual work; this type exists
// so callers outside this module never need to import an internal
// package).
type Forest struct {
	inner            *forest.Forest
	constructionLog  *utils.Timer
	telemetryStopper telemetry.ShutdownFunc
}

// New constructs a Forest from opts. Construction is timed phase-by-phase
// (point store, components, wiring); ConstructionTrace reports it, the
// same one-shot multi-phase profiling idiom the teacher applies to a
// single hprof parse pass rather than to anything called per-point.
//
// If tracing is enabled via the standard OTEL_* environment variables
// (pkg/telemetry), New starts the global TracerProvider those Update/
// Score spans report through; callers that enable it should call
// Forest.Shutdown before exiting to flush pending spans.
func New(opts Options) (*Forest, error) {
	timer := utils.NewTimer("rcforest.New")

	if err := opts.validate(); err != nil {
		return nil, err
	}

	stop, err := telemetry.Init(context.Background())
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "telemetry initialization failed", err)
	}

	psPhase := timer.Start("point store")
	ps := pointstore.New(opts.Dimensions, opts.NumberOfTrees*opts.SampleSize)
	psPhase.Stop()

	componentsPhase := timer.Start("components")
	components := make([]*forest.Component, opts.NumberOfTrees)
	for i := 0; i < opts.NumberOfTrees; i++ {
		s1, s2 := deriveComponentSeed(opts.RandomSeed, i)
		rng := rand.New(rand.NewPCG(s1, s2))

		smp, err := sampler.New(opts.SampleSize, opts.TimeDecay, rng)
		if err != nil {
			return nil, err
		}
		tr, err := tree.NewTree(opts.Dimensions, opts.SampleSize, opts.BoundingBoxCacheFraction, rng, ps, opts.StoreSequenceIndexesEnabled, opts.CenterOfMassEnabled)
		if err != nil {
			return nil, err
		}
		components[i] = forest.NewComponent(smp, tr)
	}
	componentsPhase.Stop()

	wiringPhase := timer.Start("wiring")
	var coordinator forest.Coordinator
	if opts.SharedPointStore {
		coordinator = forest.NewSharedStoreCoordinator()
	} else {
		coordinator = forest.NewPassthroughCoordinator()
	}

	executor := forest.NewExecutor(1)
	if opts.ParallelExecutionEnabled {
		executor = forest.NewExecutor(opts.ThreadPoolSize)
	}
	inner := forest.NewForest(opts.Dimensions, opts.SampleSize, opts.OutputAfter, components, ps, coordinator, executor)
	wiringPhase.Stop()

	return &Forest{inner: inner, constructionLog: timer, telemetryStopper: stop}, nil
}

// ConstructionTrace reports how long each phase of New took to build this
// forest (point store allocation, per-tree sampler/tree construction,
// coordinator/executor wiring).
func (f *Forest) ConstructionTrace() string { return f.constructionLog.Summary() }

// Shutdown flushes and stops the TracerProvider New started. A no-op when
// tracing was never enabled.
func (f *Forest) Shutdown(ctx context.Context) error { return f.telemetryStopper(ctx) }

// UpdateSummary reports what Update did across every component.
type UpdateSummary struct {
	TotalUpdates int64
	Accepted     int
	Evicted      int
}

// Update ingests one point.
func (f *Forest) Update(point []float64) (UpdateSummary, error) {
	s, err := f.inner.Update(point)
	if err != nil {
		return UpdateSummary{}, err
	}
	return UpdateSummary{TotalUpdates: s.TotalUpdates, Accepted: s.Accepted, Evicted: s.Evicted}, nil
}

// UpdateFloat32 widens a single-precision point before ingesting it.
func (f *Forest) UpdateFloat32(point []float32) (UpdateSummary, error) {
	return f.Update(widen(point))
}

// Score returns the forest's anomaly score for point.
func (f *Forest) Score(point []float64) (float64, error) { return f.inner.Score(point) }

// Attribution returns the per-dimension anomaly attribution for point.
func (f *Forest) Attribution(point []float64) (*model.DiVector, error) { return f.inner.Attribution(point) }

// Density returns the forest's density estimate at point.
func (f *Forest) Density(point []float64) (model.DensityOutput, error) { return f.inner.Density(point) }

// Neighbors returns the nearest sampled point to point within threshold,
// or nil if none qualifies.
func (f *Forest) Neighbors(point []float64, threshold float64) (*model.Neighbor, error) {
	return f.inner.Neighbors(point, threshold)
}

// Impute fills point's coordinates at missingIndexes with the
// lowest-scoring completion the forest can construct.
func (f *Forest) Impute(point []float64, missingIndexes []int) ([]float64, error) {
	return f.inner.Impute(point, missingIndexes)
}

// Extrapolate forecasts horizon steps ahead.
func (f *Forest) Extrapolate(horizon int) (*model.RangeVector, error) { return f.inner.Extrapolate(horizon) }

// TotalUpdates returns the number of points ingested so far.
func (f *Forest) TotalUpdates() int64 { return f.inner.TotalUpdates() }

// SetLogger attaches a logger that receives per-update diagnostics
// (acceptance/eviction counts, coordinator and component errors). The
// forest is silent by default.
func (f *Forest) SetLogger(logger utils.Logger) { f.inner.SetLogger(logger) }

func widen(point []float32) []float64 {
	out := make([]float64, len(point))
	for i, v := range point {
		out[i] = float64(v)
	}
	return out
}
