// Package app chooses the execution order of validated bundles.
package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/mev-bundler/business/bundle/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
	"github.com/fd1az/mev-bundler/internal/logger"
)

const (
	tracerName = "github.com/fd1az/mev-bundler/business/ordering"
	meterName  = "github.com/fd1az/mev-bundler/business/ordering"

	exhaustiveMaxSize = 5
	geneticMaxSize    = 15
)

// Config tunes the search branches and the objective.
type Config struct {
	Concurrency      int
	GeneticTimeout   time.Duration
	AnnealingTimeout time.Duration
	Population       int
	Generations      int
	MutationRate     float64
	InitialTemp      float64
	CoolingRate      float64
	MinTemp          float64
	DriftRate        float64
	ViolationPenalty float64
	Seed             int64
	MaxPermutations  int // exhaustive search bound; larger small bundles go greedy
}

// DefaultConfig returns the production search parameters.
func DefaultConfig() Config {
	return Config{
		Concurrency:      3,
		GeneticTimeout:   2 * time.Second,
		AnnealingTimeout: 5 * time.Second,
		Population:       40,
		Generations:      50,
		MutationRate:     0.1,
		InitialTemp:      10,
		CoolingRate:      0.995,
		MinTemp:          0.001,
		DriftRate:        0.001,
		ViolationPenalty: 1000,
		MaxPermutations:  120,
	}
}

// Result is a chosen execution order.
type Result struct {
	Order       []int
	Algorithm   domain.Algorithm
	Unoptimized bool
	TimedOut    bool
	Objective   float64
}

type optimizerMetrics struct {
	runs      metric.Int64Counter
	timeouts  metric.Int64Counter
	fallbacks metric.Int64Counter
	duration  metric.Float64Histogram
}

// Optimizer orders bundles. It keeps no per-bundle state and is safe for
// concurrent use.
type Optimizer struct {
	config Config
	logger logger.LoggerInterface

	tracer  trace.Tracer
	metrics *optimizerMetrics
}

// NewOptimizer creates an optimizer, filling zero settings from DefaultConfig.
func NewOptimizer(cfg Config, log logger.LoggerInterface) (*Optimizer, error) {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.GeneticTimeout <= 0 {
		cfg.GeneticTimeout = def.GeneticTimeout
	}
	if cfg.AnnealingTimeout <= 0 {
		cfg.AnnealingTimeout = def.AnnealingTimeout
	}
	if cfg.Population <= 0 {
		cfg.Population = def.Population
	}
	if cfg.Generations <= 0 {
		cfg.Generations = def.Generations
	}
	if cfg.InitialTemp <= 0 {
		cfg.InitialTemp = def.InitialTemp
	}
	if cfg.CoolingRate <= 0 || cfg.CoolingRate >= 1 {
		cfg.CoolingRate = def.CoolingRate
	}
	if cfg.MinTemp <= 0 {
		cfg.MinTemp = def.MinTemp
	}
	if cfg.ViolationPenalty <= 0 {
		cfg.ViolationPenalty = def.ViolationPenalty
	}
	if cfg.MaxPermutations <= 0 {
		cfg.MaxPermutations = def.MaxPermutations
	}

	o := &Optimizer{
		config: cfg,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
	if err := o.initMetrics(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Optimizer) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &optimizerMetrics{}

	o.metrics.runs, err = meter.Int64Counter(
		"ordering_runs_total",
		metric.WithDescription("Bundles ordered by algorithm"),
	)
	if err != nil {
		return err
	}

	o.metrics.timeouts, err = meter.Int64Counter(
		"ordering_timeouts_total",
		metric.WithDescription("Searches cut short by their time budget"),
	)
	if err != nil {
		return err
	}

	o.metrics.fallbacks, err = meter.Int64Counter(
		"ordering_fallbacks_total",
		metric.WithDescription("Bundles frozen in plain topological order"),
	)
	if err != nil {
		return err
	}

	o.metrics.duration, err = meter.Float64Histogram(
		"ordering_duration_ms",
		metric.WithDescription("Time spent ordering one bundle"),
		metric.WithUnit("ms"),
	)
	return err
}

// Order chooses an execution order for b without freezing it.
//
// Dense dependency graphs are sorted topologically with a profit tiebreak.
// Otherwise up to five items are searched exhaustively, up to fifteen by a
// genetic search and larger bundles by simulated annealing. A cyclic graph
// fails with DEPENDENCY_CYCLE. If a search returns an order that breaks a
// dependency the plain topological order is used and marked unoptimized.
func (o *Optimizer) Order(ctx context.Context, b *domain.Bundle) (Result, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "ordering.order",
		trace.WithAttributes(
			attribute.String("bundle.id", b.ID),
			attribute.Int("bundle.size", b.Len()),
		),
	)
	defer span.End()

	items := b.Items()
	g := domain.Dependencies(items)
	plain, err := g.TopoSort(nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dependency cycle")
		return Result{}, err
	}

	obj := newObjective(items, g, o.config)
	rng := o.rng(b.ID)
	n := len(items)

	var res Result
	switch {
	case n <= 1:
		res = Result{Order: plain, Algorithm: domain.AlgorithmTopological}
	case g.Dense():
		order, _ := g.TopoSort(obj.byProfit)
		res = Result{Order: order, Algorithm: domain.AlgorithmGraph}
	case n <= exhaustiveMaxSize && factorial(n, o.config.MaxPermutations) <= o.config.MaxPermutations:
		res = Result{Order: exhaustive(obj), Algorithm: domain.AlgorithmExhaustive}
	case n <= exhaustiveMaxSize:
		order, _ := g.TopoSort(obj.byProfit)
		res = Result{Order: order, Algorithm: domain.AlgorithmGreedy}
	case n <= geneticMaxSize:
		seed, _ := g.TopoSort(obj.byProfit)
		sctx, cancel := context.WithTimeout(ctx, o.config.GeneticTimeout)
		order, timedOut := genetic(sctx, obj, seed, o.config, rng)
		cancel()
		res = Result{Order: order, Algorithm: domain.AlgorithmGenetic, TimedOut: timedOut}
	default:
		seed, _ := g.TopoSort(obj.byProfit)
		sctx, cancel := context.WithTimeout(ctx, o.config.AnnealingTimeout)
		order, timedOut := anneal(sctx, obj, seed, o.config, rng)
		cancel()
		res = Result{Order: order, Algorithm: domain.AlgorithmAnnealing, TimedOut: timedOut}
	}

	if !domain.IsPermutation(res.Order, n) || !g.Satisfied(res.Order) {
		o.metrics.fallbacks.Add(ctx, 1)
		o.logger.Warn(ctx, "search produced an invalid order, using topological order",
			"bundle_id", b.ID,
			"algorithm", string(res.Algorithm),
		)
		res = Result{Order: plain, Algorithm: domain.AlgorithmTopological, Unoptimized: true, TimedOut: res.TimedOut}
	}
	res.Objective = obj.value(res.Order)

	if res.TimedOut {
		o.metrics.timeouts.Add(ctx, 1, metric.WithAttributes(attribute.String("algorithm", string(res.Algorithm))))
		o.logger.Warn(ctx, "ordering search hit its time budget",
			"bundle_id", b.ID,
			"code", string(apperror.CodeOptimizationTimeout),
			"algorithm", string(res.Algorithm),
		)
	}

	attrs := metric.WithAttributes(attribute.String("algorithm", string(res.Algorithm)))
	o.metrics.runs.Add(ctx, 1, attrs)
	o.metrics.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)

	span.SetAttributes(
		attribute.String("ordering.algorithm", string(res.Algorithm)),
		attribute.Bool("ordering.timed_out", res.TimedOut),
		attribute.Float64("ordering.objective", res.Objective),
	)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// Freeze orders b and freezes it with the chosen order.
func (o *Optimizer) Freeze(ctx context.Context, b *domain.Bundle) error {
	res, err := o.Order(ctx, b)
	if err != nil {
		return err
	}
	return b.Freeze(res.Order, res.Algorithm, res.Unoptimized)
}

// Concurrency is the number of bundles that may be ordered at once.
func (o *Optimizer) Concurrency() int { return o.config.Concurrency }

// rng derives a per-bundle source so a run is reproducible for a given seed.
func (o *Optimizer) rng(bundleID string) *rand.Rand {
	h := fnv.New64a()
	fmt.Fprint(h, bundleID)
	return rand.New(rand.NewPCG(uint64(o.config.Seed), h.Sum64()))
}
