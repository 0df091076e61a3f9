// Package app contains bundle composition: the submission queue, the
// candidate pool, selection strategies and the composer.
package app

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/mev-bundler/business/bundle/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/logger"
)

const (
	tracerName = "github.com/fd1az/mev-bundler/business/bundle"
	meterName  = "github.com/fd1az/mev-bundler/business/bundle"
)

// ComposerConfig holds selection settings.
type ComposerConfig struct {
	Strategy           domain.Strategy
	MaxSize            int
	MaxRisk            float64
	MinProfit          decimal.Decimal
	ExhaustiveLimit    int
	SynergyBonus       float64
	MaxBundlesPerCycle int
}

// BundleCoster prices a set of items together.
type BundleCoster interface {
	BundleCost(items []*oppdomain.Opportunity) oppdomain.CostEstimate
}

// ComposeResult is the outcome of one composition cycle.
type ComposeResult struct {
	Validated []*domain.Bundle
	Rejected  []*domain.Bundle
	Terminal  []*oppdomain.Opportunity // expired or unprofitable, removed from the pool
}

type composerMetrics struct {
	bundles      metric.Int64Counter
	noCandidates metric.Int64Counter
	poolSize     metric.Int64Gauge
	cycleTime    metric.Float64Histogram
}

// Composer owns the candidate pool. Ingest and Compose must be called from a
// single goroutine; PoolSize may be read from anywhere.
type Composer struct {
	config      ComposerConfig
	constraints Constraints
	strategy    Strategy
	costs       BundleCoster
	pool        *Pool
	logger      logger.LoggerInterface
	newID       func() string

	poolSize atomic.Int64
	rejected map[string][]string // signature -> ids of a rejected set

	tracer  trace.Tracer
	metrics *composerMetrics
}

// NewComposer creates a composer.
func NewComposer(cfg ComposerConfig, costs BundleCoster, log logger.LoggerInterface) (*Composer, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 5
	}
	if cfg.MaxRisk <= 0 {
		cfg.MaxRisk = 7
	}
	if cfg.ExhaustiveLimit <= 0 {
		cfg.ExhaustiveLimit = 10
	}
	if cfg.MaxBundlesPerCycle <= 0 {
		cfg.MaxBundlesPerCycle = 1
	}

	strategy, err := NewStrategy(cfg.Strategy, cfg.SynergyBonus)
	if err != nil {
		return nil, err
	}

	c := &Composer{
		config: cfg,
		constraints: Constraints{
			MaxSize:   cfg.MaxSize,
			MaxRisk:   cfg.MaxRisk,
			MinProfit: cfg.MinProfit,
		},
		strategy: strategy,
		costs:    costs,
		pool:     NewPool(),
		logger:   log,
		newID:    uuid.NewString,
		rejected: make(map[string][]string),
		tracer:   otel.Tracer(tracerName),
	}
	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Composer) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &composerMetrics{}

	c.metrics.bundles, err = meter.Int64Counter(
		"bundles_composed_total",
		metric.WithDescription("Bundles composed by status"),
	)
	if err != nil {
		return err
	}

	c.metrics.noCandidates, err = meter.Int64Counter(
		"bundle_no_candidates_total",
		metric.WithDescription("Composition cycles that found nothing new to bundle"),
	)
	if err != nil {
		return err
	}

	c.metrics.poolSize, err = meter.Int64Gauge(
		"bundle_pool_size",
		metric.WithDescription("Opportunities waiting in the candidate pool"),
	)
	if err != nil {
		return err
	}

	c.metrics.cycleTime, err = meter.Float64Histogram(
		"bundle_compose_duration_ms",
		metric.WithDescription("Composition cycle duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// Strategy returns the active strategy.
func (c *Composer) Strategy() Strategy { return c.strategy }

// PoolSize returns the pool size after the last Ingest or Compose.
func (c *Composer) PoolSize() int { return int(c.poolSize.Load()) }

// Ingest moves opportunities into the pool and returns the ones that left
// it terminally: those already terminal, and those dropped with
// EXCLUSIVE_RESOURCE because a newer detection or a validated bundle holds
// their resource.
func (c *Composer) Ingest(opps ...*oppdomain.Opportunity) []*oppdomain.Opportunity {
	var refused []*oppdomain.Opportunity
	for _, opp := range opps {
		dropped, err := c.pool.Add(opp)
		refused = append(refused, dropped...)
		if err != nil {
			refused = append(refused, opp)
		}
	}
	c.poolSize.Store(int64(c.pool.Len()))
	return refused
}

// Sweep removes expired and unprofitable candidates between compose cycles.
func (c *Composer) Sweep(now time.Time) []*oppdomain.Opportunity {
	out := c.pool.Sweep(now)
	c.poolSize.Store(int64(c.pool.Len()))
	return out
}

// Compose sweeps the pool and builds up to MaxBundlesPerCycle bundles.
// Validated bundles take their items out of the pool as Composed. A rejected
// bundle leaves its items Queued; they sit out the rest of the cycle and the
// same set is not rejected again while all of it stays in the pool. Sets whose
// dependency graph is cyclic are rejected with DEPENDENCY_CYCLE first and are
// not counted against MaxBundlesPerCycle.
func (c *Composer) Compose(ctx context.Context, now time.Time) ComposeResult {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "bundle.compose",
		trace.WithAttributes(attribute.String("strategy", string(c.strategy.Name()))))
	defer span.End()

	var res ComposeResult
	res.Terminal = c.pool.Sweep(now)
	c.forget()
	res.Rejected = c.rejectCycles(ctx, now)

	skip := make(map[string]bool)
	for i := 0; i < c.config.MaxBundlesPerCycle; i++ {
		b := c.next(ctx, now, skip)
		if b == nil {
			break
		}
		if b.Status() == domain.StatusRejected {
			res.Rejected = append(res.Rejected, b)
			for _, o := range b.Items() {
				skip[o.ID] = true
			}
			continue
		}
		res.Validated = append(res.Validated, b)
	}

	c.poolSize.Store(int64(c.pool.Len()))
	c.metrics.poolSize.Record(ctx, int64(c.pool.Len()))
	c.metrics.cycleTime.Record(ctx, float64(time.Since(start).Microseconds())/1000)

	span.SetAttributes(
		attribute.Int("validated", len(res.Validated)),
		attribute.Int("rejected", len(res.Rejected)),
		attribute.Int("terminal", len(res.Terminal)),
		attribute.Int("pool", c.pool.Len()),
	)
	span.SetStatus(codes.Ok, "")
	return res
}

// next selects and validates one bundle, or returns nil when the pool minus
// skip offers nothing new. A selection rejected before is skipped and the
// rest of the pool tried.
func (c *Composer) next(ctx context.Context, now time.Time, skip map[string]bool) *domain.Bundle {
	for {
		var pool []*oppdomain.Opportunity
		for _, o := range c.pool.Eligible() {
			if !skip[o.ID] {
				pool = append(pool, o)
			}
		}
		sel := selectItems(pool, c.strategy, c.constraints, c.config.ExhaustiveLimit)
		if len(sel) == 0 {
			c.metrics.noCandidates.Add(ctx, 1)
			return nil
		}

		key := signature(sel)
		if _, seen := c.rejected[key]; seen {
			for _, o := range sel {
				skip[o.ID] = true
			}
			continue
		}

		b := domain.New(c.newID(), c.strategy.Name(), sel, now)
		_ = b.SetCost(c.costs.BundleCost(sel))

		if reasons := c.constraints.Check(b); len(reasons) > 0 {
			c.reject(ctx, b, key, reasons)
			return b
		}

		_ = b.Validate()
		ids := make([]string, len(sel))
		for i, o := range sel {
			_ = o.Transition(oppdomain.StatusComposed)
			ids[i] = o.ID
		}
		c.pool.Remove(ids...)
		c.pool.Retire(sel...)
		c.record(ctx, b)

		c.logger.Debug(ctx, "bundle validated",
			"bundle_id", b.ID,
			"items", b.Len(),
			"profit", b.AggregateProfit().StringFixed(6),
			"risk", b.AggregateRisk())
		return b
	}
}

// rejectCycles rejects every dependency cycle among eligible items that was
// not rejected before. Selection never admits a cyclic set, so these items
// stay Queued and can still be bundled apart.
func (c *Composer) rejectCycles(ctx context.Context, now time.Time) []*domain.Bundle {
	var out []*domain.Bundle
	remaining := c.pool.Eligible()
	for {
		cycle := domain.Dependencies(remaining).FindCycle()
		if cycle == nil {
			return out
		}

		items := make([]*oppdomain.Opportunity, len(cycle))
		in := make(map[int]bool, len(cycle))
		for i, idx := range cycle {
			items[i] = remaining[idx]
			in[idx] = true
		}
		var rest []*oppdomain.Opportunity
		for i, o := range remaining {
			if !in[i] {
				rest = append(rest, o)
			}
		}
		remaining = rest

		key := signature(items)
		if _, seen := c.rejected[key]; seen {
			continue
		}
		b := domain.New(c.newID(), c.strategy.Name(), items, now)
		_ = b.SetCost(c.costs.BundleCost(items))
		c.reject(ctx, b, key, c.constraints.Check(b))
		out = append(out, b)
	}
}

func (c *Composer) reject(ctx context.Context, b *domain.Bundle, key string, reasons []oppdomain.Reason) {
	items := b.Items()
	ids := make([]string, len(items))
	for i, o := range items {
		ids[i] = o.ID
		_ = o.Transition(oppdomain.StatusQueued)
	}
	c.rejected[key] = ids

	_ = b.Reject(reasons...)
	c.record(ctx, b)
	c.logger.Debug(ctx, "bundle rejected", "bundle_id", b.ID, "reasons", b.Snapshot().Reasons)
}

// forget drops remembered rejections once any of their items left the pool.
func (c *Composer) forget() {
	for key, ids := range c.rejected {
		for _, id := range ids {
			if !c.pool.Has(id) {
				delete(c.rejected, key)
				break
			}
		}
	}
}

func (c *Composer) record(ctx context.Context, b *domain.Bundle) {
	c.metrics.bundles.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(b.Status())),
		attribute.String("strategy", string(b.Strategy)),
	))
}

func signature(items []*oppdomain.Opportunity) string {
	ids := make([]string, len(items))
	for i, o := range items {
		ids[i] = o.ID
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
