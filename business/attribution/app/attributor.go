package app

import (
	"context"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/mev-bundler/business/attribution/domain"
	"github.com/fd1az/mev-bundler/internal/logger"
)

const (
	tracerName = "github.com/fd1az/mev-bundler/business/attribution"
	meterName  = "github.com/fd1az/mev-bundler/business/attribution"
)

// AttributorConfig holds attribution settings.
type AttributorConfig struct {
	HistoryLength   int
	MinSamples      int
	RefreshInterval time.Duration
	Weights         map[domain.Method]float64
}

type attributorMetrics struct {
	outcomes metric.Int64Counter
	rebuilds metric.Int64Counter
	keys     metric.Int64Gauge
}

// Attributor records execution outcomes and periodically rebuilds the
// history table the risk scorer reads.
type Attributor struct {
	config AttributorConfig
	store  OutcomeStore
	logger logger.LoggerInterface
	now    func() time.Time

	table atomic.Pointer[domain.HistoryTable]

	tracer  trace.Tracer
	metrics *attributorMetrics
}

// NewAttributor creates an attributor publishing an empty table.
func NewAttributor(cfg AttributorConfig, store OutcomeStore, log logger.LoggerInterface) (*Attributor, error) {
	if cfg.HistoryLength <= 0 {
		cfg.HistoryLength = 100
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if len(cfg.Weights) == 0 {
		cfg.Weights = DefaultMethodWeights()
	}

	a := &Attributor{
		config: cfg,
		store:  store,
		logger: log,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	if err := a.initMetrics(); err != nil {
		return nil, err
	}
	a.table.Store(domain.EmptyHistory())
	return a, nil
}

func (a *Attributor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	a.metrics = &attributorMetrics{}

	a.metrics.outcomes, err = meter.Int64Counter(
		"attribution_outcomes_total",
		metric.WithDescription("Execution outcomes recorded"),
	)
	if err != nil {
		return err
	}

	a.metrics.rebuilds, err = meter.Int64Counter(
		"attribution_rebuilds_total",
		metric.WithDescription("History table rebuilds"),
	)
	if err != nil {
		return err
	}

	a.metrics.keys, err = meter.Int64Gauge(
		"attribution_history_keys",
		metric.WithDescription("Keys in the published history table"),
	)
	return err
}

// Table returns the latest published table.
func (a *Attributor) Table() *domain.HistoryTable {
	return a.table.Load()
}

// Record validates and stores an outcome reported by the execution layer.
func (a *Attributor) Record(ctx context.Context, o domain.Outcome) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if err := a.store.Record(ctx, o); err != nil {
		return err
	}
	a.metrics.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(o.Kind)),
		attribute.Bool("success", o.Success),
	))
	return nil
}

// Rebuild recomputes every key from the store and publishes a new table.
// On error the previous table stays published.
func (a *Attributor) Rebuild(ctx context.Context) error {
	ctx, span := a.tracer.Start(ctx, "attribution.rebuild")
	defer span.End()

	keys, err := a.store.Keys(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list keys")
		return err
	}
	sort.Strings(keys)

	entries := make(map[string]domain.Entry, len(keys))
	for _, key := range keys {
		outcomes, err := a.store.Recent(ctx, key, a.config.HistoryLength)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load outcomes")
			return err
		}
		if e, ok := Attribute(outcomes, a.config.MinSamples, a.config.Weights); ok {
			entries[key] = e
		}
	}

	table := domain.NewHistoryTable(entries, a.now())
	a.table.Store(table)

	a.metrics.rebuilds.Add(ctx, 1)
	a.metrics.keys.Record(ctx, int64(table.Len()))
	span.SetAttributes(attribute.Int("keys", table.Len()))
	span.SetStatus(codes.Ok, "")
	return nil
}

// Run rebuilds immediately and then every RefreshInterval until ctx is done.
func (a *Attributor) Run(ctx context.Context) {
	ticker := time.NewTicker(a.config.RefreshInterval)
	defer ticker.Stop()

	for {
		if err := a.Rebuild(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn(ctx, "history rebuild failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Healthy pings the outcome store.
func (a *Attributor) Healthy(ctx context.Context) (bool, string) {
	if err := a.store.Ping(ctx); err != nil {
		return false, err.Error()
	}
	return true, "history keys: " + strconv.Itoa(a.Table().Len())
}
