package app

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/mev-bundler/business/network/domain"
	"github.com/fd1az/mev-bundler/internal/logger"
	"github.com/fd1az/mev-bundler/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/mev-bundler/business/network"
	meterName  = "github.com/fd1az/mev-bundler/business/network"
)

// TrackerConfig holds refresh settings.
type TrackerConfig struct {
	Network         string
	RefreshInterval time.Duration
	StaleAfter      time.Duration
	RequestsPerMin  int
}

type trackerMetrics struct {
	refreshes  metric.Int64Counter
	failures   metric.Int64Counter
	multiplier metric.Float64Gauge
}

// Tracker publishes congestion snapshots. Readers load an immutable value, so
// they never observe a half-updated state.
type Tracker struct {
	config  TrackerConfig
	source  CongestionSource
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface
	now     func() time.Time

	current atomic.Pointer[domain.CongestionState]

	tracer  trace.Tracer
	metrics *trackerMetrics
}

// NewTracker creates a tracker seeded with a neutral state.
func NewTracker(cfg TrackerConfig, source CongestionSource, log logger.LoggerInterface) (*Tracker, error) {
	t := &Tracker{
		config:  cfg,
		source:  source,
		limiter: ratelimit.New(cfg.RequestsPerMin),
		logger:  log,
		now:     time.Now,
		tracer:  otel.Tracer(tracerName),
	}
	if err := t.initMetrics(); err != nil {
		return nil, err
	}

	neutral := domain.Neutral(cfg.Network, t.now())
	t.current.Store(&neutral)
	return t, nil
}

func (t *Tracker) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	t.metrics = &trackerMetrics{}

	t.metrics.refreshes, err = meter.Int64Counter(
		"congestion_refresh_total",
		metric.WithDescription("Congestion refresh attempts"),
	)
	if err != nil {
		return err
	}

	t.metrics.failures, err = meter.Int64Counter(
		"congestion_refresh_failures_total",
		metric.WithDescription("Congestion refreshes that failed"),
	)
	if err != nil {
		return err
	}

	t.metrics.multiplier, err = meter.Float64Gauge(
		"congestion_multiplier",
		metric.WithDescription("Current congestion multiplier"),
	)
	return err
}

// Current returns the latest state. A stale state degrades to neutral
// rather than pinning fees to an old spike.
func (t *Tracker) Current() domain.CongestionState {
	st := *t.current.Load()
	now := t.now()
	if st.Stale(now, t.config.StaleAfter) {
		return domain.Neutral(t.config.Network, now)
	}
	return st
}

// Multiplier returns Current().Multiplier.
func (t *Tracker) Multiplier() float64 {
	return t.Current().Multiplier
}

// Healthy reports whether the last good refresh is within StaleAfter.
func (t *Tracker) Healthy() (bool, string) {
	st := t.current.Load()
	if st.Stale(t.now(), t.config.StaleAfter) {
		return false, "congestion state stale since " + st.ObservedAt.Format(time.RFC3339)
	}
	return true, st.Source
}

// Refresh fetches once. Failures keep the previous state.
func (t *Tracker) Refresh(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "congestion.refresh",
		trace.WithAttributes(attribute.String("source", t.source.Name())))
	defer span.End()

	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	t.metrics.refreshes.Add(ctx, 1)

	st, err := t.source.Fetch(ctx)
	if err != nil {
		t.metrics.failures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return err
	}
	if st.Network == "" {
		st.Network = t.config.Network
	}
	if st.ObservedAt.IsZero() {
		st.ObservedAt = t.now()
	}
	st.Multiplier = domain.ClampMultiplier(st.Multiplier, 0)

	t.current.Store(&st)
	t.metrics.multiplier.Record(ctx, st.Multiplier)

	span.SetAttributes(attribute.Float64("multiplier", st.Multiplier))
	span.SetStatus(codes.Ok, "")
	return nil
}

// Run refreshes immediately and then every RefreshInterval until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	interval := t.config.RefreshInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := t.Refresh(ctx); err != nil && ctx.Err() == nil {
			t.logger.Warn(ctx, "congestion refresh failed", "source", t.source.Name(), "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
