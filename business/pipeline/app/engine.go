package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	bundleapp "github.com/fd1az/mev-bundler/business/bundle/app"
	bundledomain "github.com/fd1az/mev-bundler/business/bundle/domain"
	marketdomain "github.com/fd1az/mev-bundler/business/market/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
	"github.com/fd1az/mev-bundler/internal/logger"
)

const (
	tracerName = "github.com/fd1az/mev-bundler/business/pipeline"
	meterName  = "github.com/fd1az/mev-bundler/business/pipeline"

	shardBuffer    = 64
	maxFlushCycles = 64
)

// EngineConfig holds the pipeline's concurrency and timing settings.
type EngineConfig struct {
	Workers       int
	DrainInterval time.Duration
	ExpirySweep   time.Duration
	QuoteMaxAge   time.Duration
	EventBuffer   int
	EventTime     bool
}

// Deps are the collaborators the engine drives.
type Deps struct {
	Source     Source
	Conditions Conditions
	Detector   Detector
	Evaluator  Evaluator
	Queue      *bundleapp.Queue
	Composer   Composer
	Orderer    Orderer
	Recorder   Recorder
	Sink       Sink
}

// Stats are running totals since Run started.
type Stats struct {
	Events   int64
	Detected int64
	Overflow int64
	Bundles  int64
	Handoffs int64
	Failures int64
}

type engineMetrics struct {
	events   metric.Int64Counter
	overflow metric.Int64Counter
	handoffs metric.Int64Counter
	latency  metric.Float64Histogram
}

// Engine moves snapshots through detection, evaluation, composition and
// ordering to the sink.
//
// One dispatcher goroutine feeds the conditions tracker and shards events
// onto Workers detector goroutines. Workers submit to the queue, which a
// single composer goroutine drains. Validated bundles are frozen by
// Orderer.Concurrency goroutines and handed to the sink.
type Engine struct {
	config EngineConfig
	deps   Deps
	logger logger.LoggerInterface

	running   atomic.Bool
	watermark atomic.Int64
	events    atomic.Int64
	detected  atomic.Int64
	overflow  atomic.Int64
	bundles   atomic.Int64
	handoffs  atomic.Int64
	failures  atomic.Int64

	tracer  trace.Tracer
	metrics *engineMetrics
}

// NewEngine creates an engine. Every collaborator is required.
func NewEngine(cfg EngineConfig, deps Deps, log logger.LoggerInterface) (*Engine, error) {
	missing := ""
	switch {
	case deps.Source == nil:
		missing = "source"
	case deps.Conditions == nil:
		missing = "conditions"
	case deps.Detector == nil:
		missing = "detector"
	case deps.Evaluator == nil:
		missing = "evaluator"
	case deps.Queue == nil:
		missing = "queue"
	case deps.Composer == nil:
		missing = "composer"
	case deps.Orderer == nil:
		missing = "orderer"
	case deps.Recorder == nil:
		missing = "recorder"
	case deps.Sink == nil:
		missing = "sink"
	}
	if missing != "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("pipeline: missing "+missing))
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 500 * time.Millisecond
	}
	if cfg.ExpirySweep <= 0 {
		cfg.ExpirySweep = time.Second
	}

	e := &Engine{
		config: cfg,
		deps:   deps,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
	if err := e.initMetrics(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &engineMetrics{}

	e.metrics.events, err = meter.Int64Counter(
		"pipeline_events_total",
		metric.WithDescription("Snapshot events dispatched to detector workers"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	e.metrics.overflow, err = meter.Int64Counter(
		"pipeline_queue_overflow_total",
		metric.WithDescription("Opportunities evicted from a full submission queue"),
	)
	if err != nil {
		return err
	}

	e.metrics.handoffs, err = meter.Int64Counter(
		"pipeline_handoffs_total",
		metric.WithDescription("Bundles handed to the sink by result"),
	)
	if err != nil {
		return err
	}

	e.metrics.latency, err = meter.Float64Histogram(
		"pipeline_bundle_latency_ms",
		metric.WithDescription("Time from bundle creation to handoff"),
		metric.WithUnit("ms"),
	)
	return err
}

// Run processes events until the source is exhausted or ctx is done. When
// the source ends on its own the queue and pool are flushed before Run
// returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("pipeline already running"))
	}
	defer e.running.Store(false)

	if err := e.deps.Sink.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := e.deps.Sink.Stop(); err != nil {
			e.logger.Error(ctx, "failed to stop sink", "error", err)
		}
	}()

	e.logger.Info(ctx, "pipeline started",
		"workers", e.config.Workers,
		"orderers", e.deps.Orderer.Concurrency(),
		"event_time", e.config.EventTime)

	events := e.deps.Source.Run(ctx, e.config.EventBuffer)

	shards := make([]chan marketdomain.Event, e.config.Workers)
	var detectors sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan marketdomain.Event, shardBuffer)
		detectors.Add(1)
		go func(in <-chan marketdomain.Event) {
			defer detectors.Done()
			e.detectLoop(ctx, in)
		}(shards[i])
	}

	bundles := make(chan *bundledomain.Bundle, e.deps.Orderer.Concurrency())
	var orderers sync.WaitGroup
	for i := 0; i < e.deps.Orderer.Concurrency(); i++ {
		orderers.Add(1)
		go func() {
			defer orderers.Done()
			for b := range bundles {
				e.handoff(ctx, b)
			}
		}()
	}

	detectDone := make(chan struct{})
	composeDone := make(chan struct{})
	go func() {
		defer close(composeDone)
		defer close(bundles)
		e.composeLoop(ctx, detectDone, bundles)
	}()

	e.dispatch(ctx, events, shards)
	for _, ch := range shards {
		close(ch)
	}
	detectors.Wait()
	close(detectDone)
	<-composeDone
	orderers.Wait()

	s := e.Stats()
	e.logger.Info(ctx, "pipeline stopped",
		"events", s.Events,
		"detected", s.Detected,
		"overflow", s.Overflow,
		"bundles", s.Bundles,
		"handoffs", s.Handoffs,
		"failures", s.Failures)
	return nil
}

func (e *Engine) dispatch(ctx context.Context, events <-chan marketdomain.Event, shards []chan marketdomain.Event) {
	for {
		var ev marketdomain.Event
		var ok bool
		select {
		case <-ctx.Done():
			return
		case ev, ok = <-events:
			if !ok {
				return
			}
		}

		if t := ev.ObservedAt().UnixNano(); t > e.watermark.Load() {
			e.watermark.Store(t)
		}
		typ := marketdomain.EventPosition
		if ev.Quote != nil {
			typ = marketdomain.EventQuote
			e.deps.Conditions.Observe(*ev.Quote)
			e.deps.Conditions.PublishIfDue(e.now())
		}
		e.events.Add(1)
		e.metrics.events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(typ))))

		select {
		case shards[shard(ev, len(shards))] <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) detectLoop(ctx context.Context, in <-chan marketdomain.Event) {
	b := newBook(e.config.QuoteMaxAge)
	for ev := range in {
		if ctx.Err() != nil {
			continue
		}
		batch := b.batch(ev)
		if batch.Len() == 0 {
			continue
		}

		res := e.deps.Detector.Detect(ctx, batch)
		e.detected.Add(int64(len(res.Opportunities)))
		for _, opp := range res.Opportunities {
			e.deps.Evaluator.Evaluate(ctx, opp)
			e.submit(ctx, opp)
		}
	}
}

func (e *Engine) submit(ctx context.Context, opp *oppdomain.Opportunity) {
	dropped := e.deps.Queue.Submit(opp)
	if dropped == nil {
		return
	}

	e.overflow.Add(1)
	e.metrics.overflow.Add(ctx, 1)
	if err := dropped.Reject(oppdomain.Reason{Code: apperror.CodeQueueOverflow}); err != nil {
		e.logger.Warn(ctx, "failed to reject evicted opportunity", "id", dropped.ID, "error", err)
		return
	}
	e.deps.Recorder.Opportunity(ctx, dropped)
}

func (e *Engine) composeLoop(ctx context.Context, detectDone <-chan struct{}, out chan<- *bundledomain.Bundle) {
	drain := time.NewTicker(e.config.DrainInterval)
	defer drain.Stop()
	sweep := time.NewTicker(e.config.ExpirySweep)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-detectDone:
			e.flush(ctx, out)
			return
		case <-drain.C:
			e.cycle(ctx, out)
		case <-e.deps.Queue.Ready():
			e.cycle(ctx, out)
		case <-sweep.C:
			for _, opp := range e.deps.Composer.Sweep(e.now()) {
				e.deps.Recorder.Opportunity(ctx, opp)
			}
		}
	}
}

// flush composes until nothing new validates.
func (e *Engine) flush(ctx context.Context, out chan<- *bundledomain.Bundle) {
	for i := 0; i < maxFlushCycles && ctx.Err() == nil; i++ {
		if e.cycle(ctx, out) == 0 && e.deps.Queue.Len() == 0 {
			return
		}
	}
}

// cycle runs one composition pass and returns the number of validated
// bundles sent to the orderers.
func (e *Engine) cycle(ctx context.Context, out chan<- *bundledomain.Bundle) int {
	for _, opp := range e.deps.Composer.Ingest(e.deps.Queue.Drain(0)...) {
		e.deps.Recorder.Opportunity(ctx, opp)
	}

	res := e.deps.Composer.Compose(ctx, e.now())
	for _, opp := range res.Terminal {
		e.deps.Recorder.Opportunity(ctx, opp)
	}
	for _, b := range res.Rejected {
		e.deps.Recorder.Bundle(ctx, b)
	}

	sent := 0
	for _, b := range res.Validated {
		select {
		case out <- b:
			sent++
			e.bundles.Add(1)
		case <-ctx.Done():
			return sent
		}
	}
	return sent
}

func (e *Engine) handoff(ctx context.Context, b *bundledomain.Bundle) {
	ctx, span := e.tracer.Start(ctx, "pipeline.handoff",
		trace.WithAttributes(
			attribute.String("bundle.id", b.ID),
			attribute.Int("bundle.size", b.Len()),
		))
	defer span.End()

	if err := e.deps.Orderer.Freeze(ctx, b); err != nil {
		e.fail(ctx, span, b, "order", err)
		e.deps.Recorder.Bundle(ctx, b)
		return
	}
	e.deps.Recorder.Bundle(ctx, b)

	if err := e.deps.Sink.Handoff(ctx, b); err != nil {
		e.fail(ctx, span, b, "sink", err)
		return
	}

	e.handoffs.Add(1)
	e.metrics.handoffs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	e.metrics.latency.Record(ctx, float64(e.now().Sub(b.CreatedAt).Microseconds())/1000)
	span.SetStatus(codes.Ok, "")
}

func (e *Engine) fail(ctx context.Context, span trace.Span, b *bundledomain.Bundle, stage string, err error) {
	e.failures.Add(1)
	e.metrics.handoffs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", stage+"_error")))
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	e.logger.Error(ctx, "bundle handoff failed",
		"bundle_id", b.ID,
		"stage", stage,
		"code", string(apperror.GetCode(err)),
		"error", err)
}

// now is the pipeline clock: the newest snapshot time in event-time mode,
// the wall clock otherwise.
func (e *Engine) now() time.Time {
	if e.config.EventTime {
		if wm := e.watermark.Load(); wm > 0 {
			return time.Unix(0, wm).UTC()
		}
	}
	return time.Now()
}

// Stats returns running totals.
func (e *Engine) Stats() Stats {
	return Stats{
		Events:   e.events.Load(),
		Detected: e.detected.Load(),
		Overflow: e.overflow.Load(),
		Bundles:  e.bundles.Load(),
		Handoffs: e.handoffs.Load(),
		Failures: e.failures.Load(),
	}
}

// Healthy reports whether Run is active.
func (e *Engine) Healthy(context.Context) (bool, string) {
	s := e.Stats()
	msg := fmt.Sprintf("%d events, %d bundles handed off, %d failures", s.Events, s.Handoffs, s.Failures)
	if !e.running.Load() {
		return false, "not running: " + msg
	}
	return true, msg
}
