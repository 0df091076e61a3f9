package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	bundleapp "github.com/fd1az/mev-bundler/business/bundle/app"
	bundledomain "github.com/fd1az/mev-bundler/business/bundle/domain"
	marketdomain "github.com/fd1az/mev-bundler/business/market/domain"
	oppapp "github.com/fd1az/mev-bundler/business/opportunity/app"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	orderingapp "github.com/fd1az/mev-bundler/business/ordering/app"
	"github.com/fd1az/mev-bundler/internal/apperror"
	"github.com/fd1az/mev-bundler/internal/logger"
)

var t0 = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

type sliceSource []marketdomain.Event

func (s sliceSource) Run(ctx context.Context, buffer int) <-chan marketdomain.Event {
	out := make(chan marketdomain.Event, buffer)
	go func() {
		defer close(out)
		for _, ev := range s {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

type nopConditions struct{ observed int }

func (c *nopConditions) Observe(marketdomain.VenueQuote) { c.observed++ }
func (c *nopConditions) PublishIfDue(time.Time) bool     { return false }

// pairDetector emits one arbitrage per multi-venue batch.
type pairDetector struct {
	mu sync.Mutex
	n  int
}

func (d *pairDetector) Detect(ctx context.Context, batch marketdomain.Batch) oppapp.DetectionResult {
	if len(batch.Quotes) < 2 {
		return oppapp.DetectionResult{Skipped: len(batch.Quotes)}
	}
	d.mu.Lock()
	d.n++
	id := fmt.Sprintf("opp-%d", d.n)
	d.mu.Unlock()

	q := batch.Quotes[0]
	o := oppdomain.New(id, oppdomain.KindArbitrage, []string{batch.Quotes[0].Venue, batch.Quotes[1].Venue},
		[]string{q.Pair.String()}, decimal.RequireFromString("1"), q.ObservedAt, time.Minute)
	return oppapp.DetectionResult{Opportunities: []*oppdomain.Opportunity{o}}
}

type fixedRisk struct{}

func (fixedRisk) Evaluate(ctx context.Context, o *oppdomain.Opportunity) { o.SetRisk(2, 1) }

type zeroCoster struct{}

func (zeroCoster) BundleCost([]*oppdomain.Opportunity) oppdomain.CostEstimate {
	return oppdomain.CostEstimate{}
}

type memRecorder struct {
	mu      sync.Mutex
	opps    []*oppdomain.Opportunity
	bundles []*bundledomain.Bundle
}

func (r *memRecorder) Opportunity(ctx context.Context, o *oppdomain.Opportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opps = append(r.opps, o)
}

func (r *memRecorder) Bundle(ctx context.Context, b *bundledomain.Bundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles = append(r.bundles, b)
}

type memSink struct {
	mu      sync.Mutex
	started bool
	stopped bool
	bundles []*bundledomain.Bundle
}

func (s *memSink) Start(context.Context) error {
	s.started = true
	return nil
}

func (s *memSink) Stop() error {
	s.stopped = true
	return nil
}

func (s *memSink) Handoff(ctx context.Context, b *bundledomain.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles = append(s.bundles, b)
	return nil
}

func quote(venue, pair string, price string, at time.Time) marketdomain.Event {
	return marketdomain.Event{Quote: &marketdomain.VenueQuote{
		Venue:              venue,
		Pair:               marketdomain.Pair(pair),
		Price:              decimal.RequireFromString(price),
		AvailableVolumeUSD: decimal.NewFromInt(10000),
		FeeRatePct:         decimal.RequireFromString("0.003"),
		ObservedAt:         at,
	}}
}

type fixture struct {
	engine   *Engine
	queue    *bundleapp.Queue
	recorder *memRecorder
	sink     *memSink
}

func newFixture(t *testing.T, src Source, queueSize int) *fixture {
	t.Helper()
	log := logger.NewDiscard()

	composer, err := bundleapp.NewComposer(bundleapp.ComposerConfig{MaxBundlesPerCycle: 2}, zeroCoster{}, log)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	opt, err := orderingapp.NewOptimizer(orderingapp.DefaultConfig(), log)
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}

	f := &fixture{
		queue:    bundleapp.NewQueue(queueSize, 0),
		recorder: &memRecorder{},
		sink:     &memSink{},
	}
	f.engine, err = NewEngine(EngineConfig{Workers: 3, EventTime: true, QuoteMaxAge: 5 * time.Second}, Deps{
		Source:     src,
		Conditions: &nopConditions{},
		Detector:   &pairDetector{},
		Evaluator:  fixedRisk{},
		Queue:      f.queue,
		Composer:   composer,
		Orderer:    opt,
		Recorder:   f.recorder,
		Sink:       f.sink,
	}, log)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return f
}

func TestEngine_ReplayToHandoff(t *testing.T) {
	src := sliceSource{
		quote("orca", "SOL/USDC", "100", t0),
		quote("orca", "JUP/USDC", "1", t0),
		quote("raydium", "SOL/USDC", "101", t0.Add(time.Millisecond)),
		quote("orca", "BONK/USDC", "0.00002", t0.Add(2*time.Millisecond)),
		quote("raydium", "JUP/USDC", "1.01", t0.Add(3*time.Millisecond)),
		quote("phoenix", "BONK/USDC", "0.000021", t0.Add(4*time.Millisecond)),
	}
	f := newFixture(t, src, 16)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := f.engine.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !f.sink.started || !f.sink.stopped {
		t.Errorf("sink started=%v stopped=%v", f.sink.started, f.sink.stopped)
	}

	stats := f.engine.Stats()
	if stats.Events != 6 || stats.Detected != 3 {
		t.Errorf("Stats() = %+v, want 6 events and 3 detected", stats)
	}

	items := 0
	for _, b := range f.sink.bundles {
		if !b.Frozen() {
			t.Errorf("bundle %s handed off unfrozen", b.ID)
		}
		items += b.Len()
	}
	if items != 3 {
		t.Errorf("handed off %d items in %d bundles, want 3", items, len(f.sink.bundles))
	}
	if stats.Handoffs != int64(len(f.sink.bundles)) || stats.Failures != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
	if len(f.recorder.bundles) != len(f.sink.bundles) {
		t.Errorf("journaled %d bundles, want %d", len(f.recorder.bundles), len(f.sink.bundles))
	}

	if ok, _ := f.engine.Healthy(ctx); ok {
		t.Error("Healthy() = true after Run returned")
	}
}

func TestEngine_SubmitOverflowRejectsOldest(t *testing.T) {
	f := newFixture(t, sliceSource{}, 1)
	ctx := context.Background()

	first := oppdomain.New("first", oppdomain.KindArbitrage, nil, []string{"SOL/USDC"}, decimal.NewFromInt(1), t0, time.Second)
	second := oppdomain.New("second", oppdomain.KindArbitrage, nil, []string{"SOL/USDC"}, decimal.NewFromInt(1), t0, time.Second)

	f.engine.submit(ctx, first)
	f.engine.submit(ctx, second)

	if first.Status() != oppdomain.StatusRejected {
		t.Fatalf("first.Status() = %s, want rejected", first.Status())
	}
	if r, ok := first.Reason(); !ok || r.Code != apperror.CodeQueueOverflow {
		t.Errorf("first.Reason() = %v, want QUEUE_OVERFLOW", r)
	}
	if len(f.recorder.opps) != 1 || f.recorder.opps[0] != first {
		t.Errorf("recorded %d opportunities, want the evicted one", len(f.recorder.opps))
	}
	if f.engine.Stats().Overflow != 1 {
		t.Errorf("Overflow = %d, want 1", f.engine.Stats().Overflow)
	}
	if got := f.queue.Drain(0); len(got) != 1 || got[0] != second {
		t.Errorf("queue holds %v, want second", got)
	}
}

func TestEngine_CancelStops(t *testing.T) {
	events := make(sliceSource, 0, 1000)
	for i := 0; i < 1000; i++ {
		events = append(events, quote("orca", fmt.Sprintf("T%d/USDC", i), "1", t0.Add(time.Duration(i)*time.Millisecond)))
	}
	f := newFixture(t, events, 16)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewEngine_RequiresDeps(t *testing.T) {
	_, err := NewEngine(EngineConfig{}, Deps{}, logger.NewDiscard())
	if !apperror.HasCode(err, apperror.CodeConfigurationError) {
		t.Fatalf("err = %v, want CONFIGURATION_ERROR", err)
	}
}

func TestEngine_Clock(t *testing.T) {
	f := newFixture(t, sliceSource{}, 1)
	f.engine.watermark.Store(t0.UnixNano())
	if got := f.engine.now(); !got.Equal(t0) {
		t.Errorf("now() = %v, want watermark %v", got, t0)
	}

	f.engine.config.EventTime = false
	if got := f.engine.now(); got.Sub(time.Now()).Abs() > time.Second {
		t.Errorf("now() = %v, want wall clock", got)
	}
}
