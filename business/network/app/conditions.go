package app

import (
	"math"
	"strings"
	"sync/atomic"
	"time"

	marketdomain "github.com/fd1az/mev-bundler/business/market/domain"
	"github.com/fd1az/mev-bundler/business/network/domain"
)

// DefaultEWMAAlpha weights the newest return in volatility and drift.
const DefaultEWMAAlpha = 0.2

// ConditionsConfig configures the market-conditions tracker.
type ConditionsConfig struct {
	Alpha            float64
	PublishInterval  time.Duration
	VenueCompetition map[string]float64
}

// ConditionsTracker folds quotes into per-pair volatility and drift.
// Observe and PublishIfDue must be called from a single goroutine;
// Snapshot is safe from any goroutine.
type ConditionsTracker struct {
	alpha       float64
	interval    time.Duration
	competition map[string]float64

	// per pair, last price per venue keeps cross-venue quotes from reading as returns
	working map[string]map[string]float64
	stats   map[string]domain.InstrumentConditions
	dirty   bool
	last    time.Time

	snapshot atomic.Pointer[domain.Conditions]
}

// NewConditionsTracker creates a tracker publishing an empty snapshot.
func NewConditionsTracker(cfg ConditionsConfig) *ConditionsTracker {
	alpha := cfg.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultEWMAAlpha
	}

	competition := make(map[string]float64, len(cfg.VenueCompetition))
	for venue, lvl := range cfg.VenueCompetition {
		competition[strings.ToLower(venue)] = math.Max(1, math.Min(10, lvl))
	}

	t := &ConditionsTracker{
		alpha:       alpha,
		interval:    cfg.PublishInterval,
		competition: competition,
		working:     map[string]map[string]float64{},
		stats:       map[string]domain.InstrumentConditions{},
	}

	empty := domain.EmptyConditions()
	empty.Competition = competition
	t.snapshot.Store(empty)
	return t
}

// Observe updates the working statistics with q.
func (t *ConditionsTracker) Observe(q marketdomain.VenueQuote) {
	price, _ := q.Price.Float64()
	if price <= 0 {
		return
	}
	pair := q.Pair.String()
	venue := strings.ToLower(q.Venue)

	venues, ok := t.working[pair]
	if !ok {
		venues = map[string]float64{}
		t.working[pair] = venues
	}

	ic := t.stats[pair]
	if prev, seen := venues[venue]; seen && prev > 0 {
		r := math.Log(price / prev)
		if ic.Samples == 0 {
			ic.Volatility = math.Abs(r)
			ic.Drift = r
		} else {
			ic.Volatility = t.alpha*math.Abs(r) + (1-t.alpha)*ic.Volatility
			ic.Drift = t.alpha*r + (1-t.alpha)*ic.Drift
		}
		ic.Samples++
	}
	venues[venue] = price
	ic.LastPrice = price
	ic.UpdatedAt = q.ObservedAt

	t.stats[pair] = ic
	t.dirty = true
}

// PublishIfDue publishes a new snapshot when there are unpublished
// observations and the publish interval has elapsed.
func (t *ConditionsTracker) PublishIfDue(now time.Time) bool {
	if !t.dirty || now.Sub(t.last) < t.interval {
		return false
	}
	t.Publish(now)
	return true
}

// Publish copies the working statistics into a new immutable snapshot.
func (t *ConditionsTracker) Publish(now time.Time) {
	instruments := make(map[string]domain.InstrumentConditions, len(t.stats))
	for pair, ic := range t.stats {
		instruments[pair] = ic
	}

	t.snapshot.Store(&domain.Conditions{
		Instruments: instruments,
		Competition: t.competition,
		PublishedAt: now,
	})
	t.dirty = false
	t.last = now
}

// Snapshot returns the latest published conditions.
func (t *ConditionsTracker) Snapshot() *domain.Conditions {
	return t.snapshot.Load()
}
