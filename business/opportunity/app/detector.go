// Package app contains detection, risk scoring and cost estimation.
package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	marketdomain "github.com/fd1az/mev-bundler/business/market/domain"
	"github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/asset"
	"github.com/fd1az/mev-bundler/internal/logger"
)

const (
	tracerName = "github.com/fd1az/mev-bundler/business/opportunity"
	meterName  = "github.com/fd1az/mev-bundler/business/opportunity"
)

var (
	one      = decimal.NewFromInt(1)
	thousand = decimal.NewFromInt(1000)
	two      = decimal.NewFromInt(2)
)

// DetectorConfig holds detection thresholds.
type DetectorConfig struct {
	MinPriceDeltaPct   decimal.Decimal // fraction, 0.001 == 0.1%
	MinVolumeUSD       decimal.Decimal
	Tranches           []decimal.Decimal // fractions of the tradable volume
	SlippageBase       decimal.Decimal
	SlippageMultiplier decimal.Decimal // per 1000 USD of size
	SafetyBuffer       decimal.Decimal
	ArbitrageTTL       time.Duration
	LiquidationTTL     time.Duration
	LiquidationBonus   map[asset.Class]decimal.Decimal
}

// DefaultDetectorConfig returns the documented defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinPriceDeltaPct:   decimal.RequireFromString("0.001"),
		MinVolumeUSD:       decimal.NewFromInt(10),
		Tranches:           []decimal.Decimal{decimal.RequireFromString("0.10"), decimal.RequireFromString("0.25"), decimal.RequireFromString("0.50"), one},
		SlippageBase:       decimal.RequireFromString("0.0005"),
		SlippageMultiplier: decimal.RequireFromString("0.0002"),
		SafetyBuffer:       decimal.RequireFromString("0.1"),
		ArbitrageTTL:       3 * time.Second,
		LiquidationTTL:     30 * time.Second,
		LiquidationBonus: map[asset.Class]decimal.Decimal{
			asset.ClassStable:   decimal.RequireFromString("0.05"),
			asset.ClassMajor:    decimal.RequireFromString("0.075"),
			asset.ClassLongTail: decimal.RequireFromString("0.10"),
		},
	}
}

// DetectionResult is the output of one detector run.
type DetectionResult struct {
	Opportunities []*domain.Opportunity
	Skipped       int
}

type detectorMetrics struct {
	detected  metric.Int64Counter
	malformed metric.Int64Counter
	runTime   metric.Float64Histogram
}

// Detector turns snapshot batches into candidate opportunities. Detect is a
// pure function of its batch apart from generated ids.
type Detector struct {
	config   DetectorConfig
	tranches []decimal.Decimal
	assets   *asset.Registry
	logger   logger.LoggerInterface
	newID    func() string

	tracer  trace.Tracer
	metrics *detectorMetrics
}

// NewDetector creates a detector.
func NewDetector(cfg DetectorConfig, assets *asset.Registry, log logger.LoggerInterface) (*Detector, error) {
	tranches := append([]decimal.Decimal(nil), cfg.Tranches...)
	sort.Slice(tranches, func(i, j int) bool { return tranches[i].LessThan(tranches[j]) })

	d := &Detector{
		config:   cfg,
		tranches: tranches,
		assets:   assets,
		logger:   log,
		newID:    uuid.NewString,
		tracer:   otel.Tracer(tracerName),
	}
	if err := d.initMetrics(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Detector) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	d.metrics = &detectorMetrics{}

	d.metrics.detected, err = meter.Int64Counter(
		"detector_opportunities_total",
		metric.WithDescription("Opportunities emitted by the detector"),
	)
	if err != nil {
		return err
	}

	d.metrics.malformed, err = meter.Int64Counter(
		"detector_malformed_total",
		metric.WithDescription("Snapshots skipped as malformed"),
	)
	if err != nil {
		return err
	}

	d.metrics.runTime, err = meter.Float64Histogram(
		"detector_run_duration_ms",
		metric.WithDescription("Detector run latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// Detect runs arbitrage and liquidation detection over batch.
func (d *Detector) Detect(ctx context.Context, batch marketdomain.Batch) DetectionResult {
	ctx, span := d.tracer.Start(ctx, "detector.detect",
		trace.WithAttributes(attribute.Int("snapshots", batch.Len())))
	defer span.End()
	start := time.Now()

	var res DetectionResult

	quotes := make([]marketdomain.VenueQuote, 0, len(batch.Quotes))
	for _, q := range batch.Quotes {
		if err := q.Validate(); err != nil {
			res.Skipped++
			d.logger.Debug(ctx, "skipping quote", "error", err)
			continue
		}
		quotes = append(quotes, q)
	}
	res.Opportunities = append(res.Opportunities, d.detectArbitrage(quotes)...)

	for _, p := range batch.Positions {
		if err := p.Validate(); err != nil {
			res.Skipped++
			d.logger.Debug(ctx, "skipping position", "error", err)
			continue
		}
		if opp := d.detectLiquidation(p); opp != nil {
			res.Opportunities = append(res.Opportunities, opp)
		}
	}

	sort.SliceStable(res.Opportunities, func(i, j int) bool {
		return res.Opportunities[i].SortKey() < res.Opportunities[j].SortKey()
	})

	if res.Skipped > 0 {
		d.metrics.malformed.Add(ctx, int64(res.Skipped))
	}
	for _, o := range res.Opportunities {
		d.metrics.detected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(o.Kind))))
	}
	d.metrics.runTime.Record(ctx, float64(time.Since(start).Microseconds())/1000)

	span.SetAttributes(
		attribute.Int("opportunities", len(res.Opportunities)),
		attribute.Int("skipped", res.Skipped),
	)
	span.SetStatus(codes.Ok, "")
	return res
}

// detectArbitrage compares every venue pair quoting the same instrument pair.
// A venue quoting a pair more than once contributes its latest quote.
func (d *Detector) detectArbitrage(quotes []marketdomain.VenueQuote) []*domain.Opportunity {
	books := map[marketdomain.Pair]map[string]marketdomain.VenueQuote{}
	for _, q := range quotes {
		venues, ok := books[q.Pair]
		if !ok {
			venues = map[string]marketdomain.VenueQuote{}
			books[q.Pair] = venues
		}
		key := strings.ToLower(q.Venue)
		if prev, seen := venues[key]; !seen || !q.ObservedAt.Before(prev.ObservedAt) {
			venues[key] = q
		}
	}

	pairs := make([]marketdomain.Pair, 0, len(books))
	for p := range books {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i] < pairs[j] })

	var out []*domain.Opportunity
	for _, pair := range pairs {
		venues := books[pair]
		names := make([]string, 0, len(venues))
		for v := range venues {
			names = append(names, v)
		}
		sort.Strings(names)

		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				if opp := d.evaluatePair(venues[names[i]], venues[names[j]]); opp != nil {
					out = append(out, opp)
				}
			}
		}
	}
	return out
}

// tranche is one simulated trade size.
type tranche struct {
	fraction decimal.Decimal
	size     decimal.Decimal
	net      decimal.Decimal
}

func (d *Detector) evaluatePair(a, b marketdomain.VenueQuote) *domain.Opportunity {
	buy, sell := a, b
	if b.Price.LessThan(a.Price) {
		buy, sell = b, a
	}
	if buy.Price.Equal(sell.Price) {
		return nil
	}

	spread := sell.Price.Sub(buy.Price).Div(buy.Price)
	if spread.LessThan(d.config.MinPriceDeltaPct) {
		return nil
	}

	volume := decimal.Min(buy.AvailableVolumeUSD, sell.AvailableVolumeUSD)
	if volume.LessThan(d.config.MinVolumeUSD) || !volume.IsPositive() {
		return nil
	}

	fee := decimal.Max(buy.FeeRatePct, sell.FeeRatePct)
	best, ok := d.bestTranche(spread, fee, volume)
	if !ok {
		return nil
	}

	detectedAt := buy.ObservedAt
	if sell.ObservedAt.After(detectedAt) {
		detectedAt = sell.ObservedAt
	}

	opp := domain.New(d.newID(), domain.KindArbitrage,
		[]string{buy.Venue, sell.Venue},
		[]string{buy.Pair.String()},
		best.net, detectedAt, d.config.ArbitrageTTL)
	opp.Signals = domain.Signals{
		TradeSizeUSD:       best.size,
		AvailableVolumeUSD: volume,
		SpreadPct:          spread,
		FeeRatePct:         fee,
		Tranche:            best.fraction,
	}
	return opp
}

// bestTranche simulates each tranche and returns the highest net return;
// ties keep the smaller tranche. ok is false when no tranche nets positive.
func (d *Detector) bestTranche(spread, fee, volume decimal.Decimal) (tranche, bool) {
	var best tranche
	found := false

	for _, frac := range d.tranches {
		size := volume.Mul(frac)
		net := size.Mul(spread.Sub(fee).Sub(two.Mul(d.Slippage(size))))
		if !net.IsPositive() {
			continue
		}
		if !found || net.GreaterThan(best.net) {
			best = tranche{fraction: frac, size: size, net: net}
			found = true
		}
	}
	return best, found
}

// Slippage returns the per-leg slippage fraction for a trade of sizeUSD.
func (d *Detector) Slippage(sizeUSD decimal.Decimal) decimal.Decimal {
	return d.config.SlippageBase.Add(d.config.SlippageMultiplier.Mul(sizeUSD.Div(thousand)))
}

func (d *Detector) detectLiquidation(p marketdomain.PositionSnapshot) *domain.Opportunity {
	hf, ok := p.HealthFactor()
	if !ok || !hf.LessThan(one.Add(d.config.SafetyBuffer)) {
		return nil
	}

	gross := p.CollateralValue.Mul(d.bonus(p.Asset))

	opp := domain.New(d.newID(), domain.KindLiquidation,
		[]string{p.VenueOrDefault()},
		[]string{strings.ToUpper(p.Asset)},
		gross, p.ObservedAt, d.config.LiquidationTTL)
	opp.Signals = domain.Signals{
		TradeSizeUSD:    p.DebtValue,
		HealthFactor:    hf,
		PositionID:      p.PositionID,
		CollateralAsset: strings.ToUpper(p.Asset),
		CollateralValue: p.CollateralValue,
	}
	return opp
}

func (d *Detector) bonus(symbol string) decimal.Decimal {
	class := asset.ClassLongTail
	if d.assets != nil {
		class = d.assets.ClassOf(symbol)
	}
	if b, ok := d.config.LiquidationBonus[class]; ok {
		return b
	}
	return d.config.LiquidationBonus[asset.ClassLongTail]
}
