package app

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	attrdomain "github.com/fd1az/mev-bundler/business/attribution/domain"
	"github.com/fd1az/mev-bundler/business/opportunity/domain"
)

// Adjustment bounds.
const (
	MaxHistoricalAdjustment = 1.0
	MaxSeasonalAdjustment   = 0.5
)

// HistoricalAdjustment maps (kind, venue, history) to a value in [-1,1].
// Implementations must be side-effect free.
type HistoricalAdjustment interface {
	Adjust(kind domain.Kind, venue string, history *attrdomain.HistoryTable) float64
}

// HistoricalAdjustmentFunc adapts a function to HistoricalAdjustment.
type HistoricalAdjustmentFunc func(kind domain.Kind, venue string, history *attrdomain.HistoryTable) float64

func (f HistoricalAdjustmentFunc) Adjust(kind domain.Kind, venue string, history *attrdomain.HistoryTable) float64 {
	return f(kind, venue, history)
}

// TableAdjustment reads the published attribution table.
var TableAdjustment = HistoricalAdjustmentFunc(func(kind domain.Kind, venue string, history *attrdomain.HistoryTable) float64 {
	e, ok := history.Lookup(kind, venue)
	if !ok {
		return 0
	}
	return e.Adjustment
})

// SeasonalAdjustment maps a detection time to a value in [-0.5,0.5].
type SeasonalAdjustment interface {
	Adjust(at time.Time) float64
}

// SeasonalAdjustmentFunc adapts a function to SeasonalAdjustment.
type SeasonalAdjustmentFunc func(at time.Time) float64

func (f SeasonalAdjustmentFunc) Adjust(at time.Time) float64 { return f(at) }

// HistorySource returns the latest attribution table.
type HistorySource interface {
	Table() *attrdomain.HistoryTable
}

type scorerMetrics struct {
	scores metric.Float64Histogram
}

// RiskScorer combines weighted factors with bounded adjustments.
type RiskScorer struct {
	historical HistoricalAdjustment
	seasonal   SeasonalAdjustment
	history    HistorySource

	tracer  trace.Tracer
	metrics *scorerMetrics
}

// NewRiskScorer creates a scorer. A nil history source scores with an empty table.
func NewRiskScorer(historical HistoricalAdjustment, seasonal SeasonalAdjustment, history HistorySource) (*RiskScorer, error) {
	if historical == nil {
		historical = TableAdjustment
	}
	if seasonal == nil {
		seasonal = SeasonalAdjustmentFunc(DefaultSeasonal)
	}

	s := &RiskScorer{
		historical: historical,
		seasonal:   seasonal,
		history:    history,
		tracer:     otel.Tracer(tracerName),
	}

	meter := otel.Meter(meterName)
	scores, err := meter.Float64Histogram(
		"risk_score",
		metric.WithDescription("Final risk scores"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
	)
	if err != nil {
		return nil, err
	}
	s.metrics = &scorerMetrics{scores: scores}
	return s, nil
}

// Score sets the risk score and confidence of opp from its factors.
// Gross profit is never touched.
func (s *RiskScorer) Score(ctx context.Context, opp *domain.Opportunity) float64 {
	var table *attrdomain.HistoryTable
	if s.history != nil {
		table = s.history.Table()
	}

	factors := opp.Factors()
	raw := Composite(factors)
	hist := domain.Clamp(s.historical.Adjust(opp.Kind, opp.PrimaryVenue(), table), -MaxHistoricalAdjustment, MaxHistoricalAdjustment)
	seasonal := domain.Clamp(s.seasonal.Adjust(opp.DetectedAt), -MaxSeasonalAdjustment, MaxSeasonalAdjustment)
	if math.IsNaN(hist) {
		hist = 0
	}
	if math.IsNaN(seasonal) {
		seasonal = 0
	}

	final := domain.ClampRisk(raw + hist + seasonal)
	opp.SetRisk(final, Confidence(factors))

	s.metrics.scores.Record(ctx, final, metric.WithAttributes(attribute.String("kind", string(opp.Kind))))
	return final
}

// Composite returns Σ raw × w/Σw. Without weight the midpoint is returned.
func Composite(factors []domain.RiskFactor) float64 {
	var sum, wsum float64
	for _, f := range factors {
		sum += f.RawScore * f.Weight
		wsum += f.Weight
	}
	if wsum <= 0 {
		return (domain.MinRisk + domain.MaxRisk) / 2
	}
	return sum / wsum
}

// Confidence is 1 − σ(raw scores)/10 using the population deviation.
func Confidence(factors []domain.RiskFactor) float64 {
	if len(factors) == 0 {
		return 0
	}
	var mean float64
	for _, f := range factors {
		mean += f.RawScore
	}
	mean /= float64(len(factors))

	var variance float64
	for _, f := range factors {
		d := f.RawScore - mean
		variance += d * d
	}
	variance /= float64(len(factors))

	return domain.Clamp(1-math.Sqrt(variance)/10, 0, 1)
}

// DefaultSeasonal scores competition by UTC time: the US/EU overlap on
// weekdays is busier, the Asian night and weekends quieter.
func DefaultSeasonal(at time.Time) float64 {
	t := at.UTC()
	h := t.Hour()
	weekend := t.Weekday() == time.Saturday || t.Weekday() == time.Sunday

	adj := 0.0
	if !weekend && h >= 13 && h < 17 {
		adj += 0.3
	}
	if h < 6 {
		adj -= 0.3
	}
	if weekend {
		adj -= 0.2
	}
	return domain.Clamp(adj, -MaxSeasonalAdjustment, MaxSeasonalAdjustment)
}
