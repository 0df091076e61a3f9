package app

import (
	"math"

	"github.com/shopspring/decimal"

	networkdomain "github.com/fd1az/mev-bundler/business/network/domain"
	"github.com/fd1az/mev-bundler/business/opportunity/domain"
)

// Saturation points: at or beyond these a factor scores 10.
const (
	VolatilityCeiling = 0.02 // EWMA absolute log return
	DriftCeiling      = 0.01 // EWMA signed log return, absolute
)

var healthCeiling = decimal.RequireFromString("1.1")

// ConditionsReader returns the latest published market conditions.
type ConditionsReader interface {
	Snapshot() *networkdomain.Conditions
}

// FactorAssessor derives risk factors from an opportunity's signals and the
// current market conditions. Factors without an input are left out and the
// scorer renormalizes the remaining weights.
type FactorAssessor struct {
	weights        map[domain.Category]float64
	maxPositionUSD decimal.Decimal
	conditions     ConditionsReader
}

// NewFactorAssessor creates an assessor. Missing weights fall back to defaults.
func NewFactorAssessor(weights map[domain.Category]float64, maxPositionUSD decimal.Decimal, conditions ConditionsReader) *FactorAssessor {
	w := domain.DefaultWeights()
	for c, v := range weights {
		w[c] = v
	}
	return &FactorAssessor{
		weights:        w,
		maxPositionUSD: maxPositionUSD,
		conditions:     conditions,
	}
}

// Assess computes and records the factor set on opp.
func (a *FactorAssessor) Assess(opp *domain.Opportunity) []domain.RiskFactor {
	var snap *networkdomain.Conditions
	if a.conditions != nil {
		snap = a.conditions.Snapshot()
	}

	var factors []domain.RiskFactor
	add := func(c domain.Category, score float64) {
		factors = append(factors, domain.NewRiskFactor(c, score, a.weights[c]))
	}

	if ic, ok := a.instrument(snap, opp); ok && ic.Samples > 0 {
		add(domain.CategoryVolatility, Scale(ic.Volatility, VolatilityCeiling))
		add(domain.CategoryMarketTrend, Scale(math.Abs(ic.Drift), DriftCeiling))
	}

	sig := opp.Signals
	if opp.Kind != domain.KindLiquidation && sig.AvailableVolumeUSD.IsPositive() {
		ratio, _ := sig.TradeSizeUSD.Div(sig.AvailableVolumeUSD).Float64()
		add(domain.CategoryLiquidity, Scale(ratio, 1))
	}

	if opp.Kind == domain.KindLiquidation {
		add(domain.CategoryPositionHealth, HealthScore(sig.HealthFactor))
	}

	if a.maxPositionUSD.IsPositive() {
		ratio, _ := sig.TradeSizeUSD.Div(a.maxPositionUSD).Float64()
		add(domain.CategoryPositionSize, Scale(ratio, 1))
	}

	add(domain.CategoryCompetition, a.competition(snap, opp.Venues))

	opp.SetFactors(factors)
	return factors
}

func (a *FactorAssessor) instrument(snap *networkdomain.Conditions, opp *domain.Opportunity) (networkdomain.InstrumentConditions, bool) {
	if len(opp.Instruments) == 0 {
		return networkdomain.InstrumentConditions{}, false
	}
	if opp.Kind == domain.KindLiquidation {
		return snap.ForAsset(opp.Instruments[0])
	}
	return snap.Instrument(opp.Instruments[0])
}

// competition is the level of the most contested venue involved.
func (a *FactorAssessor) competition(snap *networkdomain.Conditions, venues []string) float64 {
	if len(venues) == 0 {
		return networkdomain.DefaultCompetition
	}
	level := 0.0
	for _, v := range venues {
		level = math.Max(level, snap.CompetitionLevel(v))
	}
	return level
}

// Scale maps v in [0, ceiling] linearly onto [1,10].
func Scale(v, ceiling float64) float64 {
	if ceiling <= 0 || math.IsNaN(v) {
		return domain.MinRisk
	}
	return 1 + 9*domain.Clamp(v/ceiling, 0, 1)
}

// HealthScore maps a health factor to clamp(10 × (1.1 − hf)/0.15, 1, 10).
func HealthScore(hf decimal.Decimal) float64 {
	v, _ := healthCeiling.Sub(hf).Mul(decimal.NewFromInt(10)).Div(decimal.RequireFromString("0.15")).Float64()
	return domain.ClampRisk(v)
}
