package domain

import "math"

// Category is a risk factor dimension.
type Category string

const (
	CategoryVolatility     Category = "volatility"
	CategoryLiquidity      Category = "liquidity"
	CategoryMarketTrend    Category = "market_trend"
	CategoryPositionHealth Category = "position_health"
	CategoryPositionSize   Category = "position_size"
	CategoryCompetition    Category = "competition"
)

// Categories lists every category in canonical order.
var Categories = []Category{
	CategoryVolatility,
	CategoryLiquidity,
	CategoryMarketTrend,
	CategoryPositionHealth,
	CategoryPositionSize,
	CategoryCompetition,
}

// DefaultWeights are the factor weights before normalization.
func DefaultWeights() map[Category]float64 {
	return map[Category]float64{
		CategoryVolatility:     0.25,
		CategoryLiquidity:      0.20,
		CategoryMarketTrend:    0.15,
		CategoryPositionHealth: 0.20,
		CategoryPositionSize:   0.10,
		CategoryCompetition:    0.10,
	}
}

const (
	MinRisk = 1.0
	MaxRisk = 10.0
)

// RiskFactor is one scored risk dimension of an opportunity.
type RiskFactor struct {
	Category Category
	RawScore float64
	Weight   float64
}

// NewRiskFactor clamps score to [1,10] and weight to [0,1].
func NewRiskFactor(c Category, score, weight float64) RiskFactor {
	return RiskFactor{
		Category: c,
		RawScore: ClampRisk(score),
		Weight:   Clamp(weight, 0, 1),
	}
}

// ClampRisk bounds v to [1,10]; NaN maps to the midpoint.
func ClampRisk(v float64) float64 {
	if math.IsNaN(v) {
		return (MinRisk + MaxRisk) / 2
	}
	return Clamp(v, MinRisk, MaxRisk)
}

// Clamp bounds v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FindFactor returns the factor of category c.
func FindFactor(factors []RiskFactor, c Category) (RiskFactor, bool) {
	for _, f := range factors {
		if f.Category == c {
			return f, true
		}
	}
	return RiskFactor{}, false
}
