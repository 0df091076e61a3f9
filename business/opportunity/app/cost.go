package app

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/mev-bundler/business/opportunity/domain"
)

// Venue types used by the compute unit table.
const (
	VenueTypeAMM     = "amm"
	VenueTypeCLOB    = "clob"
	VenueTypeLending = "lending"
)

// CostConfig holds the execution cost tables.
type CostConfig struct {
	Network             string
	VenueTypes          map[string]string // venue -> type, keys lowercase
	VenueUnits          map[string]uint64 // type -> compute units
	DefaultUnits        uint64
	LiquidationUnits    uint64
	ComputeUnitPriceUSD decimal.Decimal
	BaseFeeUSD          map[string]decimal.Decimal // network -> fee
	BasePriorityFeeUSD  decimal.Decimal
	BundleDiscount      decimal.Decimal // applied to summed priority fees only
}

// CongestionReader supplies the current congestion multiplier.
type CongestionReader interface {
	Multiplier() float64
}

// CostEstimator prices opportunities and bundles.
type CostEstimator struct {
	config     CostConfig
	congestion CongestionReader
}

// NewCostEstimator creates an estimator. A nil reader means neutral congestion.
func NewCostEstimator(cfg CostConfig, congestion CongestionReader) *CostEstimator {
	types := make(map[string]string, len(cfg.VenueTypes))
	for v, t := range cfg.VenueTypes {
		types[strings.ToLower(v)] = strings.ToLower(t)
	}
	cfg.VenueTypes = types
	return &CostEstimator{config: cfg, congestion: congestion}
}

// Estimate computes the cost of executing opp alone.
func (e *CostEstimator) Estimate(opp *domain.Opportunity) domain.CostEstimate {
	units := e.ComputeUnits(opp)

	congestion := 1.0
	if e.congestion != nil {
		congestion = e.congestion.Multiplier()
	}

	priority := e.config.BasePriorityFeeUSD.
		Mul(decimal.NewFromFloat(congestion)).
		Mul(decimal.NewFromFloat(CompetitionMultiplier(opp.Factors())))

	return domain.CostEstimate{
		ComputeUnits: units,
		ComputeCost:  e.config.ComputeUnitPriceUSD.Mul(decimal.NewFromInt(int64(units))),
		BaseFee:      e.config.BaseFeeUSD[e.config.Network],
		PriorityFee:  priority,
	}
}

// ComputeUnits returns the unit budget of opp.
func (e *CostEstimator) ComputeUnits(opp *domain.Opportunity) uint64 {
	switch opp.Kind {
	case domain.KindLiquidation:
		return e.config.LiquidationUnits
	case domain.KindSandwichCandidate:
		return 2 * e.unitsFor(opp.PrimaryVenue())
	}
	var units uint64
	for _, v := range opp.Venues {
		units += e.unitsFor(v)
	}
	return units
}

func (e *CostEstimator) unitsFor(venue string) uint64 {
	t, ok := e.config.VenueTypes[strings.ToLower(venue)]
	if !ok {
		t = VenueTypeAMM
	}
	if u, ok := e.config.VenueUnits[t]; ok {
		return u
	}
	return e.config.DefaultUnits
}

// BundleCost sums item costs; with more than one item the summed priority
// fee is discounted. Compute units and base fees are never discounted.
func (e *CostEstimator) BundleCost(items []*domain.Opportunity) domain.CostEstimate {
	var total domain.CostEstimate
	for _, o := range items {
		total = total.Add(o.Cost())
	}
	if len(items) > 1 {
		total.PriorityFee = total.PriorityFee.Mul(decimal.NewFromInt(1).Sub(e.config.BundleDiscount))
	}
	return total
}

// CompetitionMultiplier maps the Competition factor score into [1,2].
func CompetitionMultiplier(factors []domain.RiskFactor) float64 {
	f, ok := domain.FindFactor(factors, domain.CategoryCompetition)
	if !ok {
		return 1
	}
	return 1 + (f.RawScore-1)/9
}
