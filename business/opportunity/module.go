// Package opportunity implements detection, risk scoring and cost estimation.
package opportunity

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	attributionDI "github.com/fd1az/mev-bundler/business/attribution/di"
	networkDI "github.com/fd1az/mev-bundler/business/network/di"
	"github.com/fd1az/mev-bundler/business/opportunity/app"
	opportunityDI "github.com/fd1az/mev-bundler/business/opportunity/di"
	"github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/asset"
	"github.com/fd1az/mev-bundler/internal/config"
	"github.com/fd1az/mev-bundler/internal/di"
	"github.com/fd1az/mev-bundler/internal/logger"
	"github.com/fd1az/mev-bundler/internal/monolith"
)

// Module implements the opportunity bounded context.
// Depends on network (congestion, conditions) and attribution (history).
type Module struct{}

// RegisterServices registers the detector and evaluator.
func (Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, opportunityDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		assets := sr.Get(monolith.ServiceAssetRegistry).(*asset.Registry)

		d, err := app.NewDetector(DetectorConfig(cfg.Detection), assets, log)
		if err != nil {
			panic(fmt.Sprintf("opportunity: detector: %v", err))
		}
		return d
	})

	di.RegisterToken(c, opportunityDI.Evaluator, func(sr di.ServiceRegistry) *app.Evaluator {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)

		assessor := app.NewFactorAssessor(
			Weights(cfg.Risk.Weights),
			decimal.NewFromFloat(cfg.Risk.MaxPositionUSD),
			networkDI.GetConditions(sr),
		)
		costs := app.NewCostEstimator(CostConfig(cfg.Cost), networkDI.GetTracker(sr))

		scorer, err := app.NewRiskScorer(nil, nil, attributionDI.GetAttributor(sr))
		if err != nil {
			panic(fmt.Sprintf("opportunity: scorer: %v", err))
		}
		return app.NewEvaluator(assessor, costs, scorer)
	})

	return nil
}

// Startup resolves the services so configuration errors surface at boot.
func (Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	opportunityDI.GetDetector(mono.Services())
	opportunityDI.GetEvaluator(mono.Services())

	mono.Logger().Info(ctx, "opportunity module started",
		"min_price_delta_pct", mono.Config().Detection.MinPriceDeltaPct,
		"tranches", mono.Config().Detection.Tranches)
	return nil
}

// DetectorConfig converts the detection section, keeping defaults for
// unset bonus classes.
func DetectorConfig(cfg config.DetectionConfig) app.DetectorConfig {
	out := app.DefaultDetectorConfig()
	out.MinPriceDeltaPct = cfg.MinPriceDeltaPctDecimal()
	out.MinVolumeUSD = cfg.MinVolumeUSDDecimal()
	if len(cfg.Tranches) > 0 {
		out.Tranches = cfg.TranchesDecimal()
	}
	out.SlippageBase = decimal.NewFromFloat(cfg.SlippageBase)
	out.SlippageMultiplier = decimal.NewFromFloat(cfg.SlippageMultiplier)
	out.SafetyBuffer = decimal.NewFromFloat(cfg.SafetyBuffer)
	if cfg.ArbitrageTTL > 0 {
		out.ArbitrageTTL = cfg.ArbitrageTTL
	}
	if cfg.LiquidationTTL > 0 {
		out.LiquidationTTL = cfg.LiquidationTTL
	}
	for class, bonus := range cfg.LiquidationBonus {
		out.LiquidationBonus[asset.Class(class)] = decimal.NewFromFloat(bonus)
	}
	return out
}

// CostConfig converts the cost section.
func CostConfig(cfg config.CostConfig) app.CostConfig {
	base := make(map[string]decimal.Decimal, len(cfg.BaseFeeUSD))
	for network, fee := range cfg.BaseFeeUSD {
		base[network] = decimal.NewFromFloat(fee)
	}
	return app.CostConfig{
		Network:             cfg.Network,
		VenueTypes:          cfg.VenueTypes,
		VenueUnits:          cfg.VenueUnits,
		DefaultUnits:        cfg.DefaultUnits,
		LiquidationUnits:    cfg.LiquidationUnits,
		ComputeUnitPriceUSD: decimal.NewFromFloat(cfg.ComputeUnitPriceUSD),
		BaseFeeUSD:          base,
		BasePriorityFeeUSD:  decimal.NewFromFloat(cfg.BasePriorityFeeUSD),
		BundleDiscount:      decimal.NewFromFloat(cfg.BundleDiscount),
	}
}

// Weights converts configured weights, ignoring unknown categories.
func Weights(cfg map[string]float64) map[domain.Category]float64 {
	known := make(map[domain.Category]bool, len(domain.Categories))
	for _, c := range domain.Categories {
		known[c] = true
	}
	out := make(map[domain.Category]float64, len(cfg))
	for name, w := range cfg {
		if c := domain.Category(name); known[c] {
			out[c] = w
		}
	}
	return out
}
