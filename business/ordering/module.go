// Package ordering implements execution-order optimization for bundles.
package ordering

import (
	"context"
	"fmt"

	"github.com/fd1az/mev-bundler/business/ordering/app"
	orderingDI "github.com/fd1az/mev-bundler/business/ordering/di"
	"github.com/fd1az/mev-bundler/internal/config"
	"github.com/fd1az/mev-bundler/internal/di"
	"github.com/fd1az/mev-bundler/internal/logger"
	"github.com/fd1az/mev-bundler/internal/monolith"
)

// Module implements the ordering bounded context.
type Module struct{}

// RegisterServices registers the optimizer.
func (Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, orderingDI.Optimizer, func(sr di.ServiceRegistry) *app.Optimizer {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		opt, err := app.NewOptimizer(OptimizerConfig(cfg.Ordering), log)
		if err != nil {
			panic(fmt.Sprintf("ordering: optimizer: %v", err))
		}
		return opt
	})
	return nil
}

// Startup resolves the optimizer so configuration errors surface at boot.
func (Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	orderingDI.GetOptimizer(mono.Services())

	cfg := mono.Config().Ordering
	mono.Logger().Info(ctx, "ordering module started",
		"concurrency", cfg.Concurrency,
		"genetic_timeout", cfg.GeneticTimeout.String(),
		"annealing_timeout", cfg.AnnealingTimeout.String())
	return nil
}

// OptimizerConfig converts the ordering section.
func OptimizerConfig(cfg config.OrderingConfig) app.Config {
	return app.Config{
		Concurrency:      cfg.Concurrency,
		GeneticTimeout:   cfg.GeneticTimeout,
		AnnealingTimeout: cfg.AnnealingTimeout,
		Population:       cfg.Population,
		Generations:      cfg.Generations,
		MutationRate:     cfg.MutationRate,
		InitialTemp:      cfg.InitialTemp,
		CoolingRate:      cfg.CoolingRate,
		MinTemp:          cfg.MinTemp,
		DriftRate:        cfg.DriftRate,
		ViolationPenalty: cfg.ViolationPenalty,
		Seed:             cfg.Seed,
		MaxPermutations:  cfg.MaxPermutations,
	}
}
