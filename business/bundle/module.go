// Package bundle implements bundle composition.
package bundle

import (
	"context"
	"fmt"

	"github.com/fd1az/mev-bundler/business/bundle/app"
	bundleDI "github.com/fd1az/mev-bundler/business/bundle/di"
	"github.com/fd1az/mev-bundler/business/bundle/domain"
	opportunityDI "github.com/fd1az/mev-bundler/business/opportunity/di"
	"github.com/fd1az/mev-bundler/internal/config"
	"github.com/fd1az/mev-bundler/internal/di"
	"github.com/fd1az/mev-bundler/internal/logger"
	"github.com/fd1az/mev-bundler/internal/monolith"
)

// Module implements the bundle bounded context.
// Depends on opportunity for bundle pricing.
type Module struct{}

// RegisterServices registers the submission queue and the composer.
func (Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, bundleDI.Queue, func(sr di.ServiceRegistry) *app.Queue {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		return app.NewQueue(cfg.Bundle.QueueSize, cfg.Bundle.DrainThreshold)
	})

	di.RegisterToken(c, bundleDI.Composer, func(sr di.ServiceRegistry) *app.Composer {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		comp, err := app.NewComposer(ComposerConfig(cfg.Bundle),
			opportunityDI.GetEvaluator(sr).Costs(), log)
		if err != nil {
			panic(fmt.Sprintf("bundle: composer: %v", err))
		}
		return comp
	})

	return nil
}

// Startup registers queue and pool health checks.
func (Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	queue := bundleDI.GetQueue(mono.Services())
	composer := bundleDI.GetComposer(mono.Services())

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("queue", func(context.Context) (bool, string) {
			msg := fmt.Sprintf("%d/%d queued, %d dropped", queue.Len(), queue.Cap(), queue.Dropped())
			return queue.Len() < queue.Cap(), msg
		})
		hs.RegisterCheck("pool", func(context.Context) (bool, string) {
			return true, fmt.Sprintf("%d candidates", composer.PoolSize())
		})
	}

	mono.Logger().Info(ctx, "bundle module started",
		"strategy", composer.Strategy().Name(),
		"max_size", mono.Config().Bundle.MaxSize,
		"max_risk", mono.Config().Bundle.MaxRisk)
	return nil
}

// ComposerConfig converts the bundle section.
func ComposerConfig(cfg config.BundleConfig) app.ComposerConfig {
	return app.ComposerConfig{
		Strategy:           domain.Strategy(cfg.Strategy),
		MaxSize:            cfg.MaxSize,
		MaxRisk:            cfg.MaxRisk,
		MinProfit:          cfg.MinProfitDecimal(),
		ExhaustiveLimit:    cfg.ExhaustiveLimit,
		SynergyBonus:       cfg.SynergyBonus,
		MaxBundlesPerCycle: cfg.MaxBundlesPerCycle,
	}
}
