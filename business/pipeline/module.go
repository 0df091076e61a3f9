// Package pipeline wires detection, composition and ordering into one engine.
package pipeline

import (
	"context"
	"fmt"

	attributionDI "github.com/fd1az/mev-bundler/business/attribution/di"
	bundleDI "github.com/fd1az/mev-bundler/business/bundle/di"
	marketDI "github.com/fd1az/mev-bundler/business/market/di"
	networkDI "github.com/fd1az/mev-bundler/business/network/di"
	opportunityDI "github.com/fd1az/mev-bundler/business/opportunity/di"
	orderingDI "github.com/fd1az/mev-bundler/business/ordering/di"
	"github.com/fd1az/mev-bundler/business/pipeline/app"
	pipelineDI "github.com/fd1az/mev-bundler/business/pipeline/di"
	"github.com/fd1az/mev-bundler/business/pipeline/infra/console"
	"github.com/fd1az/mev-bundler/business/pipeline/infra/logsink"
	"github.com/fd1az/mev-bundler/internal/config"
	"github.com/fd1az/mev-bundler/internal/di"
	"github.com/fd1az/mev-bundler/internal/logger"
	"github.com/fd1az/mev-bundler/internal/monolith"
)

// Module implements the pipeline bounded context.
// Depends on every other module; register it last.
type Module struct{}

// RegisterServices registers the sink and the engine.
func (Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pipelineDI.Sink, func(sr di.ServiceRegistry) app.Sink {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		return NewSink(cfg.Pipeline, log)
	})

	di.RegisterToken(c, pipelineDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		engine, err := app.NewEngine(EngineConfig(cfg), app.Deps{
			Source:     di.GetToken(sr, marketDI.Ingestor),
			Conditions: networkDI.GetConditions(sr),
			Detector:   opportunityDI.GetDetector(sr),
			Evaluator:  opportunityDI.GetEvaluator(sr),
			Queue:      bundleDI.GetQueue(sr),
			Composer:   bundleDI.GetComposer(sr),
			Orderer:    orderingDI.GetOptimizer(sr),
			Recorder:   attributionDI.GetRecorder(sr),
			Sink:       di.GetToken(sr, pipelineDI.Sink),
		}, log)
		if err != nil {
			panic(fmt.Sprintf("pipeline: engine: %v", err))
		}
		return engine
	})

	return nil
}

// Startup resolves the engine and registers its health check. The caller
// runs the engine.
func (Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	engine := pipelineDI.GetEngine(mono.Services())

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("pipeline", engine.Healthy)
	}

	mono.Logger().Info(ctx, "pipeline module started",
		"workers", mono.Config().Detection.Workers,
		"sink", mono.Config().Pipeline.Sink)
	return nil
}

// EngineConfig collects the engine settings spread across sections.
func EngineConfig(cfg *config.Config) app.EngineConfig {
	return app.EngineConfig{
		Workers:       cfg.Detection.Workers,
		DrainInterval: cfg.Bundle.DrainInterval,
		ExpirySweep:   cfg.Pipeline.ExpirySweep,
		QuoteMaxAge:   cfg.Pipeline.QuoteMaxAge,
		EventBuffer:   cfg.Pipeline.EventBuffer,
		EventTime:     cfg.Pipeline.EventTime,
	}
}

// NewSink selects the handoff sink.
func NewSink(cfg config.PipelineConfig, log logger.LoggerInterface) app.Sink {
	if cfg.Sink == "log" {
		return logsink.New(log)
	}
	return console.New()
}
