// Package attribution implements outcome history, the historical adjustment
// table and the terminal-event journal.
package attribution

import (
	"context"
	"fmt"

	"github.com/fd1az/mev-bundler/business/attribution/app"
	attributionDI "github.com/fd1az/mev-bundler/business/attribution/di"
	"github.com/fd1az/mev-bundler/business/attribution/domain"
	"github.com/fd1az/mev-bundler/business/attribution/infra/badgerjournal"
	"github.com/fd1az/mev-bundler/business/attribution/infra/memstore"
	"github.com/fd1az/mev-bundler/business/attribution/infra/redisstore"
	"github.com/fd1az/mev-bundler/internal/config"
	"github.com/fd1az/mev-bundler/internal/di"
	"github.com/fd1az/mev-bundler/internal/logger"
	"github.com/fd1az/mev-bundler/internal/monolith"
)

// Module implements the attribution bounded context.
type Module struct{}

// RegisterServices registers the store, journal, attributor and recorder.
func (Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, attributionDI.OutcomeStore, func(sr di.ServiceRegistry) app.OutcomeStore {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		return NewOutcomeStore(cfg.Attribution)
	})

	di.RegisterToken(c, attributionDI.Journal, func(sr di.ServiceRegistry) app.Journal {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)

		j, err := badgerjournal.Open(badgerjournal.Options{
			Path:     cfg.Journal.Path,
			InMemory: cfg.Journal.InMemory,
		})
		if err != nil {
			panic(fmt.Sprintf("attribution: journal: %v", err))
		}
		return j
	})

	di.RegisterToken(c, attributionDI.Attributor, func(sr di.ServiceRegistry) *app.Attributor {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		a, err := app.NewAttributor(app.AttributorConfig{
			HistoryLength:   cfg.Attribution.HistoryLength,
			MinSamples:      cfg.Attribution.MinSamples,
			RefreshInterval: cfg.Attribution.RefreshInterval,
			Weights: map[domain.Method]float64{
				domain.MethodStatistical: cfg.Attribution.StatisticalWeight,
				domain.MethodPattern:     cfg.Attribution.PatternWeight,
				domain.MethodCorrelation: cfg.Attribution.CorrelationWeight,
			},
		}, di.GetToken(sr, attributionDI.OutcomeStore), log)
		if err != nil {
			panic(fmt.Sprintf("attribution: attributor: %v", err))
		}
		return a
	})

	di.RegisterToken(c, attributionDI.Recorder, func(sr di.ServiceRegistry) *app.Recorder {
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		r, err := app.NewRecorder(di.GetToken(sr, attributionDI.Journal), log)
		if err != nil {
			panic(fmt.Sprintf("attribution: recorder: %v", err))
		}
		return r
	})

	return nil
}

// Startup starts the history rebuild loop and registers release hooks.
func (Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	sr := mono.Services()
	attributor := attributionDI.GetAttributor(sr)

	mono.OnClose(di.GetToken(sr, attributionDI.Journal).Close)
	if closer, ok := di.GetToken(sr, attributionDI.OutcomeStore).(interface{ Close() error }); ok {
		mono.OnClose(closer.Close)
	}

	go attributor.Run(ctx)

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("history", attributor.Healthy)
	}

	mono.Logger().Info(ctx, "attribution module started",
		"store", storeName(mono.Config().Attribution),
		"journal", mono.Config().Journal.Path)
	return nil
}

// NewOutcomeStore returns a Redis store when an address is configured and an
// in-process store otherwise.
func NewOutcomeStore(cfg config.AttributionConfig) app.OutcomeStore {
	if cfg.RedisAddr == "" {
		return memstore.New(cfg.HistoryLength)
	}
	return redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Limit:    cfg.HistoryLength,
		TTL:      cfg.HistoryTTL,
	})
}

func storeName(cfg config.AttributionConfig) string {
	if cfg.RedisAddr == "" {
		return "memory"
	}
	return "redis"
}
