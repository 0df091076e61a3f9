// Package network implements the network-state context: priority fee
// congestion and per-instrument market conditions.
package network

import (
	"context"
	"fmt"

	"github.com/fd1az/mev-bundler/business/network/app"
	networkDI "github.com/fd1az/mev-bundler/business/network/di"
	"github.com/fd1az/mev-bundler/business/network/infra/ethereum"
	"github.com/fd1az/mev-bundler/business/network/infra/httpfeed"
	"github.com/fd1az/mev-bundler/business/network/infra/solana"
	"github.com/fd1az/mev-bundler/business/network/infra/static"
	"github.com/fd1az/mev-bundler/internal/config"
	"github.com/fd1az/mev-bundler/internal/di"
	"github.com/fd1az/mev-bundler/internal/logger"
	"github.com/fd1az/mev-bundler/internal/monolith"
)

// Module implements the network bounded context.
type Module struct{}

// RegisterServices registers the congestion source and both trackers.
func (Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, networkDI.CongestionSource, func(sr di.ServiceRegistry) app.CongestionSource {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		src, err := NewCongestionSource(cfg.Network, log)
		if err != nil {
			panic(fmt.Sprintf("network: congestion source: %v", err))
		}
		return src
	})

	di.RegisterToken(c, networkDI.Tracker, func(sr di.ServiceRegistry) *app.Tracker {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		tr, err := app.NewTracker(app.TrackerConfig{
			Network:         cfg.Network.Name,
			RefreshInterval: cfg.Network.RefreshInterval,
			StaleAfter:      cfg.Network.StaleAfter,
			RequestsPerMin:  cfg.Network.RequestsPerMin,
		}, di.GetToken(sr, networkDI.CongestionSource), log)
		if err != nil {
			panic(fmt.Sprintf("network: tracker: %v", err))
		}
		return tr
	})

	di.RegisterToken(c, networkDI.Conditions, func(sr di.ServiceRegistry) *app.ConditionsTracker {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		return app.NewConditionsTracker(app.ConditionsConfig{
			PublishInterval:  cfg.Bundle.DrainInterval,
			VenueCompetition: cfg.Network.VenueCompetition,
		})
	})

	return nil
}

// Startup starts the congestion refresh loop and registers its health check.
func (Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	tracker := networkDI.GetTracker(mono.Services())

	go tracker.Run(ctx)

	if closer, ok := di.GetToken(mono.Services(), networkDI.CongestionSource).(app.Closer); ok {
		mono.OnClose(closer.Close)
	}

	if hs := mono.Health(); hs != nil {
		hs.RegisterCheck("congestion", func(context.Context) (bool, string) {
			return tracker.Healthy()
		})
	}

	log.Info(ctx, "network module started",
		"provider", mono.Config().Network.Provider,
		"network", mono.Config().Network.Name)
	return nil
}

// NewCongestionSource builds the configured provider.
func NewCongestionSource(cfg config.NetworkConfig, log logger.LoggerInterface) (app.CongestionSource, error) {
	switch cfg.Provider {
	case "", "static":
		return static.New(cfg.Name, cfg.StaticMultiplier), nil
	case "solana":
		return solana.New(solana.Config{
			RPCURL:        cfg.RPCURL,
			Network:       cfg.Name,
			Accounts:      cfg.FeeAccounts,
			BaselineFee:   cfg.BaselineFee,
			MaxMultiplier: cfg.MaxMultiplier,
		}, log)
	case "ethereum":
		return ethereum.New(ethereum.Config{
			RPCURL:        cfg.RPCURL,
			Network:       cfg.Name,
			BaselineGwei:  cfg.BaselineFee,
			MaxMultiplier: cfg.MaxMultiplier,
		}, log)
	case "http":
		return httpfeed.New(httpfeed.Config{
			URL:           cfg.FeedURL,
			Network:       cfg.Name,
			CacheTTL:      cfg.RefreshInterval / 2,
			BaselineFee:   cfg.BaselineFee,
			MaxMultiplier: cfg.MaxMultiplier,
		})
	default:
		return nil, fmt.Errorf("unknown congestion provider %q", cfg.Provider)
	}
}
