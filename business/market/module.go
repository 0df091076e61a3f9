// Package market implements snapshot ingestion: the websocket feed and file replay.
package market

import (
	"context"
	"fmt"

	"github.com/fd1az/mev-bundler/business/market/app"
	marketDI "github.com/fd1az/mev-bundler/business/market/di"
	"github.com/fd1az/mev-bundler/business/market/infra/replay"
	"github.com/fd1az/mev-bundler/business/market/infra/wsfeed"
	"github.com/fd1az/mev-bundler/internal/config"
	"github.com/fd1az/mev-bundler/internal/di"
	"github.com/fd1az/mev-bundler/internal/logger"
	"github.com/fd1az/mev-bundler/internal/monolith"
)

// Module wires the market context.
type Module struct{}

// RegisterServices registers the ingestor factory.
func (Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketDI.Ingestor, func(sr di.ServiceRegistry) *app.Ingestor {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		ing, err := NewIngestor(cfg.Feed, log)
		if err != nil {
			panic(fmt.Sprintf("market: %v", err))
		}
		return ing
	})
	return nil
}

// Startup resolves the ingestor so wiring errors surface before the pipeline runs.
func (Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	ing := di.GetToken(mono.Services(), marketDI.Ingestor)
	mono.Logger().Info(ctx, "market module started", "sources", len(ing.Sources()))
	return nil
}

// NewIngestor builds sources from the feed config: replay takes precedence
// over the websocket feed so offline runs never dial out.
func NewIngestor(cfg config.FeedConfig, log logger.LoggerInterface) (*app.Ingestor, error) {
	var sources []app.Source

	switch {
	case cfg.ReplayFile != "":
		sources = append(sources, replay.New(cfg.ReplayFile, cfg.ReplayInterval, log))
	case cfg.WebSocketURL != "":
		feed, err := wsfeed.New(wsfeed.Config{
			URL:            cfg.WebSocketURL,
			Channels:       cfg.Subscribe,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
		}, log)
		if err != nil {
			return nil, err
		}
		sources = append(sources, feed)
	default:
		return nil, fmt.Errorf("no snapshot source configured")
	}

	return app.NewIngestor(log, sources...)
}
