package app

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/mev-bundler/business/market/domain"
	"github.com/fd1az/mev-bundler/internal/logger"
)

const meterName = "github.com/fd1az/mev-bundler/business/market"

type ingestorMetrics struct {
	events metric.Int64Counter
}

// Ingestor fans events from all sources into one channel.
type Ingestor struct {
	sources []Source
	logger  logger.LoggerInterface
	metrics *ingestorMetrics
}

// NewIngestor creates an Ingestor over sources.
func NewIngestor(log logger.LoggerInterface, sources ...Source) (*Ingestor, error) {
	i := &Ingestor{sources: sources, logger: log}
	if err := i.initMetrics(); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *Ingestor) initMetrics() error {
	meter := otel.Meter(meterName)
	events, err := meter.Int64Counter(
		"market_events_total",
		metric.WithDescription("Snapshot events received per source"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}
	i.metrics = &ingestorMetrics{events: events}
	return nil
}

// Run starts every source and returns a channel closed once all sources
// have stopped.
func (i *Ingestor) Run(ctx context.Context, buffer int) <-chan domain.Event {
	out := make(chan domain.Event, buffer)

	var wg sync.WaitGroup
	for _, src := range i.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			i.runSource(ctx, src, out)
		}(src)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func (i *Ingestor) runSource(ctx context.Context, src Source, out chan<- domain.Event) {
	attrs := metric.WithAttributes(attribute.String("source", src.Name()))

	local := make(chan domain.Event)
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, local)
		close(local)
	}()

	for ev := range local {
		i.metrics.events.Add(ctx, 1, attrs)
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	err := <-done
	switch {
	case err == nil:
		i.logger.Info(ctx, "source finished", "source", src.Name(), "skipped", src.Skipped())
	case errors.Is(err, context.Canceled):
	default:
		i.logger.Error(ctx, "source failed", "source", src.Name(), "error", err)
	}
}

// Skipped returns the total undecodable messages across sources.
func (i *Ingestor) Skipped() int64 {
	var n int64
	for _, s := range i.sources {
		n += s.Skipped()
	}
	return n
}

// Sources returns the configured sources.
func (i *Ingestor) Sources() []Source {
	return i.sources
}
