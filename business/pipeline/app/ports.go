// Package app runs the detection-to-handoff pipeline.
package app

import (
	"context"
	"time"

	bundleapp "github.com/fd1az/mev-bundler/business/bundle/app"
	bundledomain "github.com/fd1az/mev-bundler/business/bundle/domain"
	marketdomain "github.com/fd1az/mev-bundler/business/market/domain"
	oppapp "github.com/fd1az/mev-bundler/business/opportunity/app"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
)

// Source streams snapshot events; the channel closes when every feed is done.
type Source interface {
	Run(ctx context.Context, buffer int) <-chan marketdomain.Event
}

// Conditions folds quotes into the published market conditions. Only the
// dispatcher goroutine calls it.
type Conditions interface {
	Observe(q marketdomain.VenueQuote)
	PublishIfDue(now time.Time) bool
}

// Detector turns a batch of snapshots into opportunities.
type Detector interface {
	Detect(ctx context.Context, batch marketdomain.Batch) oppapp.DetectionResult
}

// Evaluator assesses, prices and scores an opportunity.
type Evaluator interface {
	Evaluate(ctx context.Context, opp *oppdomain.Opportunity)
}

// Composer owns the candidate pool.
type Composer interface {
	Ingest(opps ...*oppdomain.Opportunity) []*oppdomain.Opportunity
	Sweep(now time.Time) []*oppdomain.Opportunity
	Compose(ctx context.Context, now time.Time) bundleapp.ComposeResult
}

// Orderer freezes a validated bundle in its execution order.
type Orderer interface {
	Freeze(ctx context.Context, b *bundledomain.Bundle) error
	Concurrency() int
}

// Recorder journals terminal opportunities and bundles.
type Recorder interface {
	Opportunity(ctx context.Context, opp *oppdomain.Opportunity)
	Bundle(ctx context.Context, b *bundledomain.Bundle)
}

// Sink receives frozen bundles for execution.
type Sink interface {
	Start(ctx context.Context) error
	Handoff(ctx context.Context, b *bundledomain.Bundle) error
	Stop() error
}
