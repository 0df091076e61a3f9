package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/mev-bundler/business/attribution/domain"
	bundledomain "github.com/fd1az/mev-bundler/business/bundle/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/logger"
)

// Recorder writes terminal events to the journal. Journal failures are logged
// and counted; they never stop the pipeline.
type Recorder struct {
	journal Journal
	logger  logger.LoggerInterface
	now     func() time.Time

	events   metric.Int64Counter
	failures metric.Int64Counter
}

// NewRecorder creates a recorder. A nil journal discards events.
func NewRecorder(journal Journal, log logger.LoggerInterface) (*Recorder, error) {
	meter := otel.Meter(meterName)

	events, err := meter.Int64Counter(
		"journal_events_total",
		metric.WithDescription("Terminal events journaled"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		"journal_failures_total",
		metric.WithDescription("Terminal events that could not be journaled"),
	)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		journal:  journal,
		logger:   log,
		now:      time.Now,
		events:   events,
		failures: failures,
	}, nil
}

// Opportunity journals an expired or rejected opportunity.
func (r *Recorder) Opportunity(ctx context.Context, opp *oppdomain.Opportunity) {
	r.append(ctx, domain.OpportunityEvent(opp, r.now()))
}

// Bundle journals a validated or rejected bundle.
func (r *Recorder) Bundle(ctx context.Context, b *bundledomain.Bundle) {
	r.append(ctx, domain.BundleEvent(b, r.now()))
}

func (r *Recorder) append(ctx context.Context, e domain.Event) {
	if r.journal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("type", string(e.Type)),
		attribute.String("status", e.Status),
	)
	if err := r.journal.Append(ctx, e); err != nil {
		r.failures.Add(ctx, 1, attrs)
		r.logger.Warn(ctx, "journal append failed", "id", e.ID, "type", e.Type, "error", err)
		return
	}
	r.events.Add(ctx, 1, attrs)
}
