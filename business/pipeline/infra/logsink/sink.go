// Package logsink reports handed-off bundles as structured log records.
package logsink

import (
	"context"
	"strings"

	"github.com/fd1az/mev-bundler/business/bundle/domain"
	"github.com/fd1az/mev-bundler/internal/logger"
)

// Sink logs one record per bundle.
type Sink struct {
	logger logger.LoggerInterface
}

// New creates a sink writing to log.
func New(log logger.LoggerInterface) *Sink {
	return &Sink{logger: log}
}

func (s *Sink) Start(ctx context.Context) error { return nil }
func (s *Sink) Stop() error                     { return nil }

// Handoff logs b with its execution order.
func (s *Sink) Handoff(ctx context.Context, b *domain.Bundle) error {
	ids := make([]string, 0, b.Len())
	for _, o := range b.Ordered() {
		ids = append(ids, o.ID)
	}
	s.logger.Info(ctx, "bundle handed off",
		"bundle_id", b.ID,
		"strategy", string(b.Strategy),
		"algorithm", string(b.Algorithm()),
		"unoptimized", b.Unoptimized(),
		"order", strings.Join(ids, ","),
		"profit", b.AggregateProfit().StringFixed(6),
		"risk", b.AggregateRisk(),
		"compute_units", b.ComputeUnits())
	return nil
}
