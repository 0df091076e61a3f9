// Package static provides a fixed congestion source for offline runs and tests.
package static

import (
	"context"
	"time"

	"github.com/fd1az/mev-bundler/business/network/domain"
)

// Source always reports the same multiplier.
type Source struct {
	network    string
	multiplier float64
	now        func() time.Time
}

// New creates a static source. Multipliers below 1 are raised to neutral.
func New(network string, multiplier float64) *Source {
	return &Source{
		network:    network,
		multiplier: domain.ClampMultiplier(multiplier, 0),
		now:        time.Now,
	}
}

func (s *Source) Name() string { return "static" }

func (s *Source) Fetch(context.Context) (domain.CongestionState, error) {
	return domain.CongestionState{
		Network:    s.network,
		Multiplier: s.multiplier,
		Source:     s.Name(),
		ObservedAt: s.now(),
	}, nil
}
