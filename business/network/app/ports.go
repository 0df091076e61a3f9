// Package app contains the congestion and market-conditions trackers.
package app

import (
	"context"

	"github.com/fd1az/mev-bundler/business/network/domain"
)

// CongestionSource reads the current congestion of a network.
type CongestionSource interface {
	Name() string
	Fetch(ctx context.Context) (domain.CongestionState, error)
}

// Closer is implemented by sources holding connections.
type Closer interface {
	Close() error
}
