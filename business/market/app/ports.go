// Package app contains the ingestion ports and fan-in for the market context.
package app

import (
	"context"

	"github.com/fd1az/mev-bundler/business/market/domain"
)

// Source produces snapshot events until ctx is done or the source is exhausted.
// Undecodable messages are dropped by the source and reported via Skipped.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- domain.Event) error
	Skipped() int64
}
