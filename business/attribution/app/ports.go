// Package app contains outcome recording, attribution and the terminal-event
// recorder.
package app

import (
	"context"

	"github.com/fd1az/mev-bundler/business/attribution/domain"
)

// OutcomeStore keeps a bounded, per-key history of execution outcomes.
type OutcomeStore interface {
	Record(ctx context.Context, o domain.Outcome) error
	// Recent returns up to limit outcomes for key, oldest first.
	Recent(ctx context.Context, key string, limit int) ([]domain.Outcome, error)
	Keys(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Journal persists terminal events.
type Journal interface {
	Append(ctx context.Context, e domain.Event) error
	Close() error
}
