// Package console prints handed-off bundles to a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fd1az/mev-bundler/business/bundle/domain"
)

const rule = "================================================================================"

// Sink writes one block per bundle. Handoff is safe for concurrent use.
type Sink struct {
	mu  sync.Mutex
	out io.Writer
}

// New creates a sink on stdout.
func New() *Sink {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a sink on w.
func NewWithWriter(w io.Writer) *Sink {
	return &Sink{out: w}
}

// Start prints the banner.
func (s *Sink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, "MEV Bundler Started")
	fmt.Fprintln(s.out, "===================")
	return nil
}

// Handoff prints b in execution order.
func (s *Sink) Handoff(ctx context.Context, b *domain.Bundle) error {
	cost := b.AggregateCost()

	var sb strings.Builder
	fmt.Fprintln(&sb, "")
	fmt.Fprintln(&sb, rule)
	fmt.Fprintln(&sb, "BUNDLE READY")
	fmt.Fprintln(&sb, rule)
	fmt.Fprintf(&sb, "ID:             %s\n", b.ID)
	fmt.Fprintf(&sb, "Created:        %s\n", b.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Strategy:       %s\n", b.Strategy)
	algo := string(b.Algorithm())
	if b.Unoptimized() {
		algo += " (unoptimized)"
	}
	fmt.Fprintf(&sb, "Ordering:       %s\n", algo)
	fmt.Fprintln(&sb, "--------------------------------------------------------------------------------")
	fmt.Fprintln(&sb, "EXECUTION ORDER")
	for i, o := range b.Ordered() {
		fmt.Fprintf(&sb, "  %2d. %-12s %-24s net $%s  risk %.2f\n",
			i+1, o.Kind, strings.Join(o.Instruments, ","), o.NetProfit().StringFixed(4), o.RiskScore())
	}
	fmt.Fprintln(&sb, "--------------------------------------------------------------------------------")
	fmt.Fprintln(&sb, "COST")
	fmt.Fprintf(&sb, "  Base Fee:       $%s\n", cost.BaseFee.StringFixed(6))
	fmt.Fprintf(&sb, "  Priority Fee:   $%s\n", cost.PriorityFee.StringFixed(6))
	fmt.Fprintf(&sb, "  Compute:        %d units ($%s)\n", cost.ComputeUnits, cost.ComputeCost.StringFixed(6))
	fmt.Fprintln(&sb, "--------------------------------------------------------------------------------")
	fmt.Fprintln(&sb, "PROFIT")
	fmt.Fprintf(&sb, "  Net:            $%s\n", b.AggregateProfit().StringFixed(4))
	fmt.Fprintf(&sb, "  Risk:           %.2f\n", b.AggregateRisk())
	fmt.Fprintln(&sb, rule)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, sb.String())
	return err
}

// Stop prints the footer.
func (s *Sink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, "")
	fmt.Fprintln(s.out, "MEV Bundler Stopped")
	return nil
}
