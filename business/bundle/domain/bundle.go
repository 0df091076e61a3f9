// Package domain contains the bundle aggregate and its dependency graph.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
)

// Strategy names a selection policy.
type Strategy string

const (
	StrategyGreedy      Strategy = "greedy"
	StrategyBalanced    Strategy = "balanced"
	StrategyRiskAverse  Strategy = "risk_averse"
	StrategyDiversified Strategy = "diversified"
	StrategySynergistic Strategy = "synergistic"
)

// Status is the lifecycle state of a bundle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
)

// Algorithm records which ordering branch produced ExecutionOrder.
type Algorithm string

const (
	AlgorithmNone        Algorithm = ""
	AlgorithmGraph       Algorithm = "graph"
	AlgorithmExhaustive  Algorithm = "exhaustive"
	AlgorithmGreedy      Algorithm = "greedy"
	AlgorithmGenetic     Algorithm = "genetic"
	AlgorithmAnnealing   Algorithm = "annealing"
	AlgorithmTopological Algorithm = "topological"
)

// Bundle is an ordered group of opportunities submitted atomically.
//
// Items are fixed at construction. Aggregates may be recomputed while the
// bundle is a Draft; Freeze runs once on a Validated bundle and makes it
// immutable.
type Bundle struct {
	ID        string
	Strategy  Strategy
	CreatedAt time.Time

	items       []*oppdomain.Opportunity
	cost        oppdomain.CostEstimate
	profit      decimal.Decimal
	risk        float64
	status      Status
	reasons     []oppdomain.Reason
	order       []int
	algorithm   Algorithm
	unoptimized bool
	frozen      bool
}

// New creates a Draft bundle over items.
func New(id string, strategy Strategy, items []*oppdomain.Opportunity, createdAt time.Time) *Bundle {
	b := &Bundle{
		ID:        id,
		Strategy:  strategy,
		CreatedAt: createdAt,
		items:     append([]*oppdomain.Opportunity(nil), items...),
		status:    StatusDraft,
	}
	b.profit = GrossSum(b.items)
	b.risk = AggregateRisk(b.items)
	return b
}

// Items returns a copy of the items in selection order.
func (b *Bundle) Items() []*oppdomain.Opportunity {
	return append([]*oppdomain.Opportunity(nil), b.items...)
}

func (b *Bundle) Len() int                              { return len(b.items) }
func (b *Bundle) Status() Status                        { return b.status }
func (b *Bundle) AggregateCost() oppdomain.CostEstimate { return b.cost }
func (b *Bundle) AggregateProfit() decimal.Decimal      { return b.profit }
func (b *Bundle) AggregateRisk() float64                { return b.risk }
func (b *Bundle) ComputeUnits() uint64                  { return b.cost.ComputeUnits }
func (b *Bundle) Algorithm() Algorithm                  { return b.algorithm }
func (b *Bundle) Unoptimized() bool                     { return b.unoptimized }
func (b *Bundle) Frozen() bool                          { return b.frozen }

// Reasons returns the rejection reasons.
func (b *Bundle) Reasons() []oppdomain.Reason {
	return append([]oppdomain.Reason(nil), b.reasons...)
}

// SetCost applies the bundled cost and recomputes the aggregates.
func (b *Bundle) SetCost(cost oppdomain.CostEstimate) error {
	if b.status != StatusDraft {
		return apperror.New(apperror.CodeBundleFrozen,
			apperror.WithContext(fmt.Sprintf("%s: cost change in status %s", b.ID, b.status)))
	}
	b.cost = cost
	b.profit = GrossSum(b.items).Sub(cost.Total())
	b.risk = AggregateRisk(b.items)
	return nil
}

// Validate marks a Draft bundle Validated.
func (b *Bundle) Validate() error {
	if b.status != StatusDraft {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("%s: validate in status %s", b.ID, b.status)))
	}
	b.status = StatusValidated
	return nil
}

// Reject marks a Draft bundle Rejected.
func (b *Bundle) Reject(reasons ...oppdomain.Reason) error {
	if b.status != StatusDraft {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("%s: reject in status %s", b.ID, b.status)))
	}
	b.status = StatusRejected
	b.reasons = append(b.reasons, reasons...)
	return nil
}

// Freeze records the execution order. It may run once, on a Validated bundle,
// with a permutation of the item indices.
func (b *Bundle) Freeze(order []int, algorithm Algorithm, unoptimized bool) error {
	if b.frozen {
		return apperror.New(apperror.CodeBundleFrozen, apperror.WithContext(b.ID))
	}
	if b.status != StatusValidated {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("%s: freeze in status %s", b.ID, b.status)))
	}
	if !IsPermutation(order, len(b.items)) {
		return apperror.New(apperror.CodeConstraintViolation,
			apperror.WithContext(fmt.Sprintf("%s: order %v is not a permutation of %d items", b.ID, order, len(b.items))))
	}

	b.order = append([]int(nil), order...)
	b.algorithm = algorithm
	b.unoptimized = unoptimized
	b.frozen = true
	return nil
}

// ExecutionOrder returns the frozen order, or nil before Freeze.
func (b *Bundle) ExecutionOrder() []int {
	return append([]int(nil), b.order...)
}

// Ordered returns the items in execution order, falling back to selection
// order before Freeze.
func (b *Bundle) Ordered() []*oppdomain.Opportunity {
	if !b.frozen {
		return b.Items()
	}
	out := make([]*oppdomain.Opportunity, len(b.order))
	for i, idx := range b.order {
		out[i] = b.items[idx]
	}
	return out
}

// GrossSum adds the gross profit of items.
func GrossSum(items []*oppdomain.Opportunity) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range items {
		sum = sum.Add(o.GrossProfit())
	}
	return sum
}

// NetSum adds the standalone net profit of items.
func NetSum(items []*oppdomain.Opportunity) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range items {
		sum = sum.Add(o.NetProfit())
	}
	return sum
}

// AggregateRisk is the mean item risk weighted by positive net profit. When
// no item has positive net the plain mean is used, so the result always lies
// between the smallest and largest item score.
func AggregateRisk(items []*oppdomain.Opportunity) float64 {
	if len(items) == 0 {
		return oppdomain.MinRisk
	}

	var weighted, weights, plain float64
	for _, o := range items {
		plain += o.RiskScore()
		w, _ := o.NetProfit().Float64()
		if w <= 0 {
			continue
		}
		weighted += w * o.RiskScore()
		weights += w
	}
	if weights == 0 {
		return plain / float64(len(items))
	}
	return weighted / weights
}

// IsPermutation reports whether order contains each of 0..n-1 exactly once.
func IsPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, i := range order {
		if i < 0 || i >= n || seen[i] {
			return false
		}
		seen[i] = true
	}
	return true
}

// Snapshot is an immutable copy of a bundle for attribution and handoff.
type Snapshot struct {
	ID             string               `json:"id"`
	Strategy       Strategy             `json:"strategy"`
	Status         Status               `json:"status"`
	Items          []oppdomain.Snapshot `json:"items"`
	ExecutionOrder []int                `json:"execution_order,omitempty"`
	Algorithm      Algorithm            `json:"algorithm,omitempty"`
	Unoptimized    bool                 `json:"unoptimized,omitempty"`
	Profit         decimal.Decimal      `json:"aggregate_profit"`
	Cost           decimal.Decimal      `json:"aggregate_cost"`
	Risk           float64              `json:"aggregate_risk"`
	ComputeUnits   uint64               `json:"compute_units"`
	Reasons        []string             `json:"reasons,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// Snapshot copies the current state.
func (b *Bundle) Snapshot() Snapshot {
	s := Snapshot{
		ID:             b.ID,
		Strategy:       b.Strategy,
		Status:         b.status,
		Items:          make([]oppdomain.Snapshot, len(b.items)),
		ExecutionOrder: b.ExecutionOrder(),
		Algorithm:      b.algorithm,
		Unoptimized:    b.unoptimized,
		Profit:         b.profit,
		Cost:           b.cost.Total(),
		Risk:           b.risk,
		ComputeUnits:   b.cost.ComputeUnits,
		CreatedAt:      b.CreatedAt,
	}
	for i, o := range b.items {
		s.Items[i] = o.Snapshot()
	}
	for _, r := range b.reasons {
		s.Reasons = append(s.Reasons, r.String())
	}
	return s
}
