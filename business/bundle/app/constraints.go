package app

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/mev-bundler/business/bundle/domain"
	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
)

const riskEpsilon = 1e-9

// Constraints are the hard limits every bundle must satisfy.
type Constraints struct {
	MaxSize   int
	MaxRisk   float64
	MinProfit decimal.Decimal // zero or less means any positive profit
}

// MeetsFloor reports whether profit satisfies the profit floor.
func (c Constraints) MeetsFloor(profit decimal.Decimal) bool {
	if c.MinProfit.IsPositive() {
		return profit.GreaterThanOrEqual(c.MinProfit)
	}
	return profit.IsPositive()
}

// admits reports whether adding candidate to selection keeps the size, risk,
// exclusivity and dependency constraints. The profit floor is not checked.
func (c Constraints) admits(candidate *oppdomain.Opportunity, selection []*oppdomain.Opportunity) bool {
	if len(selection)+1 > c.MaxSize {
		return false
	}
	if conflicts(candidate, selection) {
		return false
	}
	next := append(append([]*oppdomain.Opportunity(nil), selection...), candidate)
	if domain.AggregateRisk(next) > c.MaxRisk+riskEpsilon {
		return false
	}
	// rule edges alone never close a cycle; an explicit Requires anywhere in
	// the selection can
	return !hasRequires(next) || !domain.Dependencies(next).HasCycle()
}

func hasRequires(items []*oppdomain.Opportunity) bool {
	for _, o := range items {
		if len(o.Requires) > 0 {
			return true
		}
	}
	return false
}

// feasible checks a whole selection, including the profit floor on the
// standalone net profit. Bundled cost is never higher, so a feasible
// selection stays feasible after repricing.
func (c Constraints) feasible(selection []*oppdomain.Opportunity) bool {
	if len(selection) == 0 || len(selection) > c.MaxSize {
		return false
	}
	if domain.AggregateRisk(selection) > c.MaxRisk+riskEpsilon {
		return false
	}
	if !c.MeetsFloor(domain.NetSum(selection)) {
		return false
	}
	seen := make(map[string]bool)
	for _, o := range selection {
		for _, r := range o.Resources() {
			if seen[r] {
				return false
			}
			seen[r] = true
		}
	}
	return !domain.Dependencies(selection).HasCycle()
}

// Check validates a priced bundle and returns every violated constraint.
func (c Constraints) Check(b *domain.Bundle) []oppdomain.Reason {
	var reasons []oppdomain.Reason
	items := b.Items()

	if len(items) > c.MaxSize {
		reasons = append(reasons, oppdomain.Reason{
			Code:   apperror.CodeBundleSizeExceeded,
			Detail: fmt.Sprintf("%d > %d", len(items), c.MaxSize),
		})
	}
	if b.AggregateRisk() > c.MaxRisk+riskEpsilon {
		reasons = append(reasons, oppdomain.Reason{
			Code:   apperror.CodeRiskLimitExceeded,
			Detail: fmt.Sprintf("%.2f > %.2f", b.AggregateRisk(), c.MaxRisk),
		})
	}
	if !c.MeetsFloor(b.AggregateProfit()) {
		reasons = append(reasons, oppdomain.Reason{
			Code:   apperror.CodeProfitFloorNotMet,
			Detail: fmt.Sprintf("%s < %s", b.AggregateProfit().StringFixed(6), c.MinProfit.StringFixed(6)),
		})
	}

	owner := make(map[string]string)
	for _, o := range items {
		for _, r := range o.Resources() {
			if other, ok := owner[r]; ok {
				reasons = append(reasons, oppdomain.Reason{
					Code:   apperror.CodeExclusiveResource,
					Detail: fmt.Sprintf("%s held by %s and %s", r, other, o.ID),
				})
				continue
			}
			owner[r] = o.ID
		}
	}

	if domain.Dependencies(items).HasCycle() {
		reasons = append(reasons, oppdomain.Reason{Code: apperror.CodeDependencyCycle})
	}
	return reasons
}

func conflicts(candidate *oppdomain.Opportunity, selection []*oppdomain.Opportunity) bool {
	res := candidate.Resources()
	if len(res) == 0 {
		return false
	}
	for _, o := range selection {
		for _, a := range o.Resources() {
			for _, b := range res {
				if a == b {
					return true
				}
			}
		}
	}
	return false
}
