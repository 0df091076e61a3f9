package app

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
)

var now = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

// candidate builds a scored arbitrage on its own pair so candidates never
// share an exclusive resource unless the test says so.
func candidate(id string, net string, risk float64) *oppdomain.Opportunity {
	o := oppdomain.New(id, oppdomain.KindArbitrage, []string{"orca", "raydium"},
		[]string{fmt.Sprintf("%s/USDC", id)}, decimal.RequireFromString(net), now, 3*time.Second)
	o.SetRisk(risk, 1)
	return o
}

type sumCoster struct{}

func (sumCoster) BundleCost(items []*oppdomain.Opportunity) oppdomain.CostEstimate {
	var total oppdomain.CostEstimate
	for _, o := range items {
		total = total.Add(o.Cost())
	}
	return total
}

func ids(items []*oppdomain.Opportunity) []string {
	out := make([]string, len(items))
	for i, o := range items {
		out[i] = o.ID
	}
	return out
}

// liquidation builds a scored liquidation of position detected at at.
func liquidation(id, position, net string, at time.Time) *oppdomain.Opportunity {
	o := oppdomain.New(id, oppdomain.KindLiquidation, []string{"lending"},
		[]string{"SOL"}, decimal.RequireFromString(net), at, 30*time.Second)
	o.Signals.PositionID = position
	o.SetRisk(3, 1)
	return o
}
