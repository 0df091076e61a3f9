package domain

import "github.com/shopspring/decimal"

// CostEstimate is the execution cost of one opportunity or a bundle, in USD.
type CostEstimate struct {
	ComputeUnits uint64
	ComputeCost  decimal.Decimal // units × unit price
	BaseFee      decimal.Decimal
	PriorityFee  decimal.Decimal
}

// Total returns compute cost + base fee + priority fee.
func (c CostEstimate) Total() decimal.Decimal {
	return c.ComputeCost.Add(c.BaseFee).Add(c.PriorityFee)
}

// Add sums two estimates field by field.
func (c CostEstimate) Add(o CostEstimate) CostEstimate {
	return CostEstimate{
		ComputeUnits: c.ComputeUnits + o.ComputeUnits,
		ComputeCost:  c.ComputeCost.Add(o.ComputeCost),
		BaseFee:      c.BaseFee.Add(o.BaseFee),
		PriorityFee:  c.PriorityFee.Add(o.PriorityFee),
	}
}
