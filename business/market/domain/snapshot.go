// Package domain contains the snapshot types consumed by detection.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/mev-bundler/internal/apperror"
)

// DefaultLendingVenue names the venue of a position when the feed omits it.
const DefaultLendingVenue = "lending"

// Pair is an instrument pair such as "SOL/USDC".
type Pair string

// NewPair normalizes base and quote symbols into a Pair.
func NewPair(base, quote string) Pair {
	return Pair(strings.ToUpper(base) + "/" + strings.ToUpper(quote))
}

// Base returns the base symbol.
func (p Pair) Base() string {
	base, _, _ := strings.Cut(string(p), "/")
	return base
}

// Quote returns the quote symbol.
func (p Pair) Quote() string {
	_, quote, _ := strings.Cut(string(p), "/")
	return quote
}

// Contains reports whether symbol is one side of the pair.
func (p Pair) Contains(symbol string) bool {
	s := strings.ToUpper(symbol)
	return p.Base() == s || p.Quote() == s
}

// Valid reports whether the pair has both sides.
func (p Pair) Valid() bool {
	return p.Base() != "" && p.Quote() != ""
}

func (p Pair) String() string { return string(p) }

// VenueQuote is a venue's price for an instrument pair.
// FeeRatePct is a fraction: 0.0025 means 0.25%.
type VenueQuote struct {
	Venue              string
	Pair               Pair
	Price              decimal.Decimal
	AvailableVolumeUSD decimal.Decimal
	FeeRatePct         decimal.Decimal
	ObservedAt         time.Time
}

// Validate rejects partial or nonsensical quotes with MALFORMED_INPUT.
func (q VenueQuote) Validate() error {
	switch {
	case strings.TrimSpace(q.Venue) == "":
		return apperror.Malformed("quote: empty venue")
	case !q.Pair.Valid():
		return apperror.Malformed(fmt.Sprintf("quote %s: invalid pair %q", q.Venue, q.Pair))
	case !q.Price.IsPositive():
		return apperror.Malformed(fmt.Sprintf("quote %s %s: non-positive price", q.Venue, q.Pair))
	case q.AvailableVolumeUSD.IsNegative():
		return apperror.Malformed(fmt.Sprintf("quote %s %s: negative volume", q.Venue, q.Pair))
	case q.FeeRatePct.IsNegative() || q.FeeRatePct.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return apperror.Malformed(fmt.Sprintf("quote %s %s: fee rate outside [0,1)", q.Venue, q.Pair))
	case q.ObservedAt.IsZero():
		return apperror.Malformed(fmt.Sprintf("quote %s %s: missing timestamp", q.Venue, q.Pair))
	}
	return nil
}

// PositionSnapshot is a leveraged position on a lending venue.
// LiquidationThresholdPct above 1 is read as a percentage (85 == 0.85).
type PositionSnapshot struct {
	PositionID              string
	Venue                   string
	CollateralValue         decimal.Decimal
	DebtValue               decimal.Decimal
	LiquidationThresholdPct decimal.Decimal
	Asset                   string
	ObservedAt              time.Time
}

// Threshold returns the liquidation threshold as a fraction.
func (p PositionSnapshot) Threshold() decimal.Decimal {
	if p.LiquidationThresholdPct.GreaterThan(decimal.NewFromInt(1)) {
		return p.LiquidationThresholdPct.Div(decimal.NewFromInt(100))
	}
	return p.LiquidationThresholdPct
}

// VenueOrDefault returns the lending venue, defaulting when unset.
func (p PositionSnapshot) VenueOrDefault() string {
	if p.Venue == "" {
		return DefaultLendingVenue
	}
	return p.Venue
}

// HealthFactor returns collateral × threshold / debt.
// A position without debt reports ok=false.
func (p PositionSnapshot) HealthFactor() (hf decimal.Decimal, ok bool) {
	if !p.DebtValue.IsPositive() {
		return decimal.Zero, false
	}
	return p.CollateralValue.Mul(p.Threshold()).Div(p.DebtValue), true
}

// Validate rejects partial or nonsensical positions with MALFORMED_INPUT.
func (p PositionSnapshot) Validate() error {
	switch {
	case strings.TrimSpace(p.PositionID) == "":
		return apperror.Malformed("position: empty id")
	case !p.CollateralValue.IsPositive():
		return apperror.Malformed(fmt.Sprintf("position %s: non-positive collateral", p.PositionID))
	case p.DebtValue.IsNegative():
		return apperror.Malformed(fmt.Sprintf("position %s: negative debt", p.PositionID))
	case !p.LiquidationThresholdPct.IsPositive() || p.LiquidationThresholdPct.GreaterThan(decimal.NewFromInt(100)):
		return apperror.Malformed(fmt.Sprintf("position %s: threshold outside (0,100]", p.PositionID))
	case strings.TrimSpace(p.Asset) == "":
		return apperror.Malformed(fmt.Sprintf("position %s: empty asset", p.PositionID))
	case p.ObservedAt.IsZero():
		return apperror.Malformed(fmt.Sprintf("position %s: missing timestamp", p.PositionID))
	}
	return nil
}

// Batch is a set of snapshots handed to one detector run.
type Batch struct {
	Quotes    []VenueQuote
	Positions []PositionSnapshot
}

// Len returns the number of snapshots in the batch.
func (b Batch) Len() int {
	return len(b.Quotes) + len(b.Positions)
}
