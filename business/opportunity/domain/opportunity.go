package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/mev-bundler/internal/apperror"
)

// Signals is the detection context used to assess risk factors.
type Signals struct {
	TradeSizeUSD       decimal.Decimal
	AvailableVolumeUSD decimal.Decimal
	SpreadPct          decimal.Decimal
	FeeRatePct         decimal.Decimal
	Tranche            decimal.Decimal
	HealthFactor       decimal.Decimal
	PositionID         string
	CollateralAsset    string
	CollateralValue    decimal.Decimal
}

// Opportunity is a detected, time-bounded chance to extract value.
//
// Gross profit and cost are only changed through SetGrossProfit and ApplyCost;
// either call invalidates the risk score until SetRisk runs again. Net profit
// is always derived.
type Opportunity struct {
	ID          string
	Kind        Kind
	Venues      []string
	Instruments []string
	Signals     Signals
	Requires    []string
	DetectedAt  time.Time
	ExpiresAt   time.Time

	gross      decimal.Decimal
	cost       CostEstimate
	riskScore  float64
	confidence float64
	factors    []RiskFactor
	scored     bool
	status     Status
	reason     *Reason
}

// New creates a Detected opportunity.
func New(id string, kind Kind, venues, instruments []string, gross decimal.Decimal, detectedAt time.Time, ttl time.Duration) *Opportunity {
	return &Opportunity{
		ID:          id,
		Kind:        kind,
		Venues:      venues,
		Instruments: instruments,
		DetectedAt:  detectedAt,
		ExpiresAt:   detectedAt.Add(ttl),
		gross:       gross,
		status:      StatusDetected,
	}
}

func (o *Opportunity) GrossProfit() decimal.Decimal { return o.gross }
func (o *Opportunity) Cost() CostEstimate           { return o.cost }

// NetProfit returns gross profit minus total cost.
func (o *Opportunity) NetProfit() decimal.Decimal {
	return o.gross.Sub(o.cost.Total())
}

// SetGrossProfit replaces the gross estimate and invalidates the risk score.
func (o *Opportunity) SetGrossProfit(g decimal.Decimal) {
	o.gross = g
	o.scored = false
}

// ApplyCost replaces the cost estimate and invalidates the risk score.
func (o *Opportunity) ApplyCost(c CostEstimate) {
	o.cost = c
	o.scored = false
}

// SetFactors records the assessed factors; it invalidates the score as well.
func (o *Opportunity) SetFactors(factors []RiskFactor) {
	o.factors = append([]RiskFactor(nil), factors...)
	o.scored = false
}

// Factors returns a copy of the risk factors.
func (o *Opportunity) Factors() []RiskFactor {
	return append([]RiskFactor(nil), o.factors...)
}

// SetRisk records the scorer's output.
func (o *Opportunity) SetRisk(score, confidence float64) {
	o.riskScore = ClampRisk(score)
	o.confidence = Clamp(confidence, 0, 1)
	o.scored = true
}

func (o *Opportunity) RiskScore() float64  { return o.riskScore }
func (o *Opportunity) Confidence() float64 { return o.confidence }

// NeedsScoring reports whether the risk score is missing or out of date.
func (o *Opportunity) NeedsScoring() bool { return !o.scored }

func (o *Opportunity) Status() Status { return o.status }

// Reason returns the cause of a Rejected or Expired status.
func (o *Opportunity) Reason() (Reason, bool) {
	if o.reason == nil {
		return Reason{}, false
	}
	return *o.reason, true
}

// Transition moves the opportunity to status to.
func (o *Opportunity) Transition(to Status) error {
	if !CanTransition(o.status, to) {
		return apperror.New(apperror.CodeInvalidStatusTransition,
			apperror.WithContext(fmt.Sprintf("%s: %s -> %s", o.ID, o.status, to)))
	}
	o.status = to
	return nil
}

// Reject moves the opportunity to Rejected with reason.
func (o *Opportunity) Reject(reason Reason) error {
	if err := o.Transition(StatusRejected); err != nil {
		return err
	}
	o.reason = &reason
	return nil
}

// Expire moves the opportunity to Expired.
func (o *Opportunity) Expire() error {
	if err := o.Transition(StatusExpired); err != nil {
		return err
	}
	o.reason = &Reason{Code: apperror.CodeExpired}
	return nil
}

// IsExpired reports whether now is at or past ExpiresAt.
func (o *Opportunity) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// PrimaryVenue is the first venue, used for history lookups.
func (o *Opportunity) PrimaryVenue() string {
	if len(o.Venues) == 0 {
		return ""
	}
	return o.Venues[0]
}

// Resources returns the exclusive resources the opportunity consumes.
// Two opportunities sharing a resource cannot be in the same bundle.
func (o *Opportunity) Resources() []string {
	switch o.Kind {
	case KindLiquidation:
		if o.Signals.PositionID != "" {
			return []string{"position:" + o.Signals.PositionID}
		}
	case KindArbitrage:
		if len(o.Venues) >= 2 && len(o.Instruments) > 0 {
			a, b := o.Venues[0], o.Venues[1]
			if b < a {
				a, b = b, a
			}
			return []string{"arb:" + o.Instruments[0] + ":" + a + ":" + b}
		}
	}
	return nil
}

// SortKey orders opportunities by kind, venues, instruments and position.
func (o *Opportunity) SortKey() string {
	return fmt.Sprintf("%d|%v|%v|%s", o.Kind.Rank(), o.Venues, o.Instruments, o.Signals.PositionID)
}

// Snapshot is an immutable copy of an opportunity for attribution.
type Snapshot struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Venues      []string        `json:"venues"`
	Instruments []string        `json:"instruments"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	Cost        decimal.Decimal `json:"cost"`
	NetProfit   decimal.Decimal `json:"net_profit"`
	RiskScore   float64         `json:"risk_score"`
	Confidence  float64         `json:"confidence"`
	Status      Status          `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	DetectedAt  time.Time       `json:"detected_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Snapshot copies the current state.
func (o *Opportunity) Snapshot() Snapshot {
	s := Snapshot{
		ID:          o.ID,
		Kind:        o.Kind,
		Venues:      append([]string(nil), o.Venues...),
		Instruments: append([]string(nil), o.Instruments...),
		GrossProfit: o.gross,
		Cost:        o.cost.Total(),
		NetProfit:   o.NetProfit(),
		RiskScore:   o.riskScore,
		Confidence:  o.confidence,
		Status:      o.status,
		DetectedAt:  o.DetectedAt,
		ExpiresAt:   o.ExpiresAt,
	}
	if o.reason != nil {
		s.Reason = o.reason.String()
	}
	return s
}
