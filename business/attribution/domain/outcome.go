package domain

import (
	"time"

	"github.com/shopspring/decimal"

	oppdomain "github.com/fd1az/mev-bundler/business/opportunity/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
)

// Outcome is the execution result of one opportunity, reported by the
// execution layer.
type Outcome struct {
	OpportunityID  string          `json:"opportunity_id"`
	BundleID       string          `json:"bundle_id,omitempty"`
	Kind           oppdomain.Kind  `json:"kind"`
	Venue          string          `json:"venue"`
	ExpectedProfit decimal.Decimal `json:"expected_profit"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
	Success        bool            `json:"success"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

// Key is the history key of the outcome.
func (o Outcome) Key() string {
	return Key(o.Kind, o.Venue)
}

// Validate rejects outcomes that cannot be attributed.
func (o Outcome) Validate() error {
	switch {
	case o.OpportunityID == "":
		return apperror.Malformed("outcome: empty opportunity id")
	case o.Kind == "":
		return apperror.Malformed("outcome " + o.OpportunityID + ": empty kind")
	case o.Venue == "":
		return apperror.Malformed("outcome " + o.OpportunityID + ": empty venue")
	case o.RecordedAt.IsZero():
		return apperror.Malformed("outcome " + o.OpportunityID + ": missing timestamp")
	}
	return nil
}
