package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/mev-bundler/internal/apperror"
)

// EventType discriminates the wire envelope.
type EventType string

const (
	EventQuote    EventType = "quote"
	EventPosition EventType = "position"
)

// Event carries exactly one snapshot.
type Event struct {
	Quote    *VenueQuote
	Position *PositionSnapshot
}

// ObservedAt returns the snapshot timestamp.
func (e Event) ObservedAt() time.Time {
	if e.Quote != nil {
		return e.Quote.ObservedAt
	}
	if e.Position != nil {
		return e.Position.ObservedAt
	}
	return time.Time{}
}

// envelope is the JSON shape shared by the websocket feed and replay files:
//
//	{"type":"quote","venue":"orca","pair":"SOL/USDC","price":"100.5","volume_usd":"10000","fee_rate":"0.003","observed_at":"..."}
//	{"type":"position","position_id":"p1","venue":"solend","collateral":"1000","debt":"900","threshold":"0.85","asset":"SOL","observed_at":"..."}
type envelope struct {
	Type       EventType       `json:"type"`
	Venue      string          `json:"venue,omitempty"`
	Pair       string          `json:"pair,omitempty"`
	Price      decimal.Decimal `json:"price"`
	VolumeUSD  decimal.Decimal `json:"volume_usd"`
	FeeRate    decimal.Decimal `json:"fee_rate"`
	PositionID string          `json:"position_id,omitempty"`
	Collateral decimal.Decimal `json:"collateral"`
	Debt       decimal.Decimal `json:"debt"`
	Threshold  decimal.Decimal `json:"threshold"`
	Asset      string          `json:"asset,omitempty"`
	ObservedAt time.Time       `json:"observed_at"`
}

// DecodeEvent parses one wire message. Structural problems return
// MALFORMED_INPUT; field validation is left to the detector.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, apperror.New(apperror.CodeMalformedInput,
			apperror.WithCause(err),
			apperror.WithContext("decode event"))
	}

	switch env.Type {
	case EventQuote:
		return Event{Quote: &VenueQuote{
			Venue:              env.Venue,
			Pair:               Pair(env.Pair),
			Price:              env.Price,
			AvailableVolumeUSD: env.VolumeUSD,
			FeeRatePct:         env.FeeRate,
			ObservedAt:         env.ObservedAt,
		}}, nil
	case EventPosition:
		return Event{Position: &PositionSnapshot{
			PositionID:              env.PositionID,
			Venue:                   env.Venue,
			CollateralValue:         env.Collateral,
			DebtValue:               env.Debt,
			LiquidationThresholdPct: env.Threshold,
			Asset:                   env.Asset,
			ObservedAt:              env.ObservedAt,
		}}, nil
	default:
		return Event{}, apperror.Malformed(fmt.Sprintf("unknown event type %q", env.Type))
	}
}

// EncodeEvent renders e in the wire format.
func EncodeEvent(e Event) ([]byte, error) {
	var env envelope
	switch {
	case e.Quote != nil:
		q := e.Quote
		env = envelope{
			Type:       EventQuote,
			Venue:      q.Venue,
			Pair:       string(q.Pair),
			Price:      q.Price,
			VolumeUSD:  q.AvailableVolumeUSD,
			FeeRate:    q.FeeRatePct,
			ObservedAt: q.ObservedAt,
		}
	case e.Position != nil:
		p := e.Position
		env = envelope{
			Type:       EventPosition,
			Venue:      p.Venue,
			PositionID: p.PositionID,
			Collateral: p.CollateralValue,
			Debt:       p.DebtValue,
			Threshold:  p.LiquidationThresholdPct,
			Asset:      p.Asset,
			ObservedAt: p.ObservedAt,
		}
	default:
		return nil, apperror.Malformed("empty event")
	}
	return json.Marshal(env)
}
