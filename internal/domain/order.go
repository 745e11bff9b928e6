package domain

import (
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// OrderSpec — discriminated market/limit order configuration
// ──────────────────────────────────────────────────────────────────────────────

// OrderType discriminates how a position's entry price is determined.
type OrderType string

const (
	// OrderMarket fills at the feed's current price for the market.
	OrderMarket OrderType = "market"
	// OrderLimit fills immediately at the supplied limit price (synthetic
	// instant fill; there is no resting order book).
	OrderLimit OrderType = "limit"
)

// OrderSpec carries the entry-price branch of an open request.  Consumers
// must switch on Type exhaustively; Validate rejects any other value so the
// branching stays statically checked at the edge.
type OrderSpec struct {
	Type       OrderType        `json:"type"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
}

// Validate checks the spec's internal consistency.
func (o OrderSpec) Validate() error {
	switch o.Type {
	case OrderMarket:
		if o.LimitPrice != nil {
			return ErrInvalidOrderSpec
		}
		return nil
	case OrderLimit:
		if o.LimitPrice == nil || !o.LimitPrice.IsPositive() {
			return ErrInvalidOrderSpec
		}
		return nil
	default:
		return ErrInvalidOrderSpec
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// OpenPositionRequest — value object consumed by the engine
// ──────────────────────────────────────────────────────────────────────────────

// OpenPositionRequest carries the validated inputs for opening a position.
// Exactly one of RiskMode or Leverage selects the multiplier: a non-empty
// RiskMode is resolved through the risk profile table, otherwise Leverage
// is used as an explicit override.  Either way the result is clamped to the
// configured leverage range.
type OpenPositionRequest struct {
	Market          string
	Direction       Direction
	RiskAmount      decimal.Decimal
	RiskMode        string
	Leverage        decimal.Decimal
	Order           OrderSpec
	TakeProfitPrice *decimal.Decimal
	StopLossPrice   *decimal.Decimal
}

// Validate performs the pure checks that need no engine state.
func (r OpenPositionRequest) Validate() error {
	if !r.Direction.IsValid() {
		return ErrInvalidDirection
	}
	if !r.RiskAmount.IsPositive() {
		return ErrInvalidRiskAmount
	}
	if r.RiskMode == "" && !r.Leverage.IsPositive() {
		return ErrInvalidLeverage
	}
	return r.Order.Validate()
}
