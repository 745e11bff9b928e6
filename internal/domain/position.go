// Package domain defines the core business entities and types for the
// perpsim leveraged-position simulator.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// Direction is the side of a leveraged exposure.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// IsValid returns true if the direction is a recognised side.
func (d Direction) IsValid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Multiplier returns +1 for LONG and −1 for SHORT.  It is applied to
// price-difference-driven PnL so both sides share one formula.
func (d Direction) Multiplier() decimal.Decimal {
	if d == DirectionShort {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// PositionStatus represents the lifecycle state of a position.
// All states except StatusOpen are terminal and never re-entered.
type PositionStatus string

const (
	StatusOpen       PositionStatus = "open"
	StatusClosed     PositionStatus = "closed"       // closed manually by the trader
	StatusClosedByTP PositionStatus = "closed_by_tp" // take-profit trigger fired
	StatusClosedBySL PositionStatus = "closed_by_sl" // stop-loss trigger fired
	StatusLiquidated PositionStatus = "liquidated"   // loss reached the risk amount
)

// IsTerminal returns true for every status except StatusOpen.
func (s PositionStatus) IsTerminal() bool {
	return s != StatusOpen
}

// ──────────────────────────────────────────────────────────────────────────────
// Position
// ──────────────────────────────────────────────────────────────────────────────

// Position is one leveraged exposure on a single market.
//
// NotionalSize = RiskAmount × Leverage holds for the lifetime of the
// position, and LiquidationPrice is computed once at open and never
// recalculated.  UnrealizedPnL is the only mutable field while the
// position is open; the Closed* fields are filled exactly once on the
// transition to a terminal status.
type Position struct {
	ID               uint64           `json:"id"                db:"id"`
	Market           string           `json:"market"            db:"market"`
	Direction        Direction        `json:"direction"         db:"direction"`
	EntryPrice       decimal.Decimal  `json:"entry_price"       db:"entry_price"`
	Leverage         decimal.Decimal  `json:"leverage"          db:"leverage"`
	RiskAmount       decimal.Decimal  `json:"risk_amount"       db:"risk_amount"`
	NotionalSize     decimal.Decimal  `json:"notional_size"     db:"notional_size"`
	LiquidationPrice decimal.Decimal  `json:"liquidation_price" db:"liquidation_price"`
	TakeProfitPrice  *decimal.Decimal `json:"take_profit_price" db:"take_profit_price"`
	StopLossPrice    *decimal.Decimal `json:"stop_loss_price"   db:"stop_loss_price"`
	UnrealizedPnL    decimal.Decimal  `json:"unrealized_pnl"    db:"unrealized_pnl"`
	Status           PositionStatus   `json:"status"            db:"status"`
	OpenedAt         time.Time        `json:"opened_at"         db:"opened_at"`
	ClosedAt         *time.Time       `json:"closed_at,omitempty"  db:"closed_at"`
	ClosePrice       *decimal.Decimal `json:"close_price,omitempty" db:"close_price"`
	RealizedPnL      *decimal.Decimal `json:"realized_pnl,omitempty" db:"realized_pnl"`
}

// IsOpen returns true while the position participates in tick evaluation.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// PnLAt computes the unrealized PnL of the position at the given price:
//
//	pnl = ((price − entry) / entry) × notionalSize × directionMultiplier
//
// The result is NOT clamped; the liquidation clamp is applied by the
// trigger evaluation, not here.
func (p *Position) PnLAt(price decimal.Decimal) decimal.Decimal {
	move := price.Sub(p.EntryPrice).Div(p.EntryPrice)
	return move.Mul(p.NotionalSize).Mul(p.Direction.Multiplier())
}

// TakeProfitHit reports whether the take-profit trigger condition holds at
// the given price.  Always false when no take-profit is set.
func (p *Position) TakeProfitHit(price decimal.Decimal) bool {
	if p.TakeProfitPrice == nil {
		return false
	}
	if p.Direction == DirectionLong {
		return price.GreaterThanOrEqual(*p.TakeProfitPrice)
	}
	return price.LessThanOrEqual(*p.TakeProfitPrice)
}

// StopLossHit reports whether the stop-loss trigger condition holds at the
// given price.  Always false when no stop-loss is set.
func (p *Position) StopLossHit(price decimal.Decimal) bool {
	if p.StopLossPrice == nil {
		return false
	}
	if p.Direction == DirectionLong {
		return price.LessThanOrEqual(*p.StopLossPrice)
	}
	return price.GreaterThanOrEqual(*p.StopLossPrice)
}

// ──────────────────────────────────────────────────────────────────────────────
// Derivations
// ──────────────────────────────────────────────────────────────────────────────

// LiquidationPriceFor derives the price at which the unrealized loss equals
// exactly the risk amount.  Solving pnl = −riskAmount with
// notional = riskAmount × leverage gives a uniform fractional distance of
// 1/leverage from entry:
//
//	LONG:  entry × (1 − 1/leverage)
//	SHORT: entry × (1 + 1/leverage)
//
// The distance depends only on leverage, never on the risk amount.
func LiquidationPriceFor(entry, leverage decimal.Decimal, dir Direction) decimal.Decimal {
	one := decimal.NewFromInt(1)
	dist := one.Div(leverage)
	if dir == DirectionLong {
		return entry.Mul(one.Sub(dist))
	}
	return entry.Mul(one.Add(dist))
}

// ──────────────────────────────────────────────────────────────────────────────
// PositionResponse — API-safe view
// ──────────────────────────────────────────────────────────────────────────────

// PositionResponse is the JSON view served to clients.  Identical shape to
// Position today; declared separately so the wire format can diverge from
// the engine's internal representation without breaking clients.
type PositionResponse struct {
	ID               uint64           `json:"id"`
	Market           string           `json:"market"`
	Direction        Direction        `json:"direction"`
	EntryPrice       decimal.Decimal  `json:"entry_price"`
	Leverage         decimal.Decimal  `json:"leverage"`
	RiskAmount       decimal.Decimal  `json:"risk_amount"`
	NotionalSize     decimal.Decimal  `json:"notional_size"`
	LiquidationPrice decimal.Decimal  `json:"liquidation_price"`
	TakeProfitPrice  *decimal.Decimal `json:"take_profit_price,omitempty"`
	StopLossPrice    *decimal.Decimal `json:"stop_loss_price,omitempty"`
	UnrealizedPnL    decimal.Decimal  `json:"unrealized_pnl"`
	Status           PositionStatus   `json:"status"`
	OpenedAt         time.Time        `json:"opened_at"`
	ClosedAt         *time.Time       `json:"closed_at,omitempty"`
	ClosePrice       *decimal.Decimal `json:"close_price,omitempty"`
	RealizedPnL      *decimal.Decimal `json:"realized_pnl,omitempty"`
}

// ToResponse converts a Position to its API response form.
func (p *Position) ToResponse() PositionResponse {
	return PositionResponse{
		ID:               p.ID,
		Market:           p.Market,
		Direction:        p.Direction,
		EntryPrice:       p.EntryPrice,
		Leverage:         p.Leverage,
		RiskAmount:       p.RiskAmount,
		NotionalSize:     p.NotionalSize,
		LiquidationPrice: p.LiquidationPrice,
		TakeProfitPrice:  p.TakeProfitPrice,
		StopLossPrice:    p.StopLossPrice,
		UnrealizedPnL:    p.UnrealizedPnL,
		Status:           p.Status,
		OpenedAt:         p.OpenedAt,
		ClosedAt:         p.ClosedAt,
		ClosePrice:       p.ClosePrice,
		RealizedPnL:      p.RealizedPnL,
	}
}
