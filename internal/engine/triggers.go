package engine

import (
	"github.com/evetabi/perpsim/internal/domain"
	"github.com/shopspring/decimal"
)

// evaluate decides what happens to one open position at one price.  The
// order of checks is a contract:
//
//  1. take-profit
//  2. stop-loss (only if TP did not fire)
//  3. liquidation (only if neither fired)
//
// A TP or SL tighter than the liquidation distance therefore always wins,
// even when both conditions hold in the same tick.  Every settlement is
// bounded: no matter how far the price gapped past the trigger, the
// realized loss never exceeds the committed risk amount.
//
// Returns the resulting status (StatusOpen when nothing fired) and the PnL
// to carry: the freshly computed unrealized PnL, floored at −riskAmount on
// any terminal transition.
func evaluate(p *domain.Position, price decimal.Decimal) (domain.PositionStatus, decimal.Decimal) {
	pnl := p.PnLAt(price)

	if p.TakeProfitHit(price) {
		return domain.StatusClosedByTP, clampLoss(pnl, p.RiskAmount)
	}
	if p.StopLossHit(price) {
		return domain.StatusClosedBySL, clampLoss(pnl, p.RiskAmount)
	}
	if pnl.LessThanOrEqual(p.RiskAmount.Neg()) {
		return domain.StatusLiquidated, p.RiskAmount.Neg()
	}
	return domain.StatusOpen, pnl
}

// clampLoss bounds a PnL to no worse than −riskAmount.
func clampLoss(pnl, riskAmount decimal.Decimal) decimal.Decimal {
	if floor := riskAmount.Neg(); pnl.LessThan(floor) {
		return floor
	}
	return pnl
}

// causeFor maps a terminal trigger status to its settlement cause.
func causeFor(status domain.PositionStatus) domain.SettlementCause {
	switch status {
	case domain.StatusClosedByTP:
		return domain.CauseTakeProfit
	case domain.StatusClosedBySL:
		return domain.CauseStopLoss
	case domain.StatusLiquidated:
		return domain.CauseLiquidation
	default:
		return domain.CauseManualClose
	}
}
