package engine

import (
	"fmt"
	"time"

	"github.com/evetabi/perpsim/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger settlement, margin-reserved policy: opening deducts the risk
// amount from the balance immediately; closing credits back
// riskAmount + pnl.  Because a liquidation's pnl is exactly −riskAmount,
// the same credit formula yields zero there — the reserved margin is
// forfeited.  Both helpers assume the engine mutex is held.

// reserveMargin deducts the position's risk amount at open and journals the
// movement.
func (e *Engine) reserveMargin(pos *domain.Position, now time.Time) {
	before := e.balance
	e.balance = e.balance.Sub(pos.RiskAmount)

	e.record(domain.JournalEntry{
		ID:            uuid.New(),
		PositionID:    pos.ID,
		Market:        pos.Market,
		Cause:         domain.CauseOpen,
		Amount:        pos.RiskAmount.Neg(),
		BalanceBefore: before,
		BalanceAfter:  e.balance,
		Description:   fmt.Sprintf("Margin reserved: %s %s %sx", pos.Market, pos.Direction, pos.Leverage),
		CreatedAt:     now,
	})
}

// settle finalises a position: credits riskAmount + pnl to the balance,
// stamps the terminal fields, and journals the movement.  Balance credit
// and terminal transition happen together under the engine mutex; the
// caller removes the position from the open set before releasing it.
func (e *Engine) settle(
	pos *domain.Position,
	status domain.PositionStatus,
	pnl decimal.Decimal,
	closePrice *decimal.Decimal,
	cause domain.SettlementCause,
	now time.Time,
) {
	credit := pos.RiskAmount.Add(pnl)

	before := e.balance
	e.balance = e.balance.Add(credit)

	pos.Status = status
	pos.UnrealizedPnL = pnl
	pnlCopy := pnl
	pos.RealizedPnL = &pnlCopy
	pos.ClosePrice = closePrice
	closedAt := now
	pos.ClosedAt = &closedAt

	e.record(domain.JournalEntry{
		ID:            uuid.New(),
		PositionID:    pos.ID,
		Market:        pos.Market,
		Cause:         cause,
		Amount:        credit,
		BalanceBefore: before,
		BalanceAfter:  e.balance,
		PnL:           &pnlCopy,
		Description:   fmt.Sprintf("Settled %s: %s pnl %s", pos.Market, cause, pnl.StringFixed(4)),
		CreatedAt:     now,
	})
}

// record hands the entry to the journal recorder, if one is wired.
func (e *Engine) record(entry domain.JournalEntry) {
	if e.journal != nil {
		e.journal.Record(entry)
	}
}
