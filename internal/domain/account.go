package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// AccountSnapshot — read model served after each command and each tick
// ──────────────────────────────────────────────────────────────────────────────

// AccountSnapshot is a derived, read-only view of the trading account.
// Balance is the stored ledger scalar; Equity and MarginInUse are computed
// from the open set at snapshot time and never stored.
type AccountSnapshot struct {
	Balance       decimal.Decimal    `json:"balance"`
	Equity        decimal.Decimal    `json:"equity"`         // balance + Σ unrealized PnL
	MarginInUse   decimal.Decimal    `json:"margin_in_use"`  // Σ risk amount of open positions
	OpenPositions []PositionResponse `json:"open_positions"`
	Timestamp     time.Time          `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// EngineState — flat persistable form of the engine
// ──────────────────────────────────────────────────────────────────────────────

// EngineState is the serializable state of the trading engine: the ledger
// balance, the ID sequence, and every open position with its stored fields.
// Restoring reconstructs positions verbatim — liquidation prices are NOT
// recomputed from current prices.
type EngineState struct {
	Balance        decimal.Decimal `json:"balance"`
	NextPositionID uint64          `json:"next_position_id"`
	OpenPositions  []Position      `json:"open_positions"`
	SavedAt        time.Time       `json:"saved_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement journal
// ──────────────────────────────────────────────────────────────────────────────

// SettlementCause classifies a ledger movement.
type SettlementCause string

const (
	CauseOpen        SettlementCause = "open"         // margin reserved at position open
	CauseManualClose SettlementCause = "manual_close" // trader closed the position
	CauseCloseAll    SettlementCause = "close_all"    // bulk manual close
	CauseTakeProfit  SettlementCause = "take_profit"
	CauseStopLoss    SettlementCause = "stop_loss"
	CauseLiquidation SettlementCause = "liquidation"
)

// JournalEntry is one append-only audit record per ledger movement.
// Amount is the signed balance delta (negative for the margin reservation
// at open, positive for close credits; zero for a liquidation where the
// reserved margin is forfeited in full).
type JournalEntry struct {
	ID            uuid.UUID        `json:"id"             db:"id"`
	PositionID    uint64           `json:"position_id"    db:"position_id"`
	Market        string           `json:"market"         db:"market"`
	Cause         SettlementCause  `json:"cause"          db:"cause"`
	Amount        decimal.Decimal  `json:"amount"         db:"amount"`
	BalanceBefore decimal.Decimal  `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal  `json:"balance_after"  db:"balance_after"`
	PnL           *decimal.Decimal `json:"pnl,omitempty"  db:"pnl"`
	Description   string           `json:"description"    db:"description"`
	CreatedAt     time.Time        `json:"created_at"     db:"created_at"`
}
