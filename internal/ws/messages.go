// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/evetabi/perpsim/internal/domain"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypePriceUpdate    MsgType = "price_update"
	MsgTypePositionOpened MsgType = "position_opened"
	MsgTypePositionClosed MsgType = "position_closed"
	MsgTypeAccountUpdate  MsgType = "account_update"
	MsgTypeError          MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// PriceUpdateMessage — pushed on every broadcast tick, one per market.
// ──────────────────────────────────────────────────────────────────────────────

// PriceUpdateMessage carries the latest price for one market and its move
// since the previous broadcast.
type PriceUpdateMessage struct {
	Type      MsgType         `json:"type"`
	Market    string          `json:"market"`
	Price     decimal.Decimal `json:"price"`
	Change    decimal.Decimal `json:"change"`     // price − previous broadcast price
	ChangePct decimal.Decimal `json:"change_pct"` // change / previous × 100
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Position lifecycle messages
// ──────────────────────────────────────────────────────────────────────────────

// PositionOpenedMessage notifies clients that a new position entered the book.
type PositionOpenedMessage struct {
	Type      MsgType                 `json:"type"`
	Position  domain.PositionResponse `json:"position"`
	Timestamp time.Time               `json:"timestamp"`
}

// PositionClosedMessage tells clients a position reached a terminal status,
// whether by manual close, take-profit, stop-loss, or liquidation.
type PositionClosedMessage struct {
	Type      MsgType                 `json:"type"`
	Position  domain.PositionResponse `json:"position"`
	Timestamp time.Time               `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// AccountUpdateMessage — pushed after each tick and after each command.
// ──────────────────────────────────────────────────────────────────────────────

// AccountUpdateMessage carries the derived account view.
type AccountUpdateMessage struct {
	Type          MsgType         `json:"type"`
	Balance       decimal.Decimal `json:"balance"`
	Equity        decimal.Decimal `json:"equity"`
	MarginInUse   decimal.Decimal `json:"margin_in_use"`
	OpenPositions int             `json:"open_positions"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
