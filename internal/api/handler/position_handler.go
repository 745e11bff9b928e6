package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/evetabi/perpsim/internal/domain"
	"github.com/evetabi/perpsim/internal/engine"
	"github.com/evetabi/perpsim/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PositionBroadcaster is the hub surface the position handler pushes
// lifecycle events through.
type PositionBroadcaster interface {
	BroadcastPositionOpened(msg ws.PositionOpenedMessage)
	BroadcastPositionClosed(msg ws.PositionClosedMessage)
	BroadcastAccountUpdate(msg ws.AccountUpdateMessage)
}

// PositionHandler serves open/close/list endpoints for the position book.
type PositionHandler struct {
	engine *engine.Engine
	hub    PositionBroadcaster // may be nil in tests
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(eng *engine.Engine, hub PositionBroadcaster) *PositionHandler {
	return &PositionHandler{engine: eng, hub: hub}
}

// openPositionBody is the JSON request shape for POST /api/positions.
// Decimal fields travel as strings so no precision is lost in transit.
type openPositionBody struct {
	Market     string `json:"market"      binding:"required"`
	Direction  string `json:"direction"   binding:"required"`
	RiskAmount string `json:"risk_amount" binding:"required"`
	RiskMode   string `json:"risk_mode"`
	Leverage   string `json:"leverage"`
	OrderType  string `json:"order_type"`
	LimitPrice string `json:"limit_price"`
	TakeProfit string `json:"take_profit"`
	StopLoss   string `json:"stop_loss"`
}

// Open godoc
// POST /api/positions [session]
// Body: {"market":"BTC-USD","direction":"LONG","risk_amount":"50",
//
//	"risk_mode":"balanced"} or explicit "leverage":"5", plus optional
//	"order_type":"limit","limit_price":"95000","take_profit","stop_loss".
func (h *PositionHandler) Open(c *gin.Context) {
	var body openPositionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	riskAmount, err := decimal.NewFromString(body.RiskAmount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_RISK_AMOUNT", "risk_amount must be a decimal string")
		return
	}

	req := domain.OpenPositionRequest{
		Market:     body.Market,
		Direction:  domain.Direction(body.Direction),
		RiskAmount: riskAmount,
		RiskMode:   body.RiskMode,
	}

	if body.Leverage != "" {
		lev, err := decimal.NewFromString(body.Leverage)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_LEVERAGE", "leverage must be a decimal string")
			return
		}
		req.Leverage = lev
	}

	req.Order = domain.OrderSpec{Type: domain.OrderMarket}
	if body.OrderType == string(domain.OrderLimit) {
		limit, err := decimal.NewFromString(body.LimitPrice)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_ORDER", "limit orders need a decimal limit_price")
			return
		}
		req.Order = domain.OrderSpec{Type: domain.OrderLimit, LimitPrice: &limit}
	}

	if body.TakeProfit != "" {
		tp, err := decimal.NewFromString(body.TakeProfit)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_TAKE_PROFIT", "take_profit must be a decimal string")
			return
		}
		req.TakeProfitPrice = &tp
	}
	if body.StopLoss != "" {
		sl, err := decimal.NewFromString(body.StopLoss)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_STOP_LOSS", "stop_loss must be a decimal string")
			return
		}
		req.StopLossPrice = &sl
	}

	pos, err := h.engine.OpenPosition(req)
	if err != nil {
		switch {
		case err == domain.ErrInsufficientBalance:
			respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_BALANCE", err.Error())
		case err == domain.ErrUnknownMarket:
			respondError(c, http.StatusNotFound, "ERR_UNKNOWN_MARKET", err.Error())
		case err == domain.ErrNoPriceAvailable:
			respondError(c, http.StatusConflict, "ERR_NO_PRICE", err.Error())
		case domain.IsRejection(err):
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not open position")
		}
		return
	}

	h.notifyOpened(*pos)
	respondSuccess(c, http.StatusCreated, pos.ToResponse())
}

// List godoc
// GET /api/positions [session]
func (h *PositionHandler) List(c *gin.Context) {
	snap := h.engine.Snapshot()
	respondList(c, snap.OpenPositions, len(snap.OpenPositions))
}

// ListClosed godoc
// GET /api/positions/closed [session]
func (h *PositionHandler) ListClosed(c *gin.Context) {
	closed := h.engine.ClosedPositions()
	respondList(c, closed, len(closed))
}

// Close godoc
// DELETE /api/positions/:id [session]
// Closing an already-settled or unknown position is an idempotent success.
func (h *PositionHandler) Close(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_POSITION_ID", "position id must be a positive integer")
		return
	}

	pos, ok := h.engine.ClosePosition(id)
	if !ok {
		respondSuccess(c, http.StatusOK, gin.H{"id": id, "closed": false})
		return
	}

	h.notifyClosed(*pos)
	respondSuccess(c, http.StatusOK, pos.ToResponse())
}

// CloseAll godoc
// DELETE /api/positions [session]
func (h *PositionHandler) CloseAll(c *gin.Context) {
	closed := h.engine.CloseAllPositions()
	for _, pos := range closed {
		h.notifyClosed(pos)
	}

	out := make([]domain.PositionResponse, 0, len(closed))
	for _, pos := range closed {
		out = append(out, pos.ToResponse())
	}
	respondList(c, out, len(out))
}

// ──────────────────────────────────────────────────────────────────────────────
// WS event helpers
// ──────────────────────────────────────────────────────────────────────────────

func (h *PositionHandler) notifyOpened(pos domain.Position) {
	if h.hub == nil {
		return
	}
	h.hub.BroadcastPositionOpened(ws.PositionOpenedMessage{
		Type:      ws.MsgTypePositionOpened,
		Position:  pos.ToResponse(),
		Timestamp: time.Now().UTC(),
	})
	h.notifyAccount()
}

func (h *PositionHandler) notifyClosed(pos domain.Position) {
	if h.hub == nil {
		return
	}
	h.hub.BroadcastPositionClosed(ws.PositionClosedMessage{
		Type:      ws.MsgTypePositionClosed,
		Position:  pos.ToResponse(),
		Timestamp: time.Now().UTC(),
	})
	h.notifyAccount()
}

func (h *PositionHandler) notifyAccount() {
	snap := h.engine.Snapshot()
	h.hub.BroadcastAccountUpdate(ws.AccountUpdateMessage{
		Type:          ws.MsgTypeAccountUpdate,
		Balance:       snap.Balance,
		Equity:        snap.Equity,
		MarginInUse:   snap.MarginInUse,
		OpenPositions: len(snap.OpenPositions),
		Timestamp:     snap.Timestamp,
	})
}
