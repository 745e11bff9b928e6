package handler

import (
	"net/http"

	"github.com/evetabi/perpsim/internal/domain"
	"github.com/evetabi/perpsim/internal/price"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MarketHandler serves the configured instrument set and price history.
type MarketHandler struct {
	feed price.Feed
	risk *domain.RiskProfile
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(feed price.Feed, risk *domain.RiskProfile) *MarketHandler {
	return &MarketHandler{feed: feed, risk: risk}
}

// marketView is the per-instrument summary returned by List.
type marketView struct {
	Symbol   string           `json:"symbol"`
	Price    *decimal.Decimal `json:"price"` // null while no price observed yet
	Leverage leverageView     `json:"leverage"`
}

type leverageView struct {
	Min   decimal.Decimal `json:"min"`
	Max   decimal.Decimal `json:"max"`
	Modes []string        `json:"modes"`
}

// List godoc
// GET /api/markets
// Returns every configured instrument with its latest price (null until the
// feed has produced one) and the leverage configuration.
func (h *MarketHandler) List(c *gin.Context) {
	min, max := h.risk.Range()
	lev := leverageView{Min: min, Max: max, Modes: h.risk.Modes()}

	markets := make([]marketView, 0, len(h.feed.Symbols()))
	for _, sym := range h.feed.Symbols() {
		view := marketView{Symbol: sym, Leverage: lev}
		if p, ok := h.feed.Current(sym); ok {
			view.Price = &p
		}
		markets = append(markets, view)
	}
	respondList(c, markets, len(markets))
}

// History godoc
// GET /api/markets/:symbol/history?limit=300
// Returns the retained price points for one instrument, oldest first.
func (h *MarketHandler) History(c *gin.Context) {
	symbol := c.Param("symbol")

	known := false
	for _, sym := range h.feed.Symbols() {
		if sym == symbol {
			known = true
			break
		}
	}
	if !known {
		respondError(c, http.StatusNotFound, "ERR_UNKNOWN_MARKET", domain.ErrUnknownMarket.Error())
		return
	}

	points := h.feed.History(symbol)
	if limit := parseLimit(c, len(points), 10000); limit < len(points) {
		points = points[len(points)-limit:]
	}
	respondList(c, points, len(points))
}
