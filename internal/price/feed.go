// Package price provides the price feed consumed by the trading engine:
// a live multi-exchange weighted feed, a synthetic random-walk feed for
// offline runs, and a bounded per-symbol history buffer.
package price

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Point is one observed price for a symbol.
type Point struct {
	Price decimal.Decimal `json:"price"`
	At    time.Time       `json:"at"`
}

// Feed supplies current prices and bounded history per market symbol.
//
// Current returns (price, true) for the latest known good price and
// (Zero, false) while no price has ever been observed for the symbol —
// "no price yet" is a distinct state from a zero price.  Transient fetch
// failures are recovered inside the feed (the last known good price keeps
// being served); the engine never sees feed errors.
type Feed interface {
	// Symbols returns the configured instrument set.
	Symbols() []string

	// Current returns the latest known good price for the symbol.
	Current(symbol string) (decimal.Decimal, bool)

	// History returns up to the configured most-recent-N points for the
	// symbol, oldest first.
	History(symbol string) []Point

	// Refresh fetches (or synthesises) a new price for every symbol and
	// appends it to the history.  Failures are absorbed per symbol.
	Refresh(ctx context.Context)
}

// Snapshot materialises the feed's current prices as a map, skipping
// symbols that have no price yet.  This is the per-tick input handed to
// the engine's evaluation pass.
func Snapshot(f Feed) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(f.Symbols()))
	for _, sym := range f.Symbols() {
		if p, ok := f.Current(sym); ok {
			prices[sym] = p
		}
	}
	return prices
}
