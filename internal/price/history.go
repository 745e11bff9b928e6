package price

import (
	"time"

	"github.com/shopspring/decimal"
)

// history is a bounded most-recent-N buffer of price points for one symbol.
// Not safe for concurrent use on its own; the owning feed guards access.
type history struct {
	points []Point
	cap    int
}

func newHistory(cap int) *history {
	if cap < 1 {
		cap = 1
	}
	return &history{cap: cap}
}

// push appends a point, evicting the oldest once the bound is reached.
func (h *history) push(price decimal.Decimal, at time.Time) {
	h.points = append(h.points, Point{Price: price, At: at})
	if len(h.points) > h.cap {
		// Shift instead of re-slicing so the backing array does not grow
		// without bound over a long-running process.
		copy(h.points, h.points[1:])
		h.points = h.points[:h.cap]
	}
}

// snapshot returns a copy of the buffered points, oldest first.
func (h *history) snapshot() []Point {
	out := make([]Point, len(h.points))
	copy(out, h.points)
	return out
}
