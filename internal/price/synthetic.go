package price

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/evetabi/perpsim/internal/config"
	"github.com/shopspring/decimal"
)

// syntheticStarts seeds the walk with a plausible price per base asset so a
// fresh demo session shows familiar magnitudes.  Unlisted assets start at 100.
var syntheticStarts = map[string]float64{
	"BTC": 95000,
	"ETH": 3500,
	"SOL": 200,
}

// SyntheticFeed is an offline price source: an independent random walk per
// configured symbol, advanced once per Refresh.  A fixed seed produces a
// reproducible path, which the demo mode and the tests both rely on.
type SyntheticFeed struct {
	symbols []string

	mu   sync.Mutex
	rng  *rand.Rand
	last map[string]decimal.Decimal
	hist map[string]*history
}

var _ Feed = (*SyntheticFeed)(nil)

// NewSyntheticFeed constructs a feed seeded from the configuration.
func NewSyntheticFeed(cfg *config.Config) *SyntheticFeed {
	f := &SyntheticFeed{
		symbols: append([]string(nil), cfg.Engine.Markets...),
		rng:     rand.New(rand.NewSource(cfg.Price.SyntheticSeed)),
		last:    make(map[string]decimal.Decimal),
		hist:    make(map[string]*history),
	}
	for _, sym := range f.symbols {
		f.hist[sym] = newHistory(cfg.Engine.HistoryDepth)
	}
	return f
}

// Symbols returns the configured market symbols.
func (f *SyntheticFeed) Symbols() []string {
	return append([]string(nil), f.symbols...)
}

// Current returns the latest synthesised price for the symbol.  Before the
// first Refresh no symbol has a price, mirroring a live feed at boot.
func (f *SyntheticFeed) Current(symbol string) (decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.last[symbol]
	return p, ok
}

// History returns the buffered points for the symbol, oldest first.
func (f *SyntheticFeed) History(symbol string) []Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hist[symbol]
	if !ok {
		return nil
	}
	return h.snapshot()
}

// Refresh advances every symbol's walk by one step of up to ±0.2%.
func (f *SyntheticFeed) Refresh(_ context.Context) {
	now := time.Now().UTC()
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, sym := range f.symbols {
		prev, ok := f.last[sym]
		if !ok {
			start, found := syntheticStarts[baseAsset(sym)]
			if !found {
				start = 100
			}
			prev = decimal.NewFromFloat(start)
		}
		step := (f.rng.Float64() - 0.5) * 0.004 // uniform in [-0.2%, +0.2%]
		next := prev.Mul(decimal.NewFromFloat(1 + step))
		f.last[sym] = next
		f.hist[sym].push(next, now)
	}
}
