package price_test

import (
	"context"
	"testing"

	"github.com/evetabi/perpsim/internal/config"
	"github.com/evetabi/perpsim/internal/price"
)

func syntheticConfig(seed int64, historyDepth int) *config.Config {
	return &config.Config{
		Price: config.PriceConfig{
			Mode:          "synthetic",
			SyntheticSeed: seed,
		},
		Engine: config.EngineConfig{
			Markets:      []string{"BTC-USD", "ETH-USD"},
			HistoryDepth: historyDepth,
		},
	}
}

// TestSyntheticDeterminism: two feeds with the same seed walk identical
// paths; a different seed diverges.
func TestSyntheticDeterminism(t *testing.T) {
	ctx := context.Background()

	a := price.NewSyntheticFeed(syntheticConfig(42, 50))
	b := price.NewSyntheticFeed(syntheticConfig(42, 50))
	c := price.NewSyntheticFeed(syntheticConfig(7, 50))

	for i := 0; i < 25; i++ {
		a.Refresh(ctx)
		b.Refresh(ctx)
		c.Refresh(ctx)
	}

	pa, okA := a.Current("BTC-USD")
	pb, okB := b.Current("BTC-USD")
	if !okA || !okB {
		t.Fatal("both feeds should have prices after refreshing")
	}
	if !pa.Equal(pb) {
		t.Errorf("same seed diverged: %s vs %s", pa, pb)
	}

	pc, _ := c.Current("BTC-USD")
	if pa.Equal(pc) {
		t.Errorf("different seeds produced the same path: %s", pa)
	}
}

func TestSyntheticNoPriceBeforeRefresh(t *testing.T) {
	feed := price.NewSyntheticFeed(syntheticConfig(1, 50))
	if _, ok := feed.Current("BTC-USD"); ok {
		t.Error("Current should report false before the first Refresh")
	}

	feed.Refresh(context.Background())
	p, ok := feed.Current("BTC-USD")
	if !ok {
		t.Fatal("no price after first refresh")
	}
	if !p.IsPositive() {
		t.Errorf("synthetic price = %s, want positive", p)
	}
}

// TestSyntheticStepBound: every step stays within ±0.2% of the previous
// price.
func TestSyntheticStepBound(t *testing.T) {
	ctx := context.Background()
	feed := price.NewSyntheticFeed(syntheticConfig(99, 500))

	for i := 0; i < 200; i++ {
		feed.Refresh(ctx)
	}

	points := feed.History("BTC-USD")
	if len(points) != 200 {
		t.Fatalf("history length = %d, want 200", len(points))
	}
	maxStep := dec(0.002)
	for i := 1; i < len(points); i++ {
		move := points[i].Price.Sub(points[i-1].Price).Div(points[i-1].Price).Abs()
		if move.GreaterThan(maxStep.Add(eps)) {
			t.Fatalf("step %d moved %s, beyond the 0.2%% bound", i, move)
		}
	}
}

// TestHistoryBound: the per-symbol buffer keeps only the most recent N
// points, oldest evicted first.
func TestHistoryBound(t *testing.T) {
	ctx := context.Background()
	feed := price.NewSyntheticFeed(syntheticConfig(3, 5))

	for i := 0; i < 12; i++ {
		feed.Refresh(ctx)
	}

	points := feed.History("BTC-USD")
	if len(points) != 5 {
		t.Fatalf("history length = %d, want bounded 5", len(points))
	}

	// The newest point must match the current price.
	cur, _ := feed.Current("BTC-USD")
	if !points[len(points)-1].Price.Equal(cur) {
		t.Errorf("newest history point %s != current %s", points[len(points)-1].Price, cur)
	}

	// Oldest first: timestamps never decrease.
	for i := 1; i < len(points); i++ {
		if points[i].At.Before(points[i-1].At) {
			t.Fatal("history points out of order")
		}
	}
}

func TestHistoryUnknownSymbol(t *testing.T) {
	feed := price.NewSyntheticFeed(syntheticConfig(1, 5))
	if pts := feed.History("DOGE-USD"); pts != nil {
		t.Errorf("unknown symbol history = %v, want nil", pts)
	}
}
