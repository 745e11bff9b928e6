package engine_test

import (
	"sync"
	"testing"

	"github.com/evetabi/perpsim/internal/domain"
)

// TestConcurrentCommands hammers one engine with parallel opens, closes,
// ticks, and snapshot reads.  Run with -race; the single engine mutex must
// serialise everything, and the final balance must reconcile exactly:
// with every position closed at an unchanged price, each open's margin came
// back in full.
func TestConcurrentCommands(t *testing.T) {
	const workers = 40

	feed := newStubFeed()
	feed.set("BTC-USD", 95000)
	feed.set("ETH-USD", 3500)
	eng := newTestEngine(feed, nil, 100000)

	var wg sync.WaitGroup
	ids := make(chan uint64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			market := "BTC-USD"
			if n%2 == 1 {
				market = "ETH-USD"
			}
			pos, err := eng.OpenPosition(marketOpen(market, domain.DirectionLong, 10, 5))
			if err != nil {
				t.Errorf("open: %v", err)
				return
			}
			ids <- pos.ID
		}(i)
	}

	// Interleave reads and ticks with the opens.
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = eng.Snapshot()
			tick(eng, map[string]float64{"BTC-USD": 95000, "ETH-USD": 3500})
		}()
	}
	wg.Wait()
	close(ids)

	// Close every opened position concurrently.
	for id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if _, ok := eng.ClosePosition(id); !ok {
				t.Errorf("close %d: not found", id)
			}
		}(id)
	}
	wg.Wait()

	snap := eng.Snapshot()
	if len(snap.OpenPositions) != 0 {
		t.Errorf("open positions = %d, want 0", len(snap.OpenPositions))
	}
	// Unchanged price: zero pnl, so the balance is back at its start.
	if !snap.Balance.Equal(dec(100000)) {
		t.Errorf("final balance = %s, want exactly 100000", snap.Balance)
	}
}

// TestConcurrentDoubleClose races N goroutines at closing the same position
// and expects exactly one winner.
func TestConcurrentDoubleClose(t *testing.T) {
	const racers = 20

	feed := newStubFeed()
	feed.set("BTC-USD", 95000)
	eng := newTestEngine(feed, nil, 10000)

	pos, err := eng.OpenPosition(marketOpen("BTC-USD", domain.DirectionLong, 50, 5))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := eng.ClosePosition(pos.ID); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("close succeeded %d times, want exactly 1", wins)
	}
	if !eng.Snapshot().Balance.Equal(dec(10000)) {
		t.Errorf("balance = %s, want 10000 (one full refund)", eng.Snapshot().Balance)
	}
}
