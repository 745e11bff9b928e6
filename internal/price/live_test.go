package price_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evetabi/perpsim/internal/config"
	"github.com/evetabi/perpsim/internal/price"
	"github.com/shopspring/decimal"
)

var eps = decimal.NewFromFloat(0.0001)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// mockExchanges spins up one httptest server per exchange, each serving a
// fixed price in that exchange's JSON shape.  A negative price makes the
// server answer 500.
type mockExchanges struct {
	binance, bybit, okx *httptest.Server
}

func newMockExchanges(t *testing.T, binancePrice, bybitPrice, okxPrice float64) *mockExchanges {
	t.Helper()

	serve := func(price float64, body func(p float64) string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if price < 0 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, body(price))
		}))
	}

	m := &mockExchanges{
		binance: serve(binancePrice, func(p float64) string {
			return fmt.Sprintf(`{"symbol":"BTCUSDT","price":"%.2f"}`, p)
		}),
		bybit: serve(bybitPrice, func(p float64) string {
			return fmt.Sprintf(`{"result":{"list":[{"lastPrice":"%.2f"}]}}`, p)
		}),
		okx: serve(okxPrice, func(p float64) string {
			return fmt.Sprintf(`{"data":[{"last":"%.2f"}]}`, p)
		}),
	}
	t.Cleanup(func() {
		m.binance.Close()
		m.bybit.Close()
		m.okx.Close()
	})
	return m
}

func feedConfig(m *mockExchanges) *config.Config {
	return &config.Config{
		Price: config.PriceConfig{
			Mode:          "live",
			BinanceURL:    m.binance.URL,
			BybitURL:      m.bybit.URL,
			OKXURL:        m.okx.URL,
			FetchTimeout:  2 * time.Second,
			BinanceWeight: 50,
			BybitWeight:   30,
			OKXWeight:     20,
		},
		Engine: config.EngineConfig{
			Markets:      []string{"BTC-USD"},
			HistoryDepth: 10,
		},
	}
}

// TestWeightedAverage checks the blend across all three sources.
//
//	(100×50 + 102×30 + 104×20) / 100 = 101.4
func TestWeightedAverage(t *testing.T) {
	m := newMockExchanges(t, 100, 102, 104)
	feed := price.NewLiveFeed(feedConfig(m))

	feed.Refresh(context.Background())

	got, ok := feed.Current("BTC-USD")
	if !ok {
		t.Fatal("no price after refresh")
	}
	if got.Sub(dec(101.4)).Abs().GreaterThan(eps) {
		t.Errorf("weighted price = %s, want 101.4", got)
	}

	status := feed.ExchangeStatus()
	for name, healthy := range status {
		if !healthy {
			t.Errorf("exchange %s should be healthy", name)
		}
	}
}

// TestWeightRenormalization drops one source and expects the remaining
// weights to be re-normalised, not treated as a shortfall.
//
//	(100×50 + 102×30) / 80 = 100.75
func TestWeightRenormalization(t *testing.T) {
	m := newMockExchanges(t, 100, 102, -1) // okx answers 500
	feed := price.NewLiveFeed(feedConfig(m))

	feed.Refresh(context.Background())

	got, ok := feed.Current("BTC-USD")
	if !ok {
		t.Fatal("no price after refresh")
	}
	if got.Sub(dec(100.75)).Abs().GreaterThan(eps) {
		t.Errorf("renormalised price = %s, want 100.75", got)
	}
}

// TestLastKnownGoodFallback verifies a total outage keeps serving the
// previous price and appends nothing to the history.
func TestLastKnownGoodFallback(t *testing.T) {
	var failing atomic.Bool

	serve := func(body string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if failing.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, body)
		}))
	}
	m := &mockExchanges{
		binance: serve(`{"symbol":"BTCUSDT","price":"100.00"}`),
		bybit:   serve(`{"result":{"list":[{"lastPrice":"100.00"}]}}`),
		okx:     serve(`{"data":[{"last":"100.00"}]}`),
	}
	defer m.binance.Close()
	defer m.bybit.Close()
	defer m.okx.Close()

	feed := price.NewLiveFeed(feedConfig(m))

	feed.Refresh(context.Background())
	first, ok := feed.Current("BTC-USD")
	if !ok || !first.Equal(dec(100)) {
		t.Fatalf("first refresh: got (%s, %v), want (100, true)", first, ok)
	}

	failing.Store(true)
	feed.Refresh(context.Background())

	second, ok := feed.Current("BTC-USD")
	if !ok {
		t.Fatal("price vanished during outage")
	}
	if !second.Equal(first) {
		t.Errorf("outage price = %s, want last known good %s", second, first)
	}
	if n := len(feed.History("BTC-USD")); n != 1 {
		t.Errorf("history length = %d, want 1 (failed refresh appends nothing)", n)
	}
}

// TestNoPriceBeforeFirstFetch distinguishes "no price yet" from a zero price.
func TestNoPriceBeforeFirstFetch(t *testing.T) {
	m := newMockExchanges(t, -1, -1, -1)
	feed := price.NewLiveFeed(feedConfig(m))

	if _, ok := feed.Current("BTC-USD"); ok {
		t.Error("Current should report false before any successful fetch")
	}

	feed.Refresh(context.Background())

	if _, ok := feed.Current("BTC-USD"); ok {
		t.Error("Current should still report false after an all-failed refresh")
	}

	if prices := price.Snapshot(feed); len(prices) != 0 {
		t.Errorf("snapshot = %v, want empty", prices)
	}
}
