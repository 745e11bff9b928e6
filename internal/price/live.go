package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/evetabi/perpsim/internal/config"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Exchange definitions
// ──────────────────────────────────────────────────────────────────────────────

const (
	exchangeBinance = "binance"
	exchangeBybit   = "bybit"
	exchangeOKX     = "okx"
)

// exchangeDef describes a single price source.  fetch receives the base
// asset ("BTC" for the BTC-USD market) and returns its USDT spot price.
type exchangeDef struct {
	name   string
	weight decimal.Decimal // 0–100
	fetch  func(ctx context.Context, base string) (decimal.Decimal, error)
}

// baseAsset extracts the base asset from a market symbol ("BTC-USD" → "BTC").
func baseAsset(symbol string) string {
	if i := strings.IndexByte(symbol, '-'); i > 0 {
		return symbol[:i]
	}
	return symbol
}

// ──────────────────────────────────────────────────────────────────────────────
// LiveFeed
// ──────────────────────────────────────────────────────────────────────────────

// LiveFeed fetches spot prices for every configured market from multiple
// exchanges in parallel, weight-averages them, and keeps the last known
// good price per symbol.  A symbol whose every source fails on a refresh
// simply keeps serving its previous price; a symbol that has never been
// fetched successfully reports "no price yet".
type LiveFeed struct {
	client    *http.Client
	cfg       *config.PriceConfig
	symbols   []string
	exchanges []exchangeDef

	mu   sync.RWMutex
	last map[string]decimal.Decimal
	hist map[string]*history

	statusMu    sync.RWMutex
	lastSuccess map[string]time.Time
}

var _ Feed = (*LiveFeed)(nil)

// NewLiveFeed constructs a LiveFeed for the given markets.
func NewLiveFeed(cfg *config.Config) *LiveFeed {
	f := &LiveFeed{
		client:  &http.Client{Timeout: cfg.Price.FetchTimeout},
		cfg:     &cfg.Price,
		symbols: append([]string(nil), cfg.Engine.Markets...),
		last:    make(map[string]decimal.Decimal),
		hist:    make(map[string]*history),
		lastSuccess: map[string]time.Time{
			exchangeBinance: {},
			exchangeBybit:   {},
			exchangeOKX:     {},
		},
	}
	for _, sym := range f.symbols {
		f.hist[sym] = newHistory(cfg.Engine.HistoryDepth)
	}

	f.exchanges = []exchangeDef{
		{name: exchangeBinance, weight: decimal.NewFromInt(int64(cfg.Price.BinanceWeight)), fetch: f.fetchBinance},
		{name: exchangeBybit, weight: decimal.NewFromInt(int64(cfg.Price.BybitWeight)), fetch: f.fetchBybit},
		{name: exchangeOKX, weight: decimal.NewFromInt(int64(cfg.Price.OKXWeight)), fetch: f.fetchOKX},
	}
	return f
}

// ──────────────────────────────────────────────────────────────────────────────
// Feed interface
// ──────────────────────────────────────────────────────────────────────────────

// Symbols returns the configured market symbols.
func (f *LiveFeed) Symbols() []string {
	return append([]string(nil), f.symbols...)
}

// Current returns the last known good price for the symbol.
func (f *LiveFeed) Current(symbol string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.last[symbol]
	return p, ok
}

// History returns the buffered points for the symbol, oldest first.
func (f *LiveFeed) History(symbol string) []Point {
	f.mu.RLock()
	defer f.mu.RUnlock()
	h, ok := f.hist[symbol]
	if !ok {
		return nil
	}
	return h.snapshot()
}

// Refresh fetches every symbol once.  Per-symbol failures are absorbed:
// the previous price keeps being served and no history point is appended.
func (f *LiveFeed) Refresh(ctx context.Context) {
	for _, sym := range f.symbols {
		price, err := f.fetchWeighted(ctx, sym)
		if err != nil {
			continue // keep last known good
		}
		now := time.Now().UTC()
		f.mu.Lock()
		f.last[sym] = price
		f.hist[sym].push(price, now)
		f.mu.Unlock()
	}
}

// ExchangeStatus returns exchange name → whether it answered within the
// last 5 seconds.  Used by the health endpoint.
func (f *LiveFeed) ExchangeStatus() map[string]bool {
	threshold := 5 * time.Second
	f.statusMu.RLock()
	defer f.statusMu.RUnlock()

	status := make(map[string]bool, len(f.lastSuccess))
	for name, t := range f.lastSuccess {
		status[name] = !t.IsZero() && time.Since(t) < threshold
	}
	return status
}

// ──────────────────────────────────────────────────────────────────────────────
// Weighted fetch
// ──────────────────────────────────────────────────────────────────────────────

// fetchWeighted queries all exchanges in parallel for one symbol and
// weight-averages the sources that answered.  Weights are re-normalised
// over the available sources, so a missing exchange degrades gracefully.
// At least one successful source is required.
func (f *LiveFeed) fetchWeighted(ctx context.Context, symbol string) (decimal.Decimal, error) {
	base := baseAsset(symbol)

	type result struct {
		name  string
		price decimal.Decimal
		err   error
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.client.Timeout)
	defer cancel()

	resultCh := make(chan result, len(f.exchanges))
	for _, ex := range f.exchanges {
		go func(ex exchangeDef) {
			p, err := ex.fetch(fetchCtx, base)
			resultCh <- result{name: ex.name, price: p, err: err}
		}(ex)
	}

	rawResults := make(map[string]result, len(f.exchanges))
	for range f.exchanges {
		r := <-resultCh
		rawResults[r.name] = r
	}

	var sumWeighted, sumWeights decimal.Decimal
	now := time.Now()
	for _, ex := range f.exchanges {
		r := rawResults[ex.name]
		if r.err != nil || r.price.IsZero() {
			continue
		}
		sumWeighted = sumWeighted.Add(r.price.Mul(ex.weight))
		sumWeights = sumWeights.Add(ex.weight)

		f.statusMu.Lock()
		f.lastSuccess[ex.name] = now
		f.statusMu.Unlock()
	}

	if sumWeights.IsZero() {
		return decimal.Zero, fmt.Errorf("price: all exchange fetches failed for %s", symbol)
	}
	return sumWeighted.Div(sumWeights), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Exchange fetchers
// ──────────────────────────────────────────────────────────────────────────────

// fetchBinance fetches the spot price from the Binance REST API.
//
//	GET /api/v3/ticker/price?symbol=BTCUSDT
//	{"symbol":"BTCUSDT","price":"87350.00"}
func (f *LiveFeed) fetchBinance(ctx context.Context, base string) (decimal.Decimal, error) {
	url := f.cfg.BinanceURL + "/api/v3/ticker/price?symbol=" + base + "USDT"
	body, err := f.doGet(ctx, url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance: %w", err)
	}

	var resp struct {
		Price string `json:"price"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("binance parse: %w", err)
	}
	if resp.Price == "" {
		return decimal.Zero, fmt.Errorf("binance: empty price field")
	}
	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance decimal: %w", err)
	}
	return price, nil
}

// fetchBybit fetches the spot price from the Bybit REST API.
//
//	GET /v5/market/tickers?category=spot&symbol=BTCUSDT
//	{"result":{"list":[{"lastPrice":"87350.00",...}]}}
func (f *LiveFeed) fetchBybit(ctx context.Context, base string) (decimal.Decimal, error) {
	url := f.cfg.BybitURL + "/v5/market/tickers?category=spot&symbol=" + base + "USDT"
	body, err := f.doGet(ctx, url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bybit: %w", err)
	}

	var resp struct {
		Result struct {
			List []struct {
				LastPrice string `json:"lastPrice"`
			} `json:"list"`
		} `json:"result"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("bybit parse: %w", err)
	}
	if len(resp.Result.List) == 0 || resp.Result.List[0].LastPrice == "" {
		return decimal.Zero, fmt.Errorf("bybit: empty result list")
	}
	price, err := decimal.NewFromString(resp.Result.List[0].LastPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bybit decimal: %w", err)
	}
	return price, nil
}

// fetchOKX fetches the spot price from the OKX REST API.
//
//	GET /api/v5/market/ticker?instId=BTC-USDT
//	{"data":[{"last":"87350.00",...}]}
func (f *LiveFeed) fetchOKX(ctx context.Context, base string) (decimal.Decimal, error) {
	url := f.cfg.OKXURL + "/api/v5/market/ticker?instId=" + base + "-USDT"
	body, err := f.doGet(ctx, url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("okx: %w", err)
	}

	var resp struct {
		Data []struct {
			Last string `json:"last"`
		} `json:"data"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("okx parse: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].Last == "" {
		return decimal.Zero, fmt.Errorf("okx: empty data field")
	}
	price, err := decimal.NewFromString(resp.Data[0].Last)
	if err != nil {
		return decimal.Zero, fmt.Errorf("okx decimal: %w", err)
	}
	return price, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// HTTP helper
// ──────────────────────────────────────────────────────────────────────────────

// doGet performs an HTTP GET with the feed's client and returns the body
// bytes, or an error for any non-200 status code.
func (f *LiveFeed) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "evetabi-perpsim/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
