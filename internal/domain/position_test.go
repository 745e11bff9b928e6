package domain_test

import (
	"testing"

	"github.com/evetabi/perpsim/internal/domain"
	"github.com/shopspring/decimal"
)

// tolerance for comparing computed decimals against hand-derived values.
var eps = decimal.NewFromFloat(0.001)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func decPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func almostEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(eps)
}

// TestLiquidationPriceFormula checks the fixed fractional distance 1/leverage
// from entry for both sides.
//
//	LONG  entry 95000, 5x:  95000 × (1 − 0.2) = 76000
//	SHORT entry 3500, 10x:  3500 × (1 + 0.1)  = 3850
func TestLiquidationPriceFormula(t *testing.T) {
	long := domain.LiquidationPriceFor(dec(95000), dec(5), domain.DirectionLong)
	if !almostEqual(long, dec(76000)) {
		t.Errorf("LONG liquidation = %s, want 76000", long)
	}

	short := domain.LiquidationPriceFor(dec(3500), dec(10), domain.DirectionShort)
	if !almostEqual(short, dec(3850)) {
		t.Errorf("SHORT liquidation = %s, want 3850", short)
	}
}

// TestLiquidationPriceIgnoresRiskAmount verifies the distance depends only
// on leverage: two positions with the same entry and leverage but very
// different risk amounts share one liquidation price.
func TestLiquidationPriceIgnoresRiskAmount(t *testing.T) {
	small := domain.Position{
		Market: "BTC-USD", Direction: domain.DirectionLong,
		EntryPrice: dec(95000), Leverage: dec(5),
		RiskAmount: dec(10), NotionalSize: dec(50),
		LiquidationPrice: domain.LiquidationPriceFor(dec(95000), dec(5), domain.DirectionLong),
	}
	big := small
	big.RiskAmount = dec(5000)
	big.NotionalSize = dec(25000)

	if !small.LiquidationPrice.Equal(big.LiquidationPrice) {
		t.Errorf("liquidation prices differ: %s vs %s", small.LiquidationPrice, big.LiquidationPrice)
	}

	// At the liquidation price both lose exactly their own risk amount.
	liq := small.LiquidationPrice
	if !almostEqual(small.PnLAt(liq), small.RiskAmount.Neg()) {
		t.Errorf("small pnl at liq = %s, want %s", small.PnLAt(liq), small.RiskAmount.Neg())
	}
	if !almostEqual(big.PnLAt(liq), big.RiskAmount.Neg()) {
		t.Errorf("big pnl at liq = %s, want %s", big.PnLAt(liq), big.RiskAmount.Neg())
	}
}

// TestPnLLongScenario walks a BTC LONG through the reference numbers.
//
//	entry 95000, risk 50, leverage 5x → notional 250, liquidation 76000
//	at 94000: ((94000−95000)/95000) × 250 ≈ −2.6316
func TestPnLLongScenario(t *testing.T) {
	p := domain.Position{
		Market:       "BTC-USD",
		Direction:    domain.DirectionLong,
		EntryPrice:   dec(95000),
		Leverage:     dec(5),
		RiskAmount:   dec(50),
		NotionalSize: dec(50).Mul(dec(5)),
		Status:       domain.StatusOpen,
	}

	if !p.NotionalSize.Equal(dec(250)) {
		t.Fatalf("notional = %s, want 250", p.NotionalSize)
	}

	liq := domain.LiquidationPriceFor(p.EntryPrice, p.Leverage, p.Direction)
	if !almostEqual(liq, dec(76000)) {
		t.Errorf("liquidation = %s, want 76000", liq)
	}

	pnl := p.PnLAt(dec(94000))
	if !almostEqual(pnl, dec(-2.6316)) {
		t.Errorf("pnl at 94000 = %s, want ≈ -2.6316", pnl)
	}

	// Gains are symmetric for the long side.
	up := p.PnLAt(dec(96000))
	if !almostEqual(up, dec(2.6316)) {
		t.Errorf("pnl at 96000 = %s, want ≈ 2.6316", up)
	}
}

// TestPnLShortScenario checks the short side with a stop-loss above entry.
//
//	ETH SHORT entry 3500, risk 50, leverage 10x → notional 500
//	at 3600: ((3600−3500)/3500) × 500 × (−1) ≈ −14.2857
func TestPnLShortScenario(t *testing.T) {
	p := domain.Position{
		Market:        "ETH-USD",
		Direction:     domain.DirectionShort,
		EntryPrice:    dec(3500),
		Leverage:      dec(10),
		RiskAmount:    dec(50),
		NotionalSize:  dec(500),
		StopLossPrice: decPtr(3600),
		Status:        domain.StatusOpen,
	}

	pnl := p.PnLAt(dec(3600))
	if !almostEqual(pnl, dec(-14.2857)) {
		t.Errorf("pnl at 3600 = %s, want ≈ -14.2857", pnl)
	}
	if !p.StopLossHit(dec(3600)) {
		t.Error("stop loss should fire at 3600 for a short")
	}
	if p.StopLossHit(dec(3599)) {
		t.Error("stop loss should not fire below 3600 for a short")
	}

	// A falling price is profit for the short.
	down := p.PnLAt(dec(3400))
	if !down.IsPositive() {
		t.Errorf("pnl at 3400 = %s, want positive", down)
	}
}

func TestDirectionMultiplier(t *testing.T) {
	if !domain.DirectionLong.Multiplier().Equal(decimal.NewFromInt(1)) {
		t.Error("LONG multiplier should be +1")
	}
	if !domain.DirectionShort.Multiplier().Equal(decimal.NewFromInt(-1)) {
		t.Error("SHORT multiplier should be -1")
	}
	if domain.Direction("SIDEWAYS").IsValid() {
		t.Error("unknown direction should be invalid")
	}
}

func TestTakeProfitPredicates(t *testing.T) {
	long := domain.Position{
		Direction:       domain.DirectionLong,
		EntryPrice:      dec(100),
		TakeProfitPrice: decPtr(110),
	}
	if long.TakeProfitHit(dec(109.99)) {
		t.Error("long TP should not fire below target")
	}
	if !long.TakeProfitHit(dec(110)) {
		t.Error("long TP should fire at target (>=)")
	}

	short := domain.Position{
		Direction:       domain.DirectionShort,
		EntryPrice:      dec(100),
		TakeProfitPrice: decPtr(90),
	}
	if !short.TakeProfitHit(dec(90)) {
		t.Error("short TP should fire at target (<=)")
	}
	if short.TakeProfitHit(dec(90.01)) {
		t.Error("short TP should not fire above target")
	}

	none := domain.Position{Direction: domain.DirectionLong, EntryPrice: dec(100)}
	if none.TakeProfitHit(dec(1e9)) || none.StopLossHit(dec(0.0001)) {
		t.Error("unset TP/SL must never fire")
	}
}

func TestOrderSpecValidate(t *testing.T) {
	cases := []struct {
		name    string
		spec    domain.OrderSpec
		wantErr bool
	}{
		{"market ok", domain.OrderSpec{Type: domain.OrderMarket}, false},
		{"market with limit price", domain.OrderSpec{Type: domain.OrderMarket, LimitPrice: decPtr(100)}, true},
		{"limit ok", domain.OrderSpec{Type: domain.OrderLimit, LimitPrice: decPtr(100)}, false},
		{"limit without price", domain.OrderSpec{Type: domain.OrderLimit}, true},
		{"limit with zero price", domain.OrderSpec{Type: domain.OrderLimit, LimitPrice: decPtr(0)}, true},
		{"unknown type", domain.OrderSpec{Type: domain.OrderType("stop")}, true},
	}
	for _, tc := range cases {
		err := tc.spec.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestOpenPositionRequestValidate(t *testing.T) {
	valid := domain.OpenPositionRequest{
		Market:     "BTC-USD",
		Direction:  domain.DirectionLong,
		RiskAmount: dec(50),
		RiskMode:   "balanced",
		Order:      domain.OrderSpec{Type: domain.OrderMarket},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	bad := valid
	bad.Direction = domain.Direction("UP")
	if err := bad.Validate(); err != domain.ErrInvalidDirection {
		t.Errorf("bad direction: got %v, want ErrInvalidDirection", err)
	}

	bad = valid
	bad.RiskAmount = dec(0)
	if err := bad.Validate(); err != domain.ErrInvalidRiskAmount {
		t.Errorf("zero risk: got %v, want ErrInvalidRiskAmount", err)
	}

	bad = valid
	bad.RiskMode = ""
	bad.Leverage = decimal.Zero
	if err := bad.Validate(); err != domain.ErrInvalidLeverage {
		t.Errorf("no mode and no leverage: got %v, want ErrInvalidLeverage", err)
	}
}

func TestRiskProfile(t *testing.T) {
	rp := domain.NewRiskProfile(map[string]float64{
		"conservative": 5,
		"balanced":     25,
		"aggressive":   100,
	}, 1, 50)

	lev, err := rp.LeverageFor("balanced")
	if err != nil {
		t.Fatalf("LeverageFor(balanced): %v", err)
	}
	if !lev.Equal(dec(25)) {
		t.Errorf("balanced leverage = %s, want 25", lev)
	}

	// Mode leverage above the max clamps down.
	lev, err = rp.LeverageFor("aggressive")
	if err != nil {
		t.Fatalf("LeverageFor(aggressive): %v", err)
	}
	if !lev.Equal(dec(50)) {
		t.Errorf("aggressive leverage = %s, want clamped 50", lev)
	}

	if _, err = rp.LeverageFor("yolo"); err != domain.ErrUnknownRiskMode {
		t.Errorf("unknown mode: got %v, want ErrUnknownRiskMode", err)
	}

	if got := rp.Clamp(dec(0.5)); !got.Equal(dec(1)) {
		t.Errorf("Clamp(0.5) = %s, want 1", got)
	}
	if got := rp.Clamp(dec(500)); !got.Equal(dec(50)) {
		t.Errorf("Clamp(500) = %s, want 50", got)
	}
	if got := rp.Clamp(dec(10)); !got.Equal(dec(10)) {
		t.Errorf("Clamp(10) = %s, want 10", got)
	}
}

func TestRejectionPredicate(t *testing.T) {
	for _, err := range []error{
		domain.ErrNoPriceAvailable,
		domain.ErrInsufficientBalance,
		domain.ErrUnknownMarket,
		domain.ErrInvalidOrderSpec,
	} {
		if !domain.IsRejection(err) {
			t.Errorf("IsRejection(%v) = false, want true", err)
		}
	}
	if domain.IsRejection(domain.ErrPositionNotFound) {
		t.Error("not-found should not count as a rejection")
	}
	if !domain.IsNotFound(domain.ErrPositionNotFound) {
		t.Error("IsNotFound(ErrPositionNotFound) = false")
	}
}
