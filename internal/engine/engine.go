// Package engine implements the position-and-ledger core: it turns risk
// decisions into tracked positions, re-evaluates every open position against
// new prices, and deterministically triggers take-profit, stop-loss, or
// liquidation, reconciling the account balance exactly once per event.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/evetabi/perpsim/internal/domain"
	"github.com/evetabi/perpsim/internal/price"
	"github.com/shopspring/decimal"
)

// JournalRecorder receives one audit record per ledger movement.  The engine
// never blocks on it; implementations are expected to hand off asynchronously.
type JournalRecorder interface {
	Record(entry domain.JournalEntry)
}

// Params carries the engine's injected configuration.
type Params struct {
	StartingBalance decimal.Decimal
	Markets         []string
	Risk            *domain.RiskProfile
	ClosedKeep      int // most-recent-N settled positions retained for display
}

// Engine owns the single demo account: the ledger balance and the open
// position set.  Every command and every tick runs under one mutex, so no
// observer ever sees a removed position with a not-yet-updated balance or
// vice versa.  All computation inside the lock is in-memory arithmetic.
type Engine struct {
	mu sync.Mutex

	feed    price.Feed
	risk    *domain.RiskProfile
	markets map[string]struct{}

	balance decimal.Decimal
	open    []*domain.Position
	nextID  uint64

	closed     []domain.Position // newest last, bounded by closedKeep
	closedKeep int

	journal JournalRecorder // may be nil (journalling disabled)
	logger  *slog.Logger
}

// New creates an Engine with an empty book and the configured starting balance.
func New(params Params, feed price.Feed, journal JournalRecorder, logger *slog.Logger) *Engine {
	markets := make(map[string]struct{}, len(params.Markets))
	for _, m := range params.Markets {
		markets[m] = struct{}{}
	}
	keep := params.ClosedKeep
	if keep < 1 {
		keep = 1
	}
	return &Engine{
		feed:       feed,
		risk:       params.Risk,
		markets:    markets,
		balance:    params.StartingBalance,
		nextID:     1,
		closedKeep: keep,
		journal:    journal,
		logger:     logger,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// OpenPosition
// ──────────────────────────────────────────────────────────────────────────────

// OpenPosition validates the request, determines the fill price, reserves the
// risk amount from the balance, and appends the new position to the open set —
// one atomic step.  Every precondition is checked before any mutation: a
// rejected open leaves the ledger and the position set untouched.
func (e *Engine) OpenPosition(req domain.OpenPositionRequest) (*domain.Position, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.markets[req.Market]; !ok {
		return nil, domain.ErrUnknownMarket
	}

	leverage, err := e.resolveLeverage(req)
	if err != nil {
		return nil, err
	}

	entry, err := e.entryPrice(req)
	if err != nil {
		return nil, err
	}

	// Margin-reserved policy: the committed risk amount must be coverable now.
	if e.balance.LessThan(req.RiskAmount) {
		return nil, domain.ErrInsufficientBalance
	}

	now := time.Now().UTC()
	pos := &domain.Position{
		ID:               e.nextID,
		Market:           req.Market,
		Direction:        req.Direction,
		EntryPrice:       entry,
		Leverage:         leverage,
		RiskAmount:       req.RiskAmount,
		NotionalSize:     req.RiskAmount.Mul(leverage),
		LiquidationPrice: domain.LiquidationPriceFor(entry, leverage, req.Direction),
		TakeProfitPrice:  req.TakeProfitPrice,
		StopLossPrice:    req.StopLossPrice,
		UnrealizedPnL:    decimal.Zero,
		Status:           domain.StatusOpen,
		OpenedAt:         now,
	}
	e.nextID++

	e.reserveMargin(pos, now)
	e.open = append(e.open, pos)

	e.logger.Info("position opened",
		"id", pos.ID, "market", pos.Market, "direction", pos.Direction,
		"entry", pos.EntryPrice, "leverage", pos.Leverage,
		"risk", pos.RiskAmount, "liquidation", pos.LiquidationPrice)

	cp := *pos
	return &cp, nil
}

// resolveLeverage applies the risk-mode table or the explicit override,
// clamped either way to the configured range.
func (e *Engine) resolveLeverage(req domain.OpenPositionRequest) (decimal.Decimal, error) {
	if req.RiskMode != "" {
		return e.risk.LeverageFor(req.RiskMode)
	}
	return e.risk.Clamp(req.Leverage), nil
}

// entryPrice determines the fill price for the order spec.  A market order
// needs a current feed price; a limit order fills immediately at the
// supplied price (synthetic fill, no resting book).
func (e *Engine) entryPrice(req domain.OpenPositionRequest) (decimal.Decimal, error) {
	switch req.Order.Type {
	case domain.OrderMarket:
		p, ok := e.feed.Current(req.Market)
		if !ok {
			return decimal.Zero, domain.ErrNoPriceAvailable
		}
		return p, nil
	case domain.OrderLimit:
		return *req.Order.LimitPrice, nil
	default:
		return decimal.Zero, domain.ErrInvalidOrderSpec
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// ClosePosition / CloseAllPositions
// ──────────────────────────────────────────────────────────────────────────────

// ClosePosition settles one open position at its current unrealized PnL and
// removes it from the open set atomically.  An unknown id is a deliberate
// no-op (returns false): closing twice has effect only the first time.
func (e *Engine) ClosePosition(id uint64) (*domain.Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, p := range e.open {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, false
	}
	pos := e.open[idx]

	// Refresh PnL against the latest price when one is available; otherwise
	// settle at the PnL from the last completed tick.
	pnl := pos.UnrealizedPnL
	var closePrice *decimal.Decimal
	if cur, ok := e.feed.Current(pos.Market); ok {
		pnl = clampLoss(pos.PnLAt(cur), pos.RiskAmount)
		closePrice = &cur
	}

	e.settle(pos, domain.StatusClosed, pnl, closePrice, domain.CauseManualClose, time.Now().UTC())
	e.open = append(e.open[:idx], e.open[idx+1:]...)
	e.retain(*pos)

	e.logger.Info("position closed", "id", pos.ID, "market", pos.Market, "pnl", pnl)

	cp := *pos
	return &cp, true
}

// CloseAllPositions settles every open position in one ledger update and
// clears the open set.  Settlement credits are summed before being applied,
// so the final balance is identical to closing each position individually in
// any order.
func (e *Engine) CloseAllPositions() []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.open) == 0 {
		return nil
	}

	now := time.Now().UTC()
	closed := make([]domain.Position, 0, len(e.open))
	for _, pos := range e.open {
		pnl := pos.UnrealizedPnL
		var closePrice *decimal.Decimal
		if cur, ok := e.feed.Current(pos.Market); ok {
			pnl = clampLoss(pos.PnLAt(cur), pos.RiskAmount)
			closePrice = &cur
		}
		e.settle(pos, domain.StatusClosed, pnl, closePrice, domain.CauseCloseAll, now)
		e.retain(*pos)
		closed = append(closed, *pos)
	}
	e.open = e.open[:0]

	e.logger.Info("all positions closed", "count", len(closed), "balance", e.balance)
	return closed
}

// ──────────────────────────────────────────────────────────────────────────────
// EvaluateTick
// ──────────────────────────────────────────────────────────────────────────────

// EvaluateTick runs the per-tick revaluation pass over the whole book for a
// new price snapshot.  For every open position, in fixed order: recompute
// PnL, then check take-profit, stop-loss, and liquidation.  Positions whose
// market has no price in the snapshot are skipped untouched.  All closures
// of the tick are settled together, then removed from the open set, before
// the lock is released.  Returns the positions that reached a terminal
// status in this tick.
func (e *Engine) EvaluateTick(prices map[string]decimal.Decimal) []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	var closed []domain.Position
	remaining := e.open[:0]

	for _, pos := range e.open {
		cur, ok := prices[pos.Market]
		if !ok {
			remaining = append(remaining, pos)
			continue
		}

		status, pnl := evaluate(pos, cur)
		if status == domain.StatusOpen {
			pos.UnrealizedPnL = pnl
			remaining = append(remaining, pos)
			continue
		}

		curCopy := cur
		e.settle(pos, status, pnl, &curCopy, causeFor(status), now)
		e.retain(*pos)
		closed = append(closed, *pos)

		e.logger.Info("position triggered",
			"id", pos.ID, "market", pos.Market, "status", status,
			"price", cur, "pnl", pnl)
	}
	e.open = remaining

	return closed
}

// ──────────────────────────────────────────────────────────────────────────────
// Read models
// ──────────────────────────────────────────────────────────────────────────────

// Snapshot returns the read-only account view: the stored balance plus the
// derived equity and margin-in-use, and a copy of every open position.
func (e *Engine) Snapshot() domain.AccountSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	equity := e.balance
	margin := decimal.Zero
	positions := make([]domain.PositionResponse, 0, len(e.open))
	for _, p := range e.open {
		equity = equity.Add(p.UnrealizedPnL)
		margin = margin.Add(p.RiskAmount)
		positions = append(positions, p.ToResponse())
	}

	return domain.AccountSnapshot{
		Balance:       e.balance,
		Equity:        equity,
		MarginInUse:   margin,
		OpenPositions: positions,
		Timestamp:     time.Now().UTC(),
	}
}

// ClosedPositions returns the retained settled positions, newest first.
func (e *Engine) ClosedPositions() []domain.PositionResponse {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.PositionResponse, 0, len(e.closed))
	for i := len(e.closed) - 1; i >= 0; i-- {
		out = append(out, e.closed[i].ToResponse())
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Persistence boundary
// ──────────────────────────────────────────────────────────────────────────────

// State returns the flat serializable engine state for the snapshotting
// collaborator.
func (e *Engine) State() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()

	positions := make([]domain.Position, 0, len(e.open))
	for _, p := range e.open {
		positions = append(positions, *p)
	}
	return domain.EngineState{
		Balance:        e.balance,
		NextPositionID: e.nextID,
		OpenPositions:  positions,
		SavedAt:        time.Now().UTC(),
	}
}

// Restore replaces the engine's state with a persisted snapshot.  Positions
// are reconstructed verbatim with their stored fields — liquidation prices
// are not recomputed.
func (e *Engine) Restore(state domain.EngineState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.balance = state.Balance
	e.nextID = state.NextPositionID
	e.open = e.open[:0]
	for i := range state.OpenPositions {
		p := state.OpenPositions[i]
		if !p.IsOpen() {
			continue
		}
		e.open = append(e.open, &p)
		if p.ID >= e.nextID {
			e.nextID = p.ID + 1
		}
	}

	e.logger.Info("engine state restored",
		"balance", e.balance, "open_positions", len(e.open))
}

// retain appends a settled position to the bounded display history.
func (e *Engine) retain(p domain.Position) {
	e.closed = append(e.closed, p)
	if len(e.closed) > e.closedKeep {
		copy(e.closed, e.closed[1:])
		e.closed = e.closed[:e.closedKeep]
	}
}
