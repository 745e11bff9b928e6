// Package scheduler runs the background loops that drive the simulator:
// the price tick loop that revalues the book, the WebSocket broadcast loop,
// and the periodic state snapshot loop.
package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/evetabi/perpsim/internal/domain"
	"github.com/evetabi/perpsim/internal/engine"
	"github.com/evetabi/perpsim/internal/price"
	"github.com/evetabi/perpsim/internal/ws"
	"github.com/shopspring/decimal"
)

// WsHub is the narrow broadcast surface the scheduler needs.
type WsHub interface {
	BroadcastPriceUpdate(msg ws.PriceUpdateMessage)
	BroadcastPositionClosed(msg ws.PositionClosedMessage)
	BroadcastAccountUpdate(msg ws.AccountUpdateMessage)
}

// SnapshotSaver persists the engine state.  May be nil (persistence disabled).
type SnapshotSaver interface {
	Save(ctx context.Context, state domain.EngineState) error
}

// Intervals configures the cadence of the three loops.
type Intervals struct {
	Tick      time.Duration
	Broadcast time.Duration
	Snapshot  time.Duration
}

// Scheduler owns the background goroutines.  Start launches them; they all
// stop when the supplied context is cancelled.
type Scheduler struct {
	engine    *engine.Engine
	feed      price.Feed
	hub       WsHub
	snapshots SnapshotSaver
	intervals Intervals
	logger    *slog.Logger

	// last broadcast price per symbol, for change computation.
	// Only the broadcast loop touches it.
	lastPrices map[string]decimal.Decimal
}

// New creates a Scheduler.  snapshots may be nil.
func New(eng *engine.Engine, feed price.Feed, hub WsHub, snapshots SnapshotSaver, intervals Intervals, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		engine:     eng,
		feed:       feed,
		hub:        hub,
		snapshots:  snapshots,
		intervals:  intervals,
		logger:     logger,
		lastPrices: make(map[string]decimal.Decimal),
	}
}

// Start launches the tick, broadcast, and snapshot loops.  The snapshot loop
// is skipped when no SnapshotSaver is configured.
func (s *Scheduler) Start(ctx context.Context) {
	go s.runLoop(ctx, "tick", s.intervals.Tick, s.tick)
	go s.runLoop(ctx, "broadcast", s.intervals.Broadcast, s.broadcastPrices)
	if s.snapshots != nil {
		go s.runLoop(ctx, "snapshot", s.intervals.Snapshot, s.saveSnapshot)
	}
	s.logger.Info("scheduler started",
		"tick_interval", s.intervals.Tick,
		"broadcast_interval", s.intervals.Broadcast,
		"snapshot_interval", s.intervals.Snapshot,
		"persistence", s.snapshots != nil)
}

// runLoop drives one named step on a fixed ticker until ctx is cancelled.
func (s *Scheduler) runLoop(ctx context.Context, name string, interval time.Duration, step func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler loop stopped", "loop", name)
			return
		case <-ticker.C:
			s.runStep(ctx, name, step)
		}
	}
}

// runStep executes one step with panic recovery so a single bad tick cannot
// kill the loop.
func (s *Scheduler) runStep(ctx context.Context, name string, step func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler step panicked",
				"loop", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	step(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Tick loop
// ──────────────────────────────────────────────────────────────────────────────

// tick refreshes the feed, revalues the whole book against the new snapshot,
// and pushes closure plus account events for anything that triggered.
func (s *Scheduler) tick(ctx context.Context) {
	s.feed.Refresh(ctx)

	prices := price.Snapshot(s.feed)
	if len(prices) == 0 {
		return
	}

	closed := s.engine.EvaluateTick(prices)
	for _, pos := range closed {
		s.hub.BroadcastPositionClosed(ws.PositionClosedMessage{
			Type:      ws.MsgTypePositionClosed,
			Position:  pos.ToResponse(),
			Timestamp: time.Now().UTC(),
		})
	}

	// The account view changes on every tick (unrealized PnL moved), not
	// only when something closed.
	snap := s.engine.Snapshot()
	s.hub.BroadcastAccountUpdate(ws.AccountUpdateMessage{
		Type:          ws.MsgTypeAccountUpdate,
		Balance:       snap.Balance,
		Equity:        snap.Equity,
		MarginInUse:   snap.MarginInUse,
		OpenPositions: len(snap.OpenPositions),
		Timestamp:     snap.Timestamp,
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcast loop
// ──────────────────────────────────────────────────────────────────────────────

// broadcastPrices pushes one price_update per symbol with the move since the
// previous broadcast.
func (s *Scheduler) broadcastPrices(_ context.Context) {
	now := time.Now().UTC()
	for _, sym := range s.feed.Symbols() {
		cur, ok := s.feed.Current(sym)
		if !ok {
			continue
		}

		change := decimal.Zero
		changePct := decimal.Zero
		if prev, seen := s.lastPrices[sym]; seen && !prev.IsZero() {
			change = cur.Sub(prev)
			changePct = change.Div(prev).Mul(decimal.NewFromInt(100))
		}
		s.lastPrices[sym] = cur

		s.hub.BroadcastPriceUpdate(ws.PriceUpdateMessage{
			Type:      ws.MsgTypePriceUpdate,
			Market:    sym,
			Price:     cur,
			Change:    change,
			ChangePct: changePct,
			Timestamp: now,
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Snapshot loop
// ──────────────────────────────────────────────────────────────────────────────

// saveSnapshot persists the current engine state.
func (s *Scheduler) saveSnapshot(ctx context.Context) {
	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.snapshots.Save(saveCtx, s.engine.State()); err != nil {
		s.logger.Error("engine snapshot save failed", "error", err)
	}
}
