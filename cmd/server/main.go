// Package main is the entry point for the evetabi perpetual-futures demo
// simulator.  It wires the price feed, the trading engine, persistence, the
// WebSocket hub and the background scheduler, then serves the HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/evetabi/perpsim/internal/api"
	"github.com/evetabi/perpsim/internal/config"
	"github.com/evetabi/perpsim/internal/domain"
	"github.com/evetabi/perpsim/internal/engine"
	"github.com/evetabi/perpsim/internal/price"
	"github.com/evetabi/perpsim/internal/repository"
	"github.com/evetabi/perpsim/internal/scheduler"
	"github.com/evetabi/perpsim/internal/ws"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	_ = godotenv.Load() // best effort; env vars win in any deployment

	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting perpsim server",
		"env", cfg.Server.Env, "port", cfg.Server.Port,
		"feed_mode", cfg.Price.Mode, "persistence", cfg.DB.Enabled())

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Database (optional) ────────────────────────────────────────────────
	var (
		db           *sqlx.DB
		snapshotRepo *repository.SnapshotRepository
		journalRepo  *repository.JournalRepository
		recorder     engine.JournalRecorder
	)
	if cfg.DB.Enabled() {
		var err error
		db, err = repository.Connect(cfg.DB)
		if err != nil {
			logger.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		logger.Info("database connected")

		if err = runMigrations(db, "migrations"); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")

		snapshotRepo = repository.NewSnapshotRepository(db)
		journalRepo = repository.NewJournalRepository(db)
		recorder = repository.NewAsyncRecorder(ctx, journalRepo, logger)
	} else {
		logger.Warn("no DATABASE_DSN configured, running in-memory only")
	}

	// ── 4. Price feed ─────────────────────────────────────────────────────────
	var feed price.Feed
	if cfg.Price.Mode == "synthetic" {
		feed = price.NewSyntheticFeed(cfg)
	} else {
		feed = price.NewLiveFeed(cfg)
	}

	// Prime the feed once so market orders can fill right after boot.
	primeCtx, cancelPrime := context.WithTimeout(ctx, 10*time.Second)
	feed.Refresh(primeCtx)
	cancelPrime()

	// ── 5. Trading engine ─────────────────────────────────────────────────────
	risk := domain.NewRiskProfile(cfg.Engine.RiskModes, cfg.Engine.LeverageMin, cfg.Engine.LeverageMax)
	eng := engine.New(engine.Params{
		StartingBalance: decimal.NewFromFloat(cfg.Engine.StartingBalance),
		Markets:         cfg.Engine.Markets,
		Risk:            risk,
		ClosedKeep:      cfg.Engine.ClosedKeep,
	}, feed, recorder, logger)

	if snapshotRepo != nil {
		state, err := snapshotRepo.Load(ctx)
		if err != nil {
			logger.Error("snapshot load failed", "err", err)
			os.Exit(1)
		}
		if state != nil {
			eng.Restore(*state)
		}
	}

	// ── 6. WebSocket hub ──────────────────────────────────────────────────────
	hub := ws.NewHub([]byte(cfg.JWT.Secret), cfg.Server.AllowedOrigins)
	go hub.Run()
	logger.Info("websocket hub started")

	// ── 7. Scheduler ──────────────────────────────────────────────────────────
	var saver scheduler.SnapshotSaver
	if snapshotRepo != nil {
		saver = snapshotRepo
	}
	sched := scheduler.New(eng, feed, hub, saver, scheduler.Intervals{
		Tick:      cfg.Engine.TickInterval,
		Broadcast: cfg.Engine.BroadcastInterval,
		Snapshot:  cfg.Engine.SnapshotInterval,
	}, logger)
	sched.Start(ctx)

	// ── 8. HTTP router + server ───────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		Engine:      eng,
		Feed:        feed,
		Risk:        risk,
		Hub:         hub,
		JournalRepo: journalRepo,
		Cfg:         cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	// ── 9. Graceful shutdown ──────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	if snapshotRepo != nil {
		if err := snapshotRepo.Save(shutdownCtx, eng.State()); err != nil {
			logger.Error("final snapshot save failed", "err", err)
		} else {
			logger.Info("final snapshot saved")
		}
	}
	if db != nil {
		db.Close()
	}
	logger.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially.  Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
