package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evetabi/perpsim/internal/domain"
	"github.com/jmoiron/sqlx"
)

// JournalRepository appends settlement audit records, one row per ledger
// movement — the same pattern as a wallet transaction log.
type JournalRepository struct {
	db *sqlx.DB
}

// NewJournalRepository creates a JournalRepository.
func NewJournalRepository(db *sqlx.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Append inserts one journal entry.
func (r *JournalRepository) Append(ctx context.Context, e domain.JournalEntry) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO settlement_journal
			(id, position_id, market, cause, amount, balance_before, balance_after, pnl, description, created_at)
		VALUES
			(:id, :position_id, :market, :cause, :amount, :balance_before, :balance_after, :pnl, :description, :created_at)`,
		e)
	if err != nil {
		return fmt.Errorf("journal_repo.Append: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (r *JournalRepository) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit < 1 {
		limit = 50
	}
	var entries []domain.JournalEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM settlement_journal ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal_repo.Recent: %w", err)
	}
	return entries, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// AsyncRecorder — engine-facing adapter
// ──────────────────────────────────────────────────────────────────────────────

// AsyncRecorder implements the engine's JournalRecorder without ever
// blocking it: entries are queued on a buffered channel and written by a
// background goroutine.  When the queue is full the entry is dropped with a
// warning — the in-memory engine stays the source of truth either way.
type AsyncRecorder struct {
	repo   *JournalRepository
	queue  chan domain.JournalEntry
	logger *slog.Logger
}

// NewAsyncRecorder starts the background writer.  It drains until ctx is
// cancelled.
func NewAsyncRecorder(ctx context.Context, repo *JournalRepository, logger *slog.Logger) *AsyncRecorder {
	ar := &AsyncRecorder{
		repo:   repo,
		queue:  make(chan domain.JournalEntry, 256),
		logger: logger,
	}
	go ar.run(ctx)
	return ar
}

// Record queues one entry for persistence.
func (ar *AsyncRecorder) Record(entry domain.JournalEntry) {
	select {
	case ar.queue <- entry:
	default:
		ar.logger.Warn("journal queue full, entry dropped", "position_id", entry.PositionID, "cause", entry.Cause)
	}
}

func (ar *AsyncRecorder) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-ar.queue:
			writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := ar.repo.Append(writeCtx, entry); err != nil {
				ar.logger.Error("journal append failed", "err", err, "position_id", entry.PositionID)
			}
			cancel()
		}
	}
}
