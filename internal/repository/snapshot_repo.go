package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evetabi/perpsim/internal/domain"
	"github.com/jmoiron/sqlx"
)

// SnapshotRepository persists the flat engine state.  A single row holds
// the latest snapshot; every save overwrites it.  Restoring the engine
// reads the row back verbatim — positions keep their stored liquidation
// prices and fields exactly as saved.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a SnapshotRepository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save upserts the latest engine state.
func (r *SnapshotRepository) Save(ctx context.Context, state domain.EngineState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("snapshot_repo.Save: marshal: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO engine_snapshots (id, state, saved_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, saved_at = EXCLUDED.saved_at`,
		payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("snapshot_repo.Save: %w", err)
	}
	return nil
}

// Load reads the latest engine state.  Returns (nil, nil) when no snapshot
// has ever been saved — a fresh account.
func (r *SnapshotRepository) Load(ctx context.Context) (*domain.EngineState, error) {
	var payload []byte
	err := r.db.GetContext(ctx, &payload, `SELECT state FROM engine_snapshots WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot_repo.Load: %w", err)
	}

	var state domain.EngineState
	if err = json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("snapshot_repo.Load: unmarshal: %w", err)
	}
	return &state, nil
}
