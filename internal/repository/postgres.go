// Package repository holds the persistence collaborators: the engine state
// snapshot store and the append-only settlement journal.  The engine of
// record is in-memory; these stores exist so a restart can restore the book
// and so every ledger movement leaves an audit trail.
package repository

import (
	"fmt"

	"github.com/evetabi/perpsim/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// Connect opens the PostgreSQL pool with the configured limits and verifies
// connectivity with a ping.
func Connect(cfg config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("repository.Connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("repository.Connect: ping: %w", err)
	}
	return db, nil
}
