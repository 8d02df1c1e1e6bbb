package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteLedger remembers delivered reminder ids in a local SQLite database,
// so a reminder is announced once even across restarts.
type SQLiteLedger struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteLedger opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteLedger(dbPath string, ttl time.Duration) (*SQLiteLedger, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes
	// the prune-then-insert pair.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &SQLiteLedger{db: db, ttl: ttl, now: time.Now}
	if err := l.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return l, nil
}

// Close closes the underlying database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (l *SQLiteLedger) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := l.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = l.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := l.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Claim records id as delivered. It reports false when id was already
// delivered within the retention window.
func (l *SQLiteLedger) Claim(ctx context.Context, id string) (bool, error) {
	now := l.now()

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM delivered_reminders WHERE delivered_at <= ?", now.Add(-l.ttl).UnixNano(),
	); err != nil {
		return false, fmt.Errorf("pruning delivered reminders: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO delivered_reminders (id, delivered_at) VALUES (?, ?)",
		id, now.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("claiming reminder %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming reminder %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing claim for %s: %w", id, err)
	}
	return n == 1, nil
}

// Reset forgets every delivered id.
func (l *SQLiteLedger) Reset(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, "DELETE FROM delivered_reminders"); err != nil {
		return fmt.Errorf("resetting delivered reminders: %w", err)
	}
	return nil
}

// Count returns the number of remembered ids, including expired rows not
// yet pruned.
func (l *SQLiteLedger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM delivered_reminders"); err != nil {
		return 0, fmt.Errorf("counting delivered reminders: %w", err)
	}
	return n, nil
}
