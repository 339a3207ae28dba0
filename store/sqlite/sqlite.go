/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.Store as a single key/value table so the budget
  ledger survives restarts, and records scheduled period checks for the
  admin view.

INTERFACES IMPLEMENTED:
  ledger.Store: Get/Set/Delete of JSON records by key

KEY TABLES:
  kv:          One row per ledger record (ft_budget, ft_expenses, ...)
  period_runs: Audit trail of the period scheduler

MIGRATIONS:
  Versioned SQL files under migrations/ are embedded in the binary and
  applied on New() with golang-migrate. Re-running is a no-op.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.
  In-memory databases are pinned to one connection, since every new
  connection to ":memory:" would see an empty database.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/budget.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l := ledger.New(store)

SEE ALSO:
  - ledger/store.go: Interface definition
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded migrations.
func (s *Store) migrate() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	// m.Close would also close s.db through the driver; only the source is released.
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// =============================================================================
// KEY/VALUE RECORDS
// =============================================================================

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value stored under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Absent keys are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// PERIOD RUNS
// =============================================================================

// PeriodRun records one scheduled period check.
type PeriodRun struct {
	ID             string
	CheckedAt      time.Time
	PreviousPeriod string // empty when no settings existed
	CurrentPeriod  string
	Rolled         bool
	Error          string
}

// SavePeriodRun inserts a run record.
func (s *Store) SavePeriodRun(ctx context.Context, run PeriodRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO period_runs (id, checked_at, previous_period, current_period, rolled, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.CheckedAt.UTC().Format(time.RFC3339), nullString(run.PreviousPeriod),
		run.CurrentPeriod, run.Rolled, nullString(run.Error))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("period run %s already recorded: %w", run.ID, err)
		}
		return fmt.Errorf("save period run: %w", err)
	}
	return nil
}

// ListPeriodRuns returns the most recent runs, newest first.
func (s *Store) ListPeriodRuns(ctx context.Context, limit int) ([]PeriodRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, checked_at, previous_period, current_period, rolled, error
		FROM period_runs
		ORDER BY checked_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []PeriodRun{}
	for rows.Next() {
		var (
			run       PeriodRun
			checkedAt string
			previous  sql.NullString
			errText   sql.NullString
		)
		if err := rows.Scan(&run.ID, &checkedAt, &previous, &run.CurrentPeriod, &run.Rolled, &errText); err != nil {
			return nil, err
		}
		run.CheckedAt, err = time.Parse(time.RFC3339, checkedAt)
		if err != nil {
			return nil, fmt.Errorf("parse checked_at: %w", err)
		}
		run.PreviousPeriod = previous.String
		run.Error = errText.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
