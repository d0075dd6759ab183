package report

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/rwaverify/internal/harness"
	"github.com/roach88/rwaverify/internal/invariant"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on findings(status, deviation_id)
const currentSchemaVersion = 1

// timeLayout has a fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Ledger stores scenario runs with their findings and balance snapshots.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens a SQLite ledger at path and applies migrations.
// Safe to call repeatedly on the same file.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec(`
			CREATE INDEX IF NOT EXISTS idx_findings_deviation
			ON findings(status, deviation_id)
		`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Run is one recorded scenario run.
type Run struct {
	ID        string
	Scenario  string
	Mode      invariant.Mode
	Pass      bool
	StartedAt time.Time
	Duration  time.Duration
	Errors    []string
	Findings  []invariant.Finding
	Snapshots []invariant.Snapshot
}

// FromResult builds a Run from a harness result.
func FromResult(result *harness.Result, started time.Time, d time.Duration) Run {
	return Run{
		ID:        result.RunID,
		Scenario:  result.Scenario,
		Mode:      result.Mode,
		Pass:      result.Pass,
		StartedAt: started,
		Duration:  d,
		Errors:    result.Errors,
		Findings:  result.Findings,
		Snapshots: result.Snapshots,
	}
}

// RecordRun writes run with its findings and snapshots in one
// transaction. A zero StartedAt is stamped with the current time.
func (l *Ledger) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("record run: run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = l.now()
	}
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, mode, pass, started_at, duration_ms, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		string(run.Mode),
		run.Pass,
		run.StartedAt.UTC().Format(timeLayout),
		run.Duration.Milliseconds(),
		string(errsJSON),
	); err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}

	for i, f := range run.Findings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO findings
			(run_id, seq, actor, step, check_name, status, balance_before, balance_after, balance_expected, deviation_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID, i, f.Actor, f.Step, string(f.Check), string(f.Status),
			f.Before, f.After, f.Expected, f.DeviationID,
		); err != nil {
			return fmt.Errorf("record finding %d of run %s: %w", i, run.ID, err)
		}
	}

	for i, s := range run.Snapshots {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (run_id, seq, actor, step, balance)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, i, s.Actor, s.Step, s.Balance); err != nil {
			return fmt.Errorf("record snapshot %d of run %s: %w", i, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: commit: %w", run.ID, err)
	}
	return nil
}
