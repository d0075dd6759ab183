package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/rwaverify/internal/invariant"
)

// RunSummary is a row of the runs table.
type RunSummary struct {
	ID        string         `json:"id"`
	Scenario  string         `json:"scenario"`
	Mode      invariant.Mode `json:"mode"`
	Pass      bool           `json:"pass"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Errors    []string       `json:"errors"`
}

// DeviationRecord is a tracked deviation finding with the run it came
// from.
type DeviationRecord struct {
	RunID     string            `json:"run_id"`
	Scenario  string            `json:"scenario"`
	StartedAt time.Time         `json:"started_at"`
	Finding   invariant.Finding `json:"finding"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse started_at %q: %w", s, err)
	}
	return t, nil
}

// Runs returns every recorded run, oldest first.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (l *Ledger) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, scenario, mode, pass, started_at, duration_ms, errors
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row rowScanner) (RunSummary, error) {
	var (
		r       RunSummary
		mode    string
		started string
		ms      int64
		errs    string
	)
	if err := row.Scan(&r.ID, &r.Scenario, &mode, &r.Pass, &started, &ms, &errs); err != nil {
		return RunSummary{}, fmt.Errorf("scan run: %w", err)
	}
	t, err := parseTime(started)
	if err != nil {
		return RunSummary{}, err
	}
	if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
		return RunSummary{}, fmt.Errorf("unmarshal errors of run %s: %w", r.ID, err)
	}
	r.Mode = invariant.Mode(mode)
	r.StartedAt = t
	r.Duration = time.Duration(ms) * time.Millisecond
	return r, nil
}

// Deviations returns the tracked deviation findings of runs started at or
// after since, oldest run first and in finding order within a run.
func (l *Ledger) Deviations(ctx context.Context, since time.Time) ([]DeviationRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT r.id, r.scenario, r.started_at,
		       f.actor, f.step, f.check_name, f.status,
		       f.balance_before, f.balance_after, f.balance_expected, f.deviation_id
		FROM findings f
		JOIN runs r ON f.run_id = r.id
		WHERE f.status = ? AND r.started_at >= ?
		ORDER BY r.started_at ASC, r.id COLLATE BINARY ASC, f.seq ASC
	`, string(invariant.StatusDeviation), since.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("query deviations: %w", err)
	}
	defer rows.Close()

	out := []DeviationRecord{}
	for rows.Next() {
		var (
			d             DeviationRecord
			started       string
			check, status string
		)
		if err := rows.Scan(&d.RunID, &d.Scenario, &started,
			&d.Finding.Actor, &d.Finding.Step, &check, &status,
			&d.Finding.Before, &d.Finding.After, &d.Finding.Expected, &d.Finding.DeviationID,
		); err != nil {
			return nil, fmt.Errorf("scan deviation: %w", err)
		}
		t, err := parseTime(started)
		if err != nil {
			return nil, err
		}
		d.StartedAt = t
		d.Finding.Check = invariant.Check(check)
		d.Finding.Status = invariant.Status(status)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deviations: %w", err)
	}
	return out, nil
}
