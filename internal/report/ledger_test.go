package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwaverify/internal/harness"
	"github.com/roach88/rwaverify/internal/invariant"
)

func openTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, path
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rejectRun(id string, started time.Time) Run {
	return Run{
		ID:        id,
		Scenario:  "request_reject_tracked",
		Mode:      invariant.ModeTracked,
		Pass:      true,
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Findings: []invariant.Finding{
			{Actor: "bob", Step: "request:after", Check: invariant.CheckUnchanged, Status: invariant.StatusHeld, Before: 5000, After: 5000, Expected: 5000},
			{Actor: "alice", Step: "reject:after", Check: invariant.CheckUnchanged, Status: invariant.StatusHeld, Before: 5000, After: 5000, Expected: 5000},
			{
				Actor: "bob", Step: "reject:after", Check: invariant.CheckUnchanged, Status: invariant.StatusDeviation,
				Before: 5000, After: 8500, Expected: 8500, DeviationID: invariant.RejectCreditsRequester.ID,
			},
		},
		Snapshots: []invariant.Snapshot{
			{Actor: "alice", Step: "request:before", Balance: 5000},
			{Actor: "bob", Step: "reject:after", Balance: 8500},
		},
	}
}

func TestOpen_AppliesMigrations(t *testing.T) {
	l, path := openTestLedger(t)

	var version int
	require.NoError(t, l.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var mode string
	require.NoError(t, l.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	// Reopening an existing ledger is a no-op.
	require.NoError(t, l.Close())
	again, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "ledger.db"))
	assert.Error(t, err)
}

func TestRecordRun_RoundTrip(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordRun(ctx, rejectRun("run-b", base.Add(time.Minute))))
	failed := Run{
		ID:        "run-a",
		Scenario:  "pay_between_actors",
		Mode:      invariant.ModeStrict,
		StartedAt: base,
		Duration:  2 * time.Second,
		Errors:    []string{"steps[0] pay: timeout"},
	}
	require.NoError(t, l.RecordRun(ctx, failed))

	runs, err := l.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, RunSummary{
		ID:        "run-a",
		Scenario:  "pay_between_actors",
		Mode:      invariant.ModeStrict,
		Pass:      false,
		StartedAt: base,
		Duration:  2 * time.Second,
		Errors:    []string{"steps[0] pay: timeout"},
	}, runs[0])
	assert.Equal(t, "run-b", runs[1].ID)
	assert.True(t, runs[1].Pass)
	assert.Equal(t, []string{}, runs[1].Errors)

	var snapshots int
	require.NoError(t, l.db.QueryRow("SELECT COUNT(*) FROM snapshots WHERE run_id = ?", "run-b").Scan(&snapshots))
	assert.Equal(t, 2, snapshots)
}

func TestDeviations_Since(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordRun(ctx, rejectRun("old", base)))
	require.NoError(t, l.RecordRun(ctx, rejectRun("new", base.Add(24*time.Hour))))

	all, err := l.Deviations(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, DeviationRecord{
		RunID:     "old",
		Scenario:  "request_reject_tracked",
		StartedAt: base,
		Finding: invariant.Finding{
			Actor: "bob", Step: "reject:after", Check: invariant.CheckUnchanged, Status: invariant.StatusDeviation,
			Before: 5000, After: 8500, Expected: 8500, DeviationID: "reject-credits-requester",
		},
	}, all[0])
	assert.Equal(t, "new", all[1].RunID)

	recent, err := l.Deviations(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].RunID)

	none, err := l.Deviations(ctx, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []DeviationRecord{}, none)
}

func TestRecordRun_DuplicateRollsBack(t *testing.T) {
	l, _ := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordRun(ctx, rejectRun("run-1", base)))

	err := l.RecordRun(ctx, rejectRun("run-1", base.Add(time.Minute)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record run run-1")

	var findings int
	require.NoError(t, l.db.QueryRow("SELECT COUNT(*) FROM findings").Scan(&findings))
	assert.Equal(t, 3, findings)
}

func TestRecordRun_StampsStartTime(t *testing.T) {
	l, _ := openTestLedger(t)
	l.now = func() time.Time { return base }

	run := rejectRun("run-1", time.Time{})
	require.NoError(t, l.RecordRun(context.Background(), run))

	runs, err := l.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, base, runs[0].StartedAt)
}

func TestRecordRun_RequiresID(t *testing.T) {
	l, _ := openTestLedger(t)
	err := l.RecordRun(context.Background(), Run{Scenario: "s"})
	assert.ErrorContains(t, err, "run id is required")
}

func TestFromResult(t *testing.T) {
	result := harness.NewResult("request_accept")
	result.RunID = "run-9"
	result.Mode = invariant.ModeTracked
	result.Findings = []invariant.Finding{{Actor: "alice", Check: invariant.CheckAfterPaying, Status: invariant.StatusHeld}}
	result.Snapshots = []invariant.Snapshot{{Actor: "alice", Step: "accept:after", Balance: 4960}}
	result.AddError("boom")

	run := FromResult(result, base, time.Second)
	assert.Equal(t, Run{
		ID:        "run-9",
		Scenario:  "request_accept",
		Mode:      invariant.ModeTracked,
		Pass:      false,
		StartedAt: base,
		Duration:  time.Second,
		Errors:    []string{"boom"},
		Findings:  result.Findings,
		Snapshots: result.Snapshots,
	}, run)
}
