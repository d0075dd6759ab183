package harness

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// SuiteEntry is the outcome of one scenario in a suite.
type SuiteEntry struct {
	Scenario  *Scenario
	Result    *Result
	Err       error // setup failure; Result is nil
	StartedAt time.Time
	Duration  time.Duration
}

// Pass reports whether the scenario ran and passed.
func (e SuiteEntry) Pass() bool {
	return e.Err == nil && e.Result != nil && e.Result.Pass
}

// SuiteResult holds the outcome of a suite, in scenario order.
type SuiteResult struct {
	Entries []SuiteEntry
	Passed  int
	Failed  int
	Total   int
}

// OK reports whether every scenario passed.
func (s SuiteResult) OK() bool {
	return s.Failed == 0
}

// RunSuite runs scenarios with at most workers running at once. Every
// scenario seeds its own actors, so concurrent runs share nothing but the
// application, and one scenario failing never stops the others. onDone,
// when set, is called as each scenario finishes; calls are serialized.
// Scenarios not yet started when ctx is done are reported with ctx.Err()
// and no Result.
func RunSuite(ctx context.Context, env Env, scenarios []*Scenario, workers int, onDone func(SuiteEntry)) SuiteResult {
	if workers < 1 {
		workers = 1
	}
	entries := make([]SuiteEntry, len(scenarios))

	var g errgroup.Group
	g.SetLimit(workers)
	var mu sync.Mutex
	for i, sc := range scenarios {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				entries[i] = SuiteEntry{Scenario: sc, Err: err, StartedAt: time.Now()}
				return nil
			}
			start := time.Now()
			result, err := Run(ctx, env, sc)
			entry := SuiteEntry{
				Scenario:  sc,
				Result:    result,
				Err:       err,
				StartedAt: start,
				Duration:  time.Since(start),
			}
			entries[i] = entry
			if onDone != nil {
				mu.Lock()
				onDone(entry)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	out := SuiteResult{Entries: entries, Total: len(entries)}
	for _, e := range entries {
		if e.Pass() {
			out.Passed++
		} else {
			out.Failed++
		}
	}
	return out
}
