package harness

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/rwaverify/internal/actor"
	"github.com/roach88/rwaverify/internal/invariant"
	"github.com/roach88/rwaverify/internal/metrics"
	"github.com/roach88/rwaverify/internal/rwasim"
	"github.com/roach88/rwaverify/internal/testutil"
	"github.com/roach88/rwaverify/internal/tracing"
)

func newEnv(t *testing.T, cfg rwasim.Config) (Env, *testutil.App) {
	t.Helper()
	app := testutil.NewApp(t, cfg)
	return Env{
		Browser: app.Browser,
		BaseURL: testutil.AppURL,
		Seeder:  app.Gateway(5),
		UI:      testutil.FastUI(),
		RunIDs:  testutil.NewFixedRunID("run-1"),
		Logger:  testutil.Discard(),
	}, app
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestRun_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)
		t.Run(scenario.Name, func(t *testing.T) {
			env, _ := newEnv(t, rwasim.DefaultConfig())
			result, err := RunWithGolden(t, context.Background(), env, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, "run-1", result.RunID)
		})
	}
}

func TestRun_TrackedDeviationIsReported(t *testing.T) {
	env, _ := newEnv(t, rwasim.DefaultConfig())
	scenario, err := LoadScenario("testdata/scenarios/request_reject_tracked.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), env, scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	devs := result.Deviations()
	require.Len(t, devs, 1)
	assert.Equal(t, invariant.Finding{
		Actor:       "bob",
		Step:        "reject:after",
		Check:       invariant.CheckUnchanged,
		Status:      invariant.StatusDeviation,
		Before:      5000,
		After:       8500,
		Expected:    8500,
		DeviationID: invariant.RejectCreditsRequester.ID,
	}, devs[0])
}

func TestRun_StrictModeFromEnv(t *testing.T) {
	env, _ := newEnv(t, rwasim.DefaultConfig())
	env.Mode = invariant.ModeStrict
	scenario := mustParse(t, `
name: reject_without_expectation
description: strict mode from the environment fails the rejection
actors: [alice, bob]
steps:
  - {op: request, id: gift, from: bob, to: alice, amount: 3500, note: Gift}
  - {op: reject, request: gift}
assertions:
  - {type: balance_delta, actor: alice, delta: 0}
`)
	result, err := Run(context.Background(), env, scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, invariant.ModeStrict, result.Mode)
	require.Len(t, result.Errors, 1, "assertions are skipped after a failed step")
	assert.Contains(t, result.Errors[0], "steps[1] reject:")
	assert.Contains(t, result.Errors[0], "balance invariant unchanged violated: before=5000 amount=3500 delta=3500 after=8500 expected=5000")
}

func TestRun_ResolvedDeviationFails(t *testing.T) {
	env, _ := newEnv(t, rwasim.Config{RejectCreditsRequester: false})
	scenario, err := LoadScenario("testdata/scenarios/request_reject_tracked.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), env, scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no longer reproduces")

	fixed := mustParse(t, `
name: reject_fixed_backend
description: the fixed backend resolves the catalogued deviation
actors: [alice, bob]
steps:
  - {op: request, id: gift, from: bob, to: alice, amount: 3500, note: Gift}
  - {op: reject, request: gift, expect: {error: deviation_resolved}}
`)
	result, err = Run(context.Background(), env, fixed)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, Balance{Start: 5000, End: 5000}, result.Balances["bob"])
}

func TestRun_UnexpectedSuccess(t *testing.T) {
	env, _ := newEnv(t, rwasim.DefaultConfig())
	scenario := mustParse(t, `
name: pay_expected_to_fail
description: a step declared to fail but succeeding fails the run
actors: [alice, bob]
steps:
  - {op: pay, from: bob, to: alice, amount: 5, note: Coffee, expect: {error: violation}}
`)
	result, err := Run(context.Background(), env, scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"steps[0] pay: expected error violation, got success"}, result.Errors)
}

func TestRun_AssertionFailure(t *testing.T) {
	env, _ := newEnv(t, rwasim.DefaultConfig())
	scenario := mustParse(t, `
name: wrong_delta
description: a failing assertion fails the run
actors: [alice, bob]
steps:
  - {op: pay, from: bob, to: alice, amount: 5, note: Coffee}
assertions:
  - {type: balance_delta, actor: bob, delta: 5}
  - {type: trace_count, action: pay, count: 1}
`)
	result, err := Run(context.Background(), env, scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "moved by -5 (start=5000 end=4995)")
}

func TestRun_SeedFailure(t *testing.T) {
	env, app := newEnv(t, rwasim.DefaultConfig())
	app.Identity.FailFirst = 1000
	scenario, err := LoadScenario("testdata/scenarios/pay_between_actors.yaml")
	require.NoError(t, err)

	_, err = Run(context.Background(), env, scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed alice")
}

func TestRun_MissingEnv(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/pay_between_actors.yaml")
	require.NoError(t, err)
	_, err = Run(context.Background(), Env{}, scenario)
	assert.ErrorContains(t, err, "needs a browser and a seeder")
}

func TestRun_CanceledContext(t *testing.T) {
	env, _ := newEnv(t, rwasim.DefaultConfig())
	scenario, err := LoadScenario("testdata/scenarios/pay_between_actors.yaml")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, env, scenario)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingSeeder struct {
	inner Seeder
	mu    sync.Mutex
	names []string
}

func (s *recordingSeeder) SeedActor(ctx context.Context, st *actor.State) error {
	if err := s.inner.SeedActor(ctx, st); err != nil {
		return err
	}
	s.mu.Lock()
	s.names = append(s.names, st.Identity().Username)
	s.mu.Unlock()
	return nil
}

// Scenarios sharing one application never see each other's actors.
func TestRun_ParallelIsolation(t *testing.T) {
	env, _ := newEnv(t, rwasim.DefaultConfig())
	seeder := &recordingSeeder{inner: env.Seeder}
	env.Seeder = seeder
	scenario, err := LoadScenario("testdata/scenarios/pay_between_actors.yaml")
	require.NoError(t, err)

	const runs = 4
	results := make([]*Result, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Run(context.Background(), env, scenario)
		}(i)
	}
	wg.Wait()

	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Pass, "run %d: %v", i, results[i].Errors)
		assert.Equal(t, Balance{Start: 5000, End: 4980}, results[i].Balances["bob"])
		assert.Equal(t, Balance{Start: 5000, End: 5020}, results[i].Balances["alice"])
	}

	seen := map[string]bool{}
	for _, name := range seeder.names {
		assert.False(t, seen[name], "username %s seeded twice", name)
		seen[name] = true
	}
	assert.Len(t, seen, runs*2)
}

func TestRun_Instrumentation(t *testing.T) {
	env, _ := newEnv(t, rwasim.DefaultConfig())
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	env.Tracer = tracing.NewOTelTracer(tracing.Config{ServiceName: "harness-test", TracerProvider: tp})
	reg := prometheus.NewRegistry()
	env.Metrics = metrics.New(metrics.Config{Namespace: "test", Registry: reg})

	scenario, err := LoadScenario("testdata/scenarios/request_accept.yaml")
	require.NoError(t, err)
	result, err := Run(context.Background(), env, scenario)
	require.NoError(t, err)
	require.True(t, result.Pass)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"protocol.request", "protocol.accept", "scenario.run"}, names)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	for _, name := range []string{"test_scenarios_total", "test_protocol_steps_total", "test_invariant_findings_total"} {
		assert.True(t, found[name], "metric %s missing", name)
	}
}

func TestRun_TraceIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/request_resolution_rules.yaml")
	require.NoError(t, err)

	var traces []string
	for i := 0; i < 2; i++ {
		env, _ := newEnv(t, rwasim.DefaultConfig())
		result, err := Run(context.Background(), env, scenario)
		require.NoError(t, err)
		data, err := MarshalSnapshot(Snapshot(result))
		require.NoError(t, err)
		traces = append(traces, string(data))
	}
	assert.Equal(t, traces[0], traces[1])
	assert.Contains(t, traces[0], `"error": "wrong_party"`)
}
