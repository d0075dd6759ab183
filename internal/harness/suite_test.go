package harness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwaverify/internal/actor"
	"github.com/roach88/rwaverify/internal/rwasim"
)

func TestRunSuite(t *testing.T) {
	env, _ := newEnv(t, rwasim.DefaultConfig())
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	failing := mustParse(t, `
name: pay_expected_to_fail
description: fails on purpose
actors: [alice, bob]
steps:
  - {op: pay, from: bob, to: alice, amount: 5, note: Coffee, expect: {error: violation}}
`)
	scenarios = append(scenarios, failing)

	var mu sync.Mutex
	var done []string
	suite := RunSuite(context.Background(), env, scenarios, 3, func(e SuiteEntry) {
		mu.Lock()
		done = append(done, e.Scenario.Name)
		mu.Unlock()
	})

	assert.Equal(t, len(scenarios), suite.Total)
	assert.Equal(t, len(scenarios)-1, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
	assert.False(t, suite.OK())
	assert.Len(t, done, len(scenarios))

	for i, e := range suite.Entries {
		assert.Same(t, scenarios[i], e.Scenario, "entries keep scenario order")
		require.NoError(t, e.Err)
		assert.Equal(t, e.Scenario.Name != "pay_expected_to_fail", e.Pass(), e.Scenario.Name)
	}
}

func TestRunSuite_Canceled(t *testing.T) {
	env, _ := newEnv(t, rwasim.DefaultConfig())
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	suite := RunSuite(ctx, env, scenarios, 0, nil)

	assert.Equal(t, len(scenarios), suite.Total)
	assert.Equal(t, 0, suite.Passed)
	for _, e := range suite.Entries {
		assert.ErrorIs(t, e.Err, context.Canceled)
		assert.Nil(t, e.Result)
	}
}

// countingSeeder tracks how many scenarios are seeding at once.
type countingSeeder struct {
	inner    Seeder
	inFlight atomic.Int32
	peak     atomic.Int32
	fail     string // label whose seeding fails
}

func (s *countingSeeder) SeedActor(ctx context.Context, st *actor.State) error {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if st.Label() == s.fail {
		return errors.New("identity service down")
	}
	return s.inner.SeedActor(ctx, st)
}

func TestRunSuite_RespectsWorkerLimit(t *testing.T) {
	env, _ := newEnv(t, rwasim.DefaultConfig())
	seeder := &countingSeeder{inner: env.Seeder}
	env.Seeder = seeder
	scenario, err := LoadScenario("testdata/scenarios/pay_between_actors.yaml")
	require.NoError(t, err)
	scenarios := []*Scenario{scenario, scenario, scenario, scenario, scenario, scenario}

	suite := RunSuite(context.Background(), env, scenarios, 2, nil)

	assert.True(t, suite.OK(), "%+v", suite.Entries)
	assert.Equal(t, 6, suite.Passed)
	assert.LessOrEqual(t, seeder.peak.Load(), int32(2))
}

func TestRunSuite_SetupFailureDoesNotStopOthers(t *testing.T) {
	env, _ := newEnv(t, rwasim.DefaultConfig())
	env.Seeder = &countingSeeder{inner: env.Seeder, fail: "carol"}
	ok, err := LoadScenario("testdata/scenarios/pay_between_actors.yaml")
	require.NoError(t, err)
	broken := mustParse(t, `
name: carol_cannot_seed
description: seeding carol fails
actors: [carol, bob]
steps:
  - {op: pay, from: bob, to: carol, amount: 5, note: Coffee}
`)

	suite := RunSuite(context.Background(), env, []*Scenario{broken, ok, ok}, 1, nil)

	require.Len(t, suite.Entries, 3)
	assert.ErrorContains(t, suite.Entries[0].Err, "seed carol")
	assert.Nil(t, suite.Entries[0].Result)
	assert.True(t, suite.Entries[1].Pass())
	assert.True(t, suite.Entries[2].Pass())
	assert.Equal(t, 2, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
}
