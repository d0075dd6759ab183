package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the golden form of a run. Run ids and timings are left
// out so the file only changes when behavior does.
type TraceSnapshot struct {
	ScenarioName string             `json:"scenario_name"`
	Mode         string             `json:"mode"`
	Pass         bool               `json:"pass"`
	Trace        []TraceEvent       `json:"trace"`
	Balances     map[string]Balance `json:"balances,omitempty"`
	Errors       []string           `json:"errors,omitempty"`
}

// Snapshot builds the golden form of result.
func Snapshot(result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: result.Scenario,
		Mode:         string(result.Mode),
		Pass:         result.Pass,
		Trace:        result.Trace,
		Balances:     result.Balances,
		Errors:       result.Errors,
	}
}

// MarshalSnapshot renders a snapshot as indented JSON. Map keys are
// sorted by encoding/json.
func MarshalSnapshot(s TraceSnapshot) ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// RunWithGolden runs scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, ctx context.Context, env Env, scenario *Scenario) (*Result, error) {
	t.Helper()
	result, err := Run(ctx, env, scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	data, err := MarshalSnapshot(Snapshot(result))
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
