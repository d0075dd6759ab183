package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rwaverify/internal/invariant"
)

// Scenario is a multi-actor transaction script with assertions over the
// resulting trace, balances and findings.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario verifies.
	Description string `yaml:"description"`

	// Actors are the labels of the actors to seed. Each run seeds fresh
	// identities for them.
	Actors []string `yaml:"actors"`

	// DeviationMode overrides the environment's mode (tracked|strict).
	DeviationMode string `yaml:"deviation_mode,omitempty"`

	// Steps run in order. The first unexpected failure ends the run.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after every step ran.
	Assertions []Assertion `yaml:"assertions"`
}

// Step operations.
const (
	OpPay     = "pay"
	OpRequest = "request"
	OpAccept  = "accept"
	OpReject  = "reject"
)

// Step is one protocol run.
//
// pay and request need from, to, amount and note. A request may carry an
// id; accept and reject name that id in request and act as the request's
// payer. by overrides who acts on the request.
type Step struct {
	Op      string `yaml:"op"`
	From    string `yaml:"from,omitempty"`
	To      string `yaml:"to,omitempty"`
	Amount  int64  `yaml:"amount,omitempty"`
	Note    string `yaml:"note,omitempty"`
	ID      string `yaml:"id,omitempty"`
	Request string `yaml:"request,omitempty"`
	By      string `yaml:"by,omitempty"`

	// Expect declares the step must fail. Nil means it must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause names the failure a step must produce.
type ExpectClause struct {
	// Error is one of the ErrorKind values.
	Error string `yaml:"error"`
}

// Assertion validates the trace, balances or findings.
type Assertion struct {
	// Type is trace_contains, trace_order, trace_count, balance_delta or
	// deviation.
	Type string `yaml:"type"`

	// Actor narrows trace assertions and names the subject of
	// balance_delta and deviation.
	Actor string `yaml:"actor,omitempty"`

	// Action is matched against trace events (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are a subset match on event args.
	Args map[string]any `yaml:"args,omitempty"`

	// Count is the exact number of matching events (trace_count) or
	// deviation findings (deviation, when set).
	Count *int `yaml:"count,omitempty"`

	// Actions lists event keys ("actor.action" or "action") that must
	// appear in this order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Delta is the expected end-minus-start balance (balance_delta).
	Delta *int64 `yaml:"delta,omitempty"`

	// Deviation is the catalogued deviation id (deviation).
	Deviation string `yaml:"deviation_id,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertBalanceDelta  = "balance_delta"
	AssertDeviation     = "deviation"
)

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by path.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios in %s", dir)
	}

	scenarios := make([]*Scenario, 0, len(paths))
	names := map[string]string{}
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", p, s.Name, prev)
		}
		names[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Actors) < 2 {
		return fmt.Errorf("at least two actors are required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if _, err := invariant.ParseMode(s.DeviationMode); err != nil {
		return err
	}

	actors := map[string]bool{}
	for i, a := range s.Actors {
		if a == "" {
			return fmt.Errorf("actors[%d]: label is required", i)
		}
		if actors[a] {
			return fmt.Errorf("actors[%d]: duplicate label %q", i, a)
		}
		actors[a] = true
	}

	requests := map[string]int{}
	for i, step := range s.Steps {
		if err := validateStep(i, step, actors, requests); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, actors); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, actors map[string]bool, requests map[string]int) error {
	switch step.Op {
	case OpPay, OpRequest:
		if !actors[step.From] {
			return fmt.Errorf("steps[%d]: from %q is not a declared actor", i, step.From)
		}
		if !actors[step.To] {
			return fmt.Errorf("steps[%d]: to %q is not a declared actor", i, step.To)
		}
		if step.From == step.To {
			return fmt.Errorf("steps[%d]: from and to must differ", i)
		}
		if step.Request != "" || step.By != "" {
			return fmt.Errorf("steps[%d]: request and by are only valid for accept and reject", i)
		}
		if step.Op == OpPay && step.ID != "" {
			return fmt.Errorf("steps[%d]: id is only valid for request", i)
		}
		if step.Op == OpRequest && step.ID != "" {
			if _, dup := requests[step.ID]; dup {
				return fmt.Errorf("steps[%d]: duplicate request id %q", i, step.ID)
			}
			requests[step.ID] = i
		}
	case OpAccept, OpReject:
		if step.Request == "" {
			return fmt.Errorf("steps[%d]: request is required for %s", i, step.Op)
		}
		if _, ok := requests[step.Request]; !ok {
			return fmt.Errorf("steps[%d]: request %q is not defined by an earlier step", i, step.Request)
		}
		if step.From != "" || step.To != "" || step.Amount != 0 || step.Note != "" || step.ID != "" {
			return fmt.Errorf("steps[%d]: %s takes only request and by", i, step.Op)
		}
		if step.By != "" && !actors[step.By] {
			return fmt.Errorf("steps[%d]: by %q is not a declared actor", i, step.By)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}

	if step.Expect != nil && !knownErrorKind(step.Expect.Error) {
		return fmt.Errorf("steps[%d].expect: unknown error %q", i, step.Expect.Error)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, actors map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Actor != "" && !actors[a.Actor] {
		return fmt.Errorf("assertions[%d]: actor %q is not declared", index, a.Actor)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertBalanceDelta:
		if a.Actor == "" {
			return fmt.Errorf("assertions[%d]: actor is required for balance_delta", index)
		}
		if a.Delta == nil {
			return fmt.Errorf("assertions[%d]: delta is required for balance_delta", index)
		}
	case AssertDeviation:
		if a.Actor == "" {
			return fmt.Errorf("assertions[%d]: actor is required for deviation", index)
		}
		if a.Count != nil && *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for deviation", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
