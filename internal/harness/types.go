package harness

import (
	"reflect"

	"github.com/roach88/rwaverify/internal/invariant"
)

// TraceEvent is one observable step of a run: something an actor did or
// saw, in execution order.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Actor  string         `json:"actor,omitempty"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
}

// Key is "actor.action", or just the action for events without an actor.
func (e TraceEvent) Key() string {
	if e.Actor == "" {
		return e.Action
	}
	return e.Actor + "." + e.Action
}

// Balance is the first and last balance observed for an actor.
type Balance struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Delta is End - Start.
func (b Balance) Delta() int64 {
	return b.End - b.Start
}

// Result is the outcome of a scenario run.
type Result struct {
	Scenario string         `json:"scenario"`
	RunID    string         `json:"run_id"`
	Mode     invariant.Mode `json:"mode"`

	// Pass is true when every step behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Findings are the passing invariant evaluations, including tracked
	// deviations.
	Findings []invariant.Finding `json:"findings,omitempty"`

	// Snapshots are every balance read, in order.
	Snapshots []invariant.Snapshot `json:"snapshots,omitempty"`

	Balances map[string]Balance `json:"balances,omitempty"`
}

// NewResult creates a passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Balances: map[string]Balance{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a trace event.
func (r *Result) AddEvent(seq int64, actor, action string, args map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Actor: actor, Action: action, Args: normalizeArgs(args)})
}

// observe folds a balance read into Snapshots and Balances.
func (r *Result) observe(s invariant.Snapshot) {
	r.Snapshots = append(r.Snapshots, s)
	b, ok := r.Balances[s.Actor]
	if !ok {
		b.Start = s.Balance
	}
	b.End = s.Balance
	r.Balances[s.Actor] = b
}

// Deviations returns the findings that matched a catalogued deviation.
func (r *Result) Deviations() []invariant.Finding {
	var out []invariant.Finding
	for _, f := range r.Findings {
		if f.Status == invariant.StatusDeviation {
			out = append(out, f)
		}
	}
	return out
}

// normalizeArgs makes YAML-decoded and runtime values comparable: every
// integer becomes int64.
func normalizeArgs(args map[string]any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint64:
		return int64(x)
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
		return x
	case map[string]any:
		return normalizeArgs(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	}
	// Named scalar types such as pages.Action.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}
