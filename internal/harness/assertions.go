package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Key(), formatArgs(event.Args))
		}
	}

	return buf.String()
}

// matches reports whether event is the assertion's action, by the
// assertion's actor when one is set, with a subset of its args.
func matches(event TraceEvent, a Assertion) bool {
	if event.Action != a.Action {
		return false
	}
	if a.Actor != "" && event.Actor != a.Actor {
		return false
	}
	return matchArgs(event.Args, a.Args)
}

func describe(a Assertion) string {
	who := ""
	if a.Actor != "" {
		who = a.Actor + "."
	}
	if len(a.Args) == 0 {
		return who + a.Action
	}
	return fmt.Sprintf("%s%s with args %s", who, a.Action, formatArgs(a.Args))
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if matches(event, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks the first occurrence of each key appears in the
// listed order. Other events may come between them.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		for _, want := range a.Actions {
			if positions[want] == 0 && (event.Key() == want || event.Action == want) {
				positions[want] = i + 1
			}
		}
	}

	for _, want := range a.Actions {
		if positions[want] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", want),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, a) {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertBalanceDelta(result *Result, a Assertion) error {
	b, ok := result.Balances[a.Actor]
	if !ok {
		return &AssertionError{
			Type:     AssertBalanceDelta,
			Expected: fmt.Sprintf("%s balance to move by %d", a.Actor, *a.Delta),
			Actual:   "no balance observed",
		}
	}
	if b.Delta() != *a.Delta {
		return &AssertionError{
			Type:     AssertBalanceDelta,
			Expected: fmt.Sprintf("%s balance to move by %d", a.Actor, *a.Delta),
			Actual:   fmt.Sprintf("moved by %d (start=%d end=%d)", b.Delta(), b.Start, b.End),
		}
	}
	return nil
}

// assertDeviation checks the actor produced tracked deviation findings:
// at least one, or exactly Count when set.
func assertDeviation(result *Result, a Assertion) error {
	count := 0
	for _, f := range result.Deviations() {
		if f.Actor == a.Actor && (a.Deviation == "" || f.DeviationID == a.Deviation) {
			count++
		}
	}
	want := "at least 1"
	ok := count > 0
	if a.Count != nil {
		want = fmt.Sprint(*a.Count)
		ok = count == *a.Count
	}
	if ok {
		return nil
	}
	id := a.Deviation
	if id == "" {
		id = "any"
	}
	return &AssertionError{
		Type:     AssertDeviation,
		Expected: fmt.Sprintf("%s deviation findings (%s) for %s", want, id, a.Actor),
		Actual:   fmt.Sprintf("%d", count),
	}
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual map[string]any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}
	for key, want := range expected {
		got, exists := actual[key]
		if !exists {
			return false
		}
		if !reflect.DeepEqual(normalize(got), normalize(want)) {
			return false
		}
	}
	return true
}

// formatArgs renders args with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// EvaluateAssertions evaluates all assertions against the result and
// returns the messages of the ones that failed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertBalanceDelta:
			err = assertBalanceDelta(result, a)
		case AssertDeviation:
			err = assertDeviation(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
