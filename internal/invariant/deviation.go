package invariant

import (
	"errors"
	"fmt"
)

// Mode selects how catalogued deviations are treated.
type Mode string

const (
	// ModeTracked asserts the documented deviation and reports it as a
	// finding. A deviation that stops reproducing fails the check.
	ModeTracked Mode = "tracked"

	// ModeStrict asserts the invariant and ignores the catalogue.
	ModeStrict Mode = "strict"
)

// ParseMode parses a mode name; empty selects ModeTracked.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeTracked:
		return ModeTracked, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("unknown deviation mode %q (want tracked|strict)", s)
	}
}

// Deviation is a documented backend behavior that breaks an invariant in a
// predictable way. Factor scales the step amount into the extra delta the
// backend applies on top of the invariant's prediction.
type Deviation struct {
	ID          string
	Description string
	Factor      int64
}

// RejectCreditsRequester is the backend behavior where rejecting a request
// credits the requester with the requested amount although no money moved.
var RejectCreditsRequester = Deviation{
	ID:          "reject-credits-requester",
	Description: "rejecting a request credits the requester with the requested amount",
	Factor:      1,
}

// DeviationResolvedError means a tracked deviation no longer reproduces:
// the balance now satisfies the invariant. The catalogue entry is stale.
type DeviationResolvedError struct {
	Deviation Deviation
	Actor     string
	Before    int64
	After     int64
}

func (e *DeviationResolvedError) Error() string {
	return fmt.Sprintf("%s: known deviation %s no longer reproduces (before=%d after=%d); remove it from the catalogue",
		e.Actor, e.Deviation.ID, e.Before, e.After)
}

// IsDeviationResolved reports whether err is a *DeviationResolvedError.
func IsDeviationResolved(err error) bool {
	var d *DeviationResolvedError
	return errors.As(err, &d)
}

// Status classifies a passing evaluation.
type Status string

const (
	StatusHeld      Status = "held"
	StatusDeviation Status = "deviation"
)

// Expectation describes what one actor's balance should do across a step.
type Expectation struct {
	Check     Check
	Amount    int64
	Deviation *Deviation
}

// Finding is the outcome of a passing evaluation.
type Finding struct {
	Actor       string `json:"actor"`
	Step        string `json:"step"`
	Check       Check  `json:"check"`
	Status      Status `json:"status"`
	Before      int64  `json:"before"`
	After       int64  `json:"after"`
	Expected    int64  `json:"expected"`
	DeviationID string `json:"deviation_id,omitempty"`
}

// Evaluate checks one actor's balance movement across a step.
//
// In strict mode, or when no deviation is catalogued, the invariant must
// hold. In tracked mode with a catalogued deviation, the deviation must be
// observed exactly; observing the invariant instead returns a
// *DeviationResolvedError and anything else a *ViolationError.
func Evaluate(mode Mode, exp Expectation, before, after Snapshot) (Finding, error) {
	want, err := exp.Check.expected(before.Balance, exp.Amount)
	if err != nil {
		return Finding{}, err
	}

	finding := Finding{
		Actor:    before.Actor,
		Step:     after.Step,
		Check:    exp.Check,
		Status:   StatusHeld,
		Before:   before.Balance,
		After:    after.Balance,
		Expected: want,
	}
	violation := &ViolationError{
		Check:    exp.Check,
		Actor:    before.Actor,
		Before:   before.Balance,
		Amount:   exp.Amount,
		Expected: want,
		After:    after.Balance,
	}

	if exp.Deviation == nil || mode == ModeStrict {
		if after.Balance != want {
			return Finding{}, violation
		}
		return finding, nil
	}

	deviated := want + exp.Deviation.Factor*exp.Amount
	switch after.Balance {
	case deviated:
		finding.Status = StatusDeviation
		finding.Expected = deviated
		finding.DeviationID = exp.Deviation.ID
		return finding, nil
	case want:
		return Finding{}, &DeviationResolvedError{
			Deviation: *exp.Deviation,
			Actor:     before.Actor,
			Before:    before.Balance,
			After:     after.Balance,
		}
	default:
		violation.Deviation = exp.Deviation.ID
		return Finding{}, violation
	}
}
