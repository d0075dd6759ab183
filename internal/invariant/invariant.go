// Package invariant checks balance movements observed through the UI.
//
// The checks are pure functions over whole-unit balances. Each one
// reports before, delta and after when it fails so a reader can see what
// moved without rerunning the scenario.
package invariant

import (
	"errors"
	"fmt"
)

// Check names a balance invariant.
type Check string

const (
	CheckAfterPaying    Check = "after_paying"
	CheckAfterReceiving Check = "after_receiving"
	CheckUnchanged      Check = "unchanged"
)

// Snapshot is a balance read at a protocol step for one actor.
type Snapshot struct {
	Actor   string `json:"actor" yaml:"actor"`
	Step    string `json:"step" yaml:"step"`
	Balance int64  `json:"balance" yaml:"balance"`
}

// ViolationError is returned when a balance does not match the invariant
// (nor, in tracked mode, the catalogued deviation).
type ViolationError struct {
	Check    Check
	Actor    string
	Before   int64
	Amount   int64
	Expected int64
	After    int64

	// Deviation is set when a known deviation was expected but the observed
	// balance matched neither it nor the invariant.
	Deviation string
}

func (e *ViolationError) Error() string {
	who := ""
	if e.Actor != "" {
		who = e.Actor + ": "
	}
	msg := fmt.Sprintf("%sbalance invariant %s violated: before=%d amount=%d delta=%d after=%d expected=%d",
		who, e.Check, e.Before, e.Amount, e.After-e.Before, e.After, e.Expected)
	if e.Deviation != "" {
		msg += fmt.Sprintf(" (known deviation %s did not match either)", e.Deviation)
	}
	return msg
}

// IsViolation reports whether err is a *ViolationError.
func IsViolation(err error) bool {
	var v *ViolationError
	return errors.As(err, &v)
}

// expected returns the balance the check predicts after the step.
func (c Check) expected(before, amount int64) (int64, error) {
	switch c {
	case CheckAfterPaying:
		return before - amount, nil
	case CheckAfterReceiving:
		return before + amount, nil
	case CheckUnchanged:
		return before, nil
	default:
		return 0, fmt.Errorf("unknown balance check %q", c)
	}
}

func verify(c Check, before, amount, after int64) error {
	want, err := c.expected(before, amount)
	if err != nil {
		return err
	}
	if after != want {
		return &ViolationError{Check: c, Before: before, Amount: amount, Expected: want, After: after}
	}
	return nil
}

// AfterPaying holds iff after == before - amount.
func AfterPaying(before, amount, after int64) error {
	return verify(CheckAfterPaying, before, amount, after)
}

// AfterReceiving holds iff after == before + amount.
func AfterReceiving(before, amount, after int64) error {
	return verify(CheckAfterReceiving, before, amount, after)
}

// Unchanged holds iff after == before.
func Unchanged(before, after int64) error {
	return verify(CheckUnchanged, before, 0, after)
}
