package seed

import (
	"errors"
	"fmt"
)

// SetupError is a seed step whose response did not match what was sent or
// expected. A scenario whose actors cannot be seeded cannot run.
type SetupError struct {
	Step     string
	Field    string
	Expected string
	Actual   string
	Status   int
	Err      error
}

func (e *SetupError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("seed %s: %v", e.Step, e.Err)
	case e.Field != "":
		return fmt.Sprintf("seed %s: %s: expected %q, got %q", e.Step, e.Field, e.Expected, e.Actual)
	default:
		return fmt.Sprintf("seed %s: expected status %s, got %d", e.Step, e.Expected, e.Status)
	}
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// IsSetupError reports whether err is a *SetupError.
func IsSetupError(err error) bool {
	var s *SetupError
	return errors.As(err, &s)
}

func statusError(step string, want, got int) *SetupError {
	return &SetupError{Step: step, Expected: fmt.Sprint(want), Status: got}
}

func fieldError(step, field, want, got string) *SetupError {
	return &SetupError{Step: step, Field: field, Expected: want, Actual: got}
}
