package harness

import (
	"errors"

	"github.com/roach88/rwaverify/internal/browser"
	"github.com/roach88/rwaverify/internal/invariant"
	"github.com/roach88/rwaverify/internal/protocol"
)

// Error kinds a step may be expected to fail with.
const (
	ErrorViolation         = "violation"
	ErrorDeviationResolved = "deviation_resolved"
	ErrorWrongParty        = "wrong_party"
	ErrorTerminal          = "terminal"
	ErrorInvalidStep       = "invalid_step"
	ErrorTimeout           = "timeout"
	ErrorOther             = "error"
)

func knownErrorKind(kind string) bool {
	switch kind {
	case ErrorViolation, ErrorDeviationResolved, ErrorWrongParty, ErrorTerminal, ErrorInvalidStep, ErrorTimeout:
		return true
	}
	return false
}

// ErrorKind classifies a step failure.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case invariant.IsViolation(err):
		return ErrorViolation
	case invariant.IsDeviationResolved(err):
		return ErrorDeviationResolved
	case errors.Is(err, protocol.ErrWrongParty):
		return ErrorWrongParty
	case errors.Is(err, protocol.ErrTerminal):
		return ErrorTerminal
	case errors.Is(err, protocol.ErrInvalidStep):
		return ErrorInvalidStep
	case browser.IsTimeout(err):
		return ErrorTimeout
	default:
		return ErrorOther
	}
}
