package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError is returned when a condition does not hold within its
// timeout. It is a hard failure; callers never retry it.
type TimeoutError struct {
	Condition string
	Observed  string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Observed == "" {
		return fmt.Sprintf("timed out after %s waiting for %s", e.After, e.Condition)
	}
	return fmt.Sprintf("timed out after %s waiting for %s (last observed: %s)", e.After, e.Condition, e.Observed)
}

// IsTimeout reports whether err is a *TimeoutError.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}

// Condition is polled until it reports ok. observed describes the current
// state for the timeout message. Returning ErrNotFound means "not yet";
// any other error stops polling.
type Condition func(ctx context.Context) (ok bool, observed string, err error)

// Poller waits for conditions with exponential backoff between attempts.
type Poller struct {
	Timeout     time.Duration
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64
}

// DefaultPoller matches the application's expectation timeout.
func DefaultPoller() Poller {
	return Poller{
		Timeout:     25 * time.Second,
		Interval:    50 * time.Millisecond,
		MaxInterval: time.Second,
		Multiplier:  2,
	}
}

// backoff returns the wait before the given attempt (0-based).
func (p Poller) backoff(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}
	d := float64(p.Interval)
	for i := 0; i < attempt; i++ {
		d *= multiplier
		if p.MaxInterval > 0 && time.Duration(d) >= p.MaxInterval {
			return p.MaxInterval
		}
	}
	return time.Duration(d)
}

// Until polls cond until it holds, the timeout expires or ctx is
// cancelled. The condition is always evaluated at least once.
func (p Poller) Until(ctx context.Context, what string, cond Condition) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var observed string
	for attempt := 0; ; attempt++ {
		ok, obs, err := cond(ctx)
		if err != nil && !errors.Is(err, ErrNotFound) {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &TimeoutError{Condition: what, Observed: observed, After: p.Timeout}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s: %w", what, err)
		}
		if ok {
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			obs = "no matching element"
		}
		observed = obs

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &TimeoutError{Condition: what, Observed: observed, After: p.Timeout}
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}
