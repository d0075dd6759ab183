// Package protocol runs the two-actor transaction protocols (pay, request,
// accept, reject) and checks the balances each one must leave behind.
//
// Both actors are driven from one control flow. A Stage keeps exactly one
// of them signed in at a time, and every balance read goes through a fresh
// sign-in because the application only refreshes the displayed balance on
// login.
package protocol

import (
	"errors"
	"fmt"
)

// Kind is how the transaction was created.
type Kind string

const (
	KindPaid      Kind = "paid"
	KindRequested Kind = "requested"
)

// Status is the harness's view of a transaction's lifecycle.
type Status string

const (
	StatusNone     Status = "none"
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusSettled  Status = "settled"
)

// Terminal reports whether no further action is valid.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusSettled
}

// Event drives a transition.
type Event string

const (
	EventPay     Event = "pay"
	EventRequest Event = "request"
	EventAccept  Event = "accept"
	EventReject  Event = "reject"
)

var (
	// ErrTerminal is returned for any event on a terminal transaction.
	ErrTerminal = errors.New("transaction is terminal")

	// ErrInvalidTransition is returned for an event the current status
	// does not accept.
	ErrInvalidTransition = errors.New("invalid transaction transition")
)

// Transition returns the status after ev.
//
//	none    --pay-->     settled
//	none    --request--> pending
//	pending --accept-->  accepted
//	pending --reject-->  rejected
func Transition(from Status, ev Event) (Status, error) {
	if from.Terminal() {
		return from, fmt.Errorf("%s on %s: %w", ev, from, ErrTerminal)
	}
	switch {
	case from == StatusNone && ev == EventPay:
		return StatusSettled, nil
	case from == StatusNone && ev == EventRequest:
		return StatusPending, nil
	case from == StatusPending && ev == EventAccept:
		return StatusAccepted, nil
	case from == StatusPending && ev == EventReject:
		return StatusRejected, nil
	}
	return from, fmt.Errorf("%s on %s: %w", ev, from, ErrInvalidTransition)
}

// Transaction is what the harness knows about one transaction. Actors are
// referenced by label. Initiator is the one who paid or requested.
type Transaction struct {
	Kind         Kind   `json:"kind"`
	Status       Status `json:"status"`
	Initiator    string `json:"initiator"`
	Counterparty string `json:"counterparty"`
	Amount       int64  `json:"amount"`
	Note         string `json:"note"`
}

// Payer is the actor whose balance goes down when the transaction settles.
func (t Transaction) Payer() string {
	if t.Kind == KindRequested {
		return t.Counterparty
	}
	return t.Initiator
}

// Payee is the actor whose balance goes up.
func (t Transaction) Payee() string {
	if t.Kind == KindRequested {
		return t.Initiator
	}
	return t.Counterparty
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s %s %s %d %q (%s)", t.Initiator, t.Kind, t.Counterparty, t.Amount, t.Note, t.Status)
}
