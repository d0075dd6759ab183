// Package actor holds the per-user state the harness models during a test.
//
// A State is created fresh for every test and discarded afterwards. Two
// States may share one backend but never share fields. Everything the
// drivers learn about "their" user (identity after registration, bank
// facts after onboarding, balances and transactions read from the UI) is
// written to exactly one State.
package actor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrAlreadyBound is returned by Bind when the State is already held by a
// live session.
var ErrAlreadyBound = errors.New("actor state already bound to a live session")

// ErrRegistered is returned when the identity of a registered actor is
// replaced wholesale. Use EditProfile for the fields that may change.
var ErrRegistered = errors.New("actor already registered; identity is immutable")

// Identity is what the application knows about a user.
type Identity struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`

	// UserID is the server-assigned id. Empty until registration.
	UserID string `json:"user_id,omitempty"`
}

// FullName returns "First Last".
func (i Identity) FullName() string {
	return i.FirstName + " " + i.LastName
}

// Bank holds the bank-account facts entered during onboarding.
type Bank struct {
	BankName      string `json:"bank_name"`
	RoutingNumber string `json:"routing_number"`
	AccountNumber string `json:"account_number"`
}

// ProfileEdit lists the identity fields that may change after registration.
// Nil fields are left untouched.
type ProfileEdit struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

// Transaction is the last transaction this actor initiated.
type Transaction struct {
	Amount int64
	Note   string
}

// State is one simulated user.
//
// The mutex guards the mutable fields; a State is normally touched by one
// goroutine, but parallel tests may read Label from logs concurrently.
type State struct {
	label string
	bound atomic.Bool

	mu         sync.Mutex
	identity   Identity
	registered bool
	bank       Bank
	balance    int64
	hasBalance bool
	lastTx     Transaction
	hasLastTx  bool
}

// New creates an empty State with a human-readable label used in traces
// and logs ("alice", "bob").
func New(label string) *State {
	return &State{label: label}
}

// Label returns the trace label of this actor.
func (s *State) Label() string {
	return s.label
}

// Identity returns a copy of the current identity.
func (s *State) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SetIdentity replaces the identity. Fails once the actor is registered.
func (s *State) SetIdentity(id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered {
		return fmt.Errorf("%s: %w", s.label, ErrRegistered)
	}
	s.identity = id
	return nil
}

// MarkRegistered records the server-assigned user id and freezes the
// identity.
func (s *State) MarkRegistered(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity.UserID = userID
	s.registered = true
}

// Registered reports whether the backend knows this actor.
func (s *State) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered
}

// EditProfile applies an explicit profile edit.
func (s *State) EditProfile(edit ProfileEdit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if edit.FirstName != nil {
		s.identity.FirstName = *edit.FirstName
	}
	if edit.LastName != nil {
		s.identity.LastName = *edit.LastName
	}
	if edit.Email != nil {
		s.identity.Email = *edit.Email
	}
	if edit.Phone != nil {
		s.identity.Phone = *edit.Phone
	}
}

// Bank returns the recorded bank facts.
func (s *State) Bank() Bank {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank
}

// SetBank records bank facts entered in the UI or seeded via the API.
func (s *State) SetBank(b Bank) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bank = b
}

// RecordBalance stores the last balance read from the UI.
func (s *State) RecordBalance(balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = balance
	s.hasBalance = true
}

// LastBalance returns the last observed balance and whether one was
// observed at all.
func (s *State) LastBalance() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, s.hasBalance
}

// RecordTransaction stores the amount and note of a transaction this actor
// just submitted.
func (s *State) RecordTransaction(amount int64, note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTx = Transaction{Amount: amount, Note: note}
	s.hasLastTx = true
}

// LastTransaction returns the last submitted transaction.
func (s *State) LastTransaction() (Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTx, s.hasLastTx
}

// Bind takes the exclusive session lease on this State. The returned
// release func is idempotent.
func (s *State) Bind() (release func(), err error) {
	if !s.bound.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%s: %w", s.label, ErrAlreadyBound)
	}
	var once sync.Once
	return func() {
		once.Do(func() { s.bound.Store(false) })
	}, nil
}

// Bound reports whether a live session holds the lease.
func (s *State) Bound() bool {
	return s.bound.Load()
}
