// Package rwasim is an in-process stand-in for the Real World App used by
// the tests: an in-memory backend, its HTTP/GraphQL API and a browser that
// renders the screens the page drivers use.
//
// The backend reproduces two behaviors of the real application on purpose:
// rejecting a request credits the requester (toggle with
// Config.RejectCreditsRequester) and the balance shown in the UI is read
// at sign-in and not refreshed until the next sign-in.
package rwasim

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/rwaverify/internal/pages"
)

var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrUnauthorized  = errors.New("username or password is invalid")
	ErrNotFound      = errors.New("not found")
	ErrNotPending    = errors.New("request is not pending")
	ErrForbidden     = errors.New("not a party to this request")
	ErrInvalid       = errors.New("invalid input")
)

// Config toggles simulated backend behavior.
type Config struct {
	RejectCreditsRequester bool
}

// DefaultConfig reproduces the application as shipped.
func DefaultConfig() Config {
	return Config{RejectCreditsRequester: true}
}

// User is a registered user.
type User struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Username     string `json:"username"`
	Password     string `json:"-"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phoneNumber"`
	BalanceCents int64  `json:"balance"`
}

// FullName is how the UI shows the user.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// BankAccount is a user's linked bank account.
type BankAccount struct {
	ID            string    `json:"id"`
	UUID          string    `json:"uuid"`
	UserID        string    `json:"userId"`
	BankName      string    `json:"bankName"`
	AccountNumber string    `json:"accountNumber"`
	RoutingNumber string    `json:"routingNumber"`
	IsDeleted     bool      `json:"isDeleted"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Kind is payment or request.
type Kind string

const (
	KindPayment Kind = "payment"
	KindRequest Kind = "request"
)

// RequestStatus tracks a request through accept or reject.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// Transaction is a payment or request. SenderID is the initiator in both
// cases; for a request the receiver is the one asked to pay.
type Transaction struct {
	ID            string
	SenderID      string
	ReceiverID    string
	AmountCents   int64
	Note          string
	Kind          Kind
	RequestStatus RequestStatus
	Likes         []string
	Comments      []string
	seq           int
}

// Payer returns the user whose balance goes down when the transaction
// settles.
func (t Transaction) Payer() string {
	if t.Kind == KindRequest {
		return t.ReceiverID
	}
	return t.SenderID
}

// Backend is the in-memory application state. Safe for concurrent use;
// parallel tests share one Backend.
type Backend struct {
	cfg Config

	mu         sync.Mutex
	users      map[string]*User
	byUsername map[string]*User
	banks      []*BankAccount
	txs        []*Transaction
	seq        int
}

// NewBackend creates an empty backend.
func NewBackend(cfg Config) *Backend {
	return &Backend{
		cfg:        cfg,
		users:      map[string]*User{},
		byUsername: map[string]*User{},
	}
}

// CreateUser registers u and returns it with its new id.
func (b *Backend) CreateUser(u User) (User, error) {
	if u.Username == "" || len(u.Password) < 4 || u.FirstName == "" || u.LastName == "" {
		return User{}, fmt.Errorf("%w: first name, last name, username and a 4+ character password are required", ErrInvalid)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byUsername[u.Username]; ok {
		return User{}, fmt.Errorf("%w: %s", ErrUsernameTaken, u.Username)
	}
	u.ID = uuid.NewString()
	stored := u
	b.users[u.ID] = &stored
	b.byUsername[u.Username] = &stored
	return stored, nil
}

// Authenticate checks credentials exactly (usernames are case-sensitive).
func (b *Backend) Authenticate(username, password string) (User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.byUsername[username]
	if !ok || u.Password != password {
		return User{}, ErrUnauthorized
	}
	return *u, nil
}

// User returns the user with id.
func (b *Backend) User(id string) (User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return *u, nil
}

// UserByUsername returns the user with username.
func (b *Backend) UserByUsername(username string) (User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.byUsername[username]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return *u, nil
}

// ProfileUpdate lists the editable profile fields; nil leaves a field alone.
type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	Email       *string
	PhoneNumber *string
}

// UpdateUser applies a profile update.
func (b *Backend) UpdateUser(id string, p ProfileUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	return nil
}

// CreateBankAccount links a bank account to userID.
func (b *Backend) CreateBankAccount(userID, bankName, accountNumber, routingNumber string) (BankAccount, error) {
	if msg := bankNameError(bankName); msg != "" {
		return BankAccount{}, fmt.Errorf("%w: %s", ErrInvalid, msg)
	}
	if msg := routingError(routingNumber); msg != "" {
		return BankAccount{}, fmt.Errorf("%w: %s", ErrInvalid, msg)
	}
	if msg := accountError(accountNumber); msg != "" {
		return BankAccount{}, fmt.Errorf("%w: %s", ErrInvalid, msg)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.users[userID]; !ok {
		return BankAccount{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	acct := &BankAccount{
		ID:            strings.ReplaceAll(uuid.NewString(), "-", "")[:9],
		UUID:          uuid.NewString(),
		UserID:        userID,
		BankName:      bankName,
		AccountNumber: accountNumber,
		RoutingNumber: routingNumber,
		CreatedAt:     time.Now().UTC(),
	}
	b.banks = append(b.banks, acct)
	return *acct, nil
}

// BankAccounts lists a user's accounts in creation order.
func (b *Backend) BankAccounts(userID string) []BankAccount {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []BankAccount
	for _, a := range b.banks {
		if a.UserID == userID && !a.IsDeleted {
			out = append(out, *a)
		}
	}
	return out
}

// SearchUsers finds users other than self whose username, name, email or
// phone contains query (case-insensitive).
func (b *Backend) SearchUsers(self, query string) []User {
	q := strings.ToLower(strings.TrimSpace(query))
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []User
	for _, u := range b.users {
		if u.ID == self {
			continue
		}
		hay := strings.ToLower(strings.Join([]string{u.Username, u.FirstName, u.LastName, u.Email, u.PhoneNumber}, " "))
		if q == "" || strings.Contains(hay, q) {
			out = append(out, *u)
		}
	}
	slices.SortFunc(out, func(a, c User) int { return strings.Compare(a.Username, c.Username) })
	return out
}

func (b *Backend) newTx(kind Kind, senderID, receiverID string, cents int64, note string) (*Transaction, error) {
	if cents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalid)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot transact with yourself", ErrInvalid)
	}
	if _, ok := b.users[senderID]; !ok {
		return nil, fmt.Errorf("user %s: %w", senderID, ErrNotFound)
	}
	if _, ok := b.users[receiverID]; !ok {
		return nil, fmt.Errorf("user %s: %w", receiverID, ErrNotFound)
	}
	b.seq++
	tx := &Transaction{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		ReceiverID:  receiverID,
		AmountCents: cents,
		Note:        note,
		Kind:        kind,
		seq:         b.seq,
	}
	b.txs = append(b.txs, tx)
	return tx, nil
}

// Pay moves cents from sender to receiver immediately.
func (b *Backend) Pay(senderID, receiverID string, cents int64, note string) (Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, err := b.newTx(KindPayment, senderID, receiverID, cents, note)
	if err != nil {
		return Transaction{}, err
	}
	b.users[senderID].BalanceCents -= cents
	b.users[receiverID].BalanceCents += cents
	return *tx, nil
}

// Request asks payerID for cents on behalf of requesterID.
func (b *Backend) Request(requesterID, payerID string, cents int64, note string) (Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, err := b.newTx(KindRequest, requesterID, payerID, cents, note)
	if err != nil {
		return Transaction{}, err
	}
	tx.RequestStatus = RequestPending
	return *tx, nil
}

func (b *Backend) pendingFor(payerID, txID string) (*Transaction, error) {
	for _, tx := range b.txs {
		if tx.ID != txID {
			continue
		}
		if tx.Kind != KindRequest || tx.RequestStatus != RequestPending {
			return nil, ErrNotPending
		}
		if tx.ReceiverID != payerID {
			return nil, ErrForbidden
		}
		return tx, nil
	}
	return nil, fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
}

// Accept settles a pending request: the payer is debited and the
// requester credited.
func (b *Backend) Accept(payerID, txID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, err := b.pendingFor(payerID, txID)
	if err != nil {
		return err
	}
	tx.RequestStatus = RequestAccepted
	b.users[tx.ReceiverID].BalanceCents -= tx.AmountCents
	b.users[tx.SenderID].BalanceCents += tx.AmountCents
	return nil
}

// Reject declines a pending request. No money should move; with
// RejectCreditsRequester the requester is credited anyway.
func (b *Backend) Reject(payerID, txID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, err := b.pendingFor(payerID, txID)
	if err != nil {
		return err
	}
	tx.RequestStatus = RequestRejected
	if b.cfg.RejectCreditsRequester {
		b.users[tx.SenderID].BalanceCents += tx.AmountCents
	}
	return nil
}

// Like records a like by userID. Each user likes a transaction once.
func (b *Backend) Like(userID, txID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range b.txs {
		if tx.ID == txID {
			if !slices.Contains(tx.Likes, userID) {
				tx.Likes = append(tx.Likes, userID)
			}
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
}

// Transaction returns one transaction by id.
func (b *Backend) Transaction(id string) (Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range b.txs {
		if tx.ID == id {
			return cloneTx(tx), nil
		}
	}
	return Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
}

// Feed selects which transactions a list shows.
type Feed int

const (
	FeedEveryone Feed = iota
	FeedFriends
	FeedMine
)

// Transactions lists the feed for userID, newest first.
//
// Mine holds the user's own transactions. Friends holds transactions
// between the user's contacts (anyone the user has transacted with),
// including the user's own. Everyone holds all transactions.
func (b *Backend) Transactions(userID string, feed Feed) []Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()

	contacts := map[string]bool{userID: true}
	for _, tx := range b.txs {
		if tx.SenderID == userID {
			contacts[tx.ReceiverID] = true
		}
		if tx.ReceiverID == userID {
			contacts[tx.SenderID] = true
		}
	}

	var out []Transaction
	for i := len(b.txs) - 1; i >= 0; i-- {
		tx := b.txs[i]
		mine := tx.SenderID == userID || tx.ReceiverID == userID
		switch feed {
		case FeedMine:
			if !mine {
				continue
			}
		case FeedFriends:
			if !contacts[tx.SenderID] || !contacts[tx.ReceiverID] {
				continue
			}
		}
		out = append(out, cloneTx(tx))
	}
	return out
}

func cloneTx(tx *Transaction) Transaction {
	c := *tx
	c.Likes = slices.Clone(tx.Likes)
	c.Comments = slices.Clone(tx.Comments)
	return c
}

func bankNameError(v string) string {
	switch {
	case v == "":
		return pages.MsgBankNameRequired
	case len(v) < 5:
		return pages.MsgBankNameShort
	}
	return ""
}

func routingError(v string) string {
	switch {
	case v == "":
		return pages.MsgRoutingRequired
	case len(v) != 9 || !allDigits(v):
		return pages.MsgRoutingInvalid
	}
	return ""
}

func accountError(v string) string {
	switch {
	case v == "":
		return pages.MsgAccountRequired
	case !allDigits(v) || len(v) < 9:
		return pages.MsgAccountShort
	case len(v) > 12:
		return pages.MsgAccountLong
	}
	return ""
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
