package rwasim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rwaverify/internal/pages"
)

func seedUsers(t *testing.T, b *Backend, names ...string) []User {
	t.Helper()
	out := make([]User, 0, len(names))
	for _, n := range names {
		u, err := b.CreateUser(User{FirstName: n, LastName: "Tester", Username: n, Password: "s3cret", BalanceCents: 500000})
		require.NoError(t, err)
		out = append(out, u)
	}
	return out
}

func balance(t *testing.T, b *Backend, id string) int64 {
	t.Helper()
	u, err := b.User(id)
	require.NoError(t, err)
	return u.BalanceCents
}

func TestCreateUser(t *testing.T) {
	b := NewBackend(DefaultConfig())
	users := seedUsers(t, b, "alice")
	assert.NotEmpty(t, users[0].ID)

	_, err := b.CreateUser(User{FirstName: "A", LastName: "B", Username: "alice", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = b.CreateUser(User{FirstName: "A", LastName: "B", Username: "short", Password: "abc"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAuthenticateIsCaseSensitive(t *testing.T) {
	b := NewBackend(DefaultConfig())
	seedUsers(t, b, "alice")

	_, err := b.Authenticate("alice", "s3cret")
	require.NoError(t, err)
	_, err = b.Authenticate("Alice", "s3cret")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = b.Authenticate("alice", "S3cret")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPayMovesMoney(t *testing.T) {
	b := NewBackend(DefaultConfig())
	u := seedUsers(t, b, "alice", "bob")

	tx, err := b.Pay(u[1].ID, u[0].ID, 2000, "Testing 123")
	require.NoError(t, err)
	assert.Equal(t, KindPayment, tx.Kind)
	assert.Equal(t, u[1].ID, tx.Payer())
	assert.Equal(t, int64(500000+2000), balance(t, b, u[0].ID))
	assert.Equal(t, int64(500000-2000), balance(t, b, u[1].ID))
}

func TestPayRejectsBadInput(t *testing.T) {
	b := NewBackend(DefaultConfig())
	u := seedUsers(t, b, "alice", "bob")

	_, err := b.Pay(u[0].ID, u[1].ID, 0, "zero")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = b.Pay(u[0].ID, u[0].ID, 100, "self")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = b.Pay(u[0].ID, "nobody", 100, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestAccept(t *testing.T) {
	b := NewBackend(DefaultConfig())
	u := seedUsers(t, b, "alice", "bob")
	alice, bob := u[0], u[1]

	tx, err := b.Request(bob.ID, alice.ID, 4000, "Dinner")
	require.NoError(t, err)
	assert.Equal(t, RequestPending, tx.RequestStatus)
	assert.Equal(t, alice.ID, tx.Payer())
	assert.Equal(t, int64(500000), balance(t, b, bob.ID), "request alone moves nothing")

	assert.ErrorIs(t, b.Accept(bob.ID, tx.ID), ErrForbidden, "only the payer may accept")
	require.NoError(t, b.Accept(alice.ID, tx.ID))
	assert.Equal(t, int64(500000-4000), balance(t, b, alice.ID))
	assert.Equal(t, int64(500000+4000), balance(t, b, bob.ID))

	assert.ErrorIs(t, b.Accept(alice.ID, tx.ID), ErrNotPending)
	assert.ErrorIs(t, b.Reject(alice.ID, tx.ID), ErrNotPending)
}

func TestRejectCreditsRequester(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		requester int64
	}{
		{"as shipped", DefaultConfig(), 500000 + 350000},
		{"fixed", Config{}, 500000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackend(tt.cfg)
			u := seedUsers(t, b, "alice", "bob")
			tx, err := b.Request(u[1].ID, u[0].ID, 350000, "Gift")
			require.NoError(t, err)

			require.NoError(t, b.Reject(u[0].ID, tx.ID))
			assert.Equal(t, int64(500000), balance(t, b, u[0].ID), "payer never debited on reject")
			assert.Equal(t, tt.requester, balance(t, b, u[1].ID))

			got, err := b.Transaction(tx.ID)
			require.NoError(t, err)
			assert.Equal(t, RequestRejected, got.RequestStatus)
		})
	}
}

func TestTransactionsFeeds(t *testing.T) {
	b := NewBackend(DefaultConfig())
	u := seedUsers(t, b, "alice", "bob", "carol", "dave")
	alice, bob, carol, dave := u[0], u[1], u[2], u[3]

	first, err := b.Pay(alice.ID, bob.ID, 100, "one")
	require.NoError(t, err)
	second, err := b.Pay(carol.ID, dave.ID, 100, "two")
	require.NoError(t, err)
	third, err := b.Pay(bob.ID, carol.ID, 100, "three")
	require.NoError(t, err)

	ids := func(txs []Transaction) []string {
		var out []string
		for _, tx := range txs {
			out = append(out, tx.ID)
		}
		return out
	}

	assert.Equal(t, []string{third.ID, second.ID, first.ID}, ids(b.Transactions(alice.ID, FeedEveryone)))
	assert.Equal(t, []string{first.ID}, ids(b.Transactions(alice.ID, FeedMine)))
	assert.Equal(t, []string{third.ID, first.ID}, ids(b.Transactions(bob.ID, FeedMine)))
	assert.Equal(t, []string{first.ID}, ids(b.Transactions(alice.ID, FeedFriends)))
	assert.Equal(t, []string{third.ID, first.ID}, ids(b.Transactions(bob.ID, FeedFriends)))
}

func TestLikeOncePerUser(t *testing.T) {
	b := NewBackend(DefaultConfig())
	u := seedUsers(t, b, "alice", "bob")
	tx, err := b.Pay(u[0].ID, u[1].ID, 100, "like me")
	require.NoError(t, err)

	require.NoError(t, b.Like(u[1].ID, tx.ID))
	require.NoError(t, b.Like(u[1].ID, tx.ID))
	got, err := b.Transaction(tx.ID)
	require.NoError(t, err)
	assert.Len(t, got.Likes, 1)

	assert.ErrorIs(t, b.Like(u[1].ID, "missing"), ErrNotFound)
}

func TestSearchUsers(t *testing.T) {
	b := NewBackend(DefaultConfig())
	u := seedUsers(t, b, "alice", "bob", "bobby")

	got := b.SearchUsers(u[0].ID, "BOB")
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[0].Username)
	assert.Equal(t, "bobby", got[1].Username)

	assert.Empty(t, b.SearchUsers(u[0].ID, "alice"), "self is never listed")
	assert.Empty(t, b.SearchUsers(u[0].ID, "zzz"))
}

func TestCreateBankAccountValidation(t *testing.T) {
	b := NewBackend(DefaultConfig())
	u := seedUsers(t, b, "alice")

	tests := []struct {
		bank, account, routing, want string
	}{
		{"", "123456789", "987654321", pages.MsgBankNameRequired},
		{"abc", "123456789", "987654321", pages.MsgBankNameShort},
		{"Rich Bank", "123456789", "", pages.MsgRoutingRequired},
		{"Rich Bank", "123456789", "12345", pages.MsgRoutingInvalid},
		{"Rich Bank", "", "987654321", pages.MsgAccountRequired},
		{"Rich Bank", "12345", "987654321", pages.MsgAccountShort},
		{"Rich Bank", "1234567890123", "987654321", pages.MsgAccountLong},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			_, err := b.CreateBankAccount(u[0].ID, tt.bank, tt.account, tt.routing)
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	acct, err := b.CreateBankAccount(u[0].ID, "Rich Bank", "123456789", "987654321")
	require.NoError(t, err)
	assert.Equal(t, u[0].ID, acct.UserID)
	assert.Len(t, b.BankAccounts(u[0].ID), 1)
}

func TestUpdateUser(t *testing.T) {
	b := NewBackend(DefaultConfig())
	u := seedUsers(t, b, "alice")
	email := "alice@example.com"

	require.NoError(t, b.UpdateUser(u[0].ID, ProfileUpdate{Email: &email}))
	got, err := b.User(u[0].ID)
	require.NoError(t, err)
	assert.Equal(t, email, got.Email)
	assert.Equal(t, "alice", got.FirstName)

	assert.ErrorIs(t, b.UpdateUser("missing", ProfileUpdate{}), ErrNotFound)
}
